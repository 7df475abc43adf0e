package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/ingestion"
	"github.com/lawmate/billpipe/internal/linksync"
	"github.com/lawmate/billpipe/pkg/logger"
)

const maxPageSize = 1000

type CycleRunner interface {
	TryRun(ctx context.Context, pageSize int) (ingestion.Report, error)
}

type LinkSyncer interface {
	Sync(ctx context.Context) (linksync.Result, error)
}

type IngestHandler struct {
	cycles      CycleRunner
	links       LinkSyncer
	defaultSize int
}

func NewIngestHandler(cycles CycleRunner, links LinkSyncer, defaultSize int) *IngestHandler {
	return &IngestHandler{
		cycles:      cycles,
		links:       links,
		defaultSize: defaultSize,
	}
}

// TriggerRefresh runs one ingestion cycle synchronously. ?size overrides the
// page size.
func (h *IngestHandler) TriggerRefresh(c *fiber.Ctx) error {
	size := c.QueryInt("size", h.defaultSize)
	if size <= 0 || size > maxPageSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "size must be between 1 and 1000",
		})
	}

	report, err := h.cycles.TryRun(c.Context(), size)
	if errors.Is(err, ingestion.ErrCycleInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "An ingestion cycle is already running",
		})
	}
	if err != nil {
		logger.Error("Manual refresh failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":  "Ingestion cycle failed",
			"run_id": report.RunID,
		})
	}

	return c.JSON(fiber.Map{
		"run_id":      report.RunID,
		"fetched":     report.Fetched,
		"inserted":    report.Inserted,
		"updated":     report.Updated,
		"skipped":     report.Skipped,
		"failed":      report.Failed,
		"duration_ms": report.Duration.Milliseconds(),
	})
}

func (h *IngestHandler) SyncStatusLinks(c *fiber.Ctx) error {
	result, err := h.links.Sync(c.Context())
	if err != nil {
		logger.Error("Status link sync failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Status link sync failed",
		})
	}

	return c.JSON(fiber.Map{
		"created": result.Created,
		"updated": result.Updated,
	})
}
