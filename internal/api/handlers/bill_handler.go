package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/internal/storage/sqlite"
	"github.com/lawmate/billpipe/pkg/logger"
)

type BillReader interface {
	GetBill(ctx context.Context, apiID string) (*models.Bill, error)
}

type BillHandler struct {
	bills BillReader
}

func NewBillHandler(bills BillReader) *BillHandler {
	return &BillHandler{bills: bills}
}

// GetBill returns a stored bill without its vector, for checking what the
// pipeline wrote.
func (h *BillHandler) GetBill(c *fiber.Ctx) error {
	apiID := c.Params("apiId")
	if apiID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "apiId is required",
		})
	}

	bill, err := h.bills.GetBill(c.Context(), apiID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Bill not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load bill", zap.String("api_id", apiID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load bill",
		})
	}

	return c.JSON(fiber.Map{
		"bill_id":       bill.ID,
		"api_id":        bill.APIID,
		"bill_number":   bill.BillNumber,
		"bill_title":    bill.BillTitle,
		"bill_proposer": bill.BillProposer,
		"proposer_id":   bill.ProposerID,
		"committee":     bill.Committee,
		"bill_status":   bill.BillStatus,
		"bill_date":     bill.BillDate,
		"detail":        bill.Detail,
		"summary":       bill.Summary,
		"prediction":    bill.Prediction,
		"term":          bill.Term,
		"embedding_dim": len(bill.Embedding),
		"created_at":    bill.CreatedAt.Unix(),
		"updated_at":    bill.UpdatedAt.Unix(),
	})
}
