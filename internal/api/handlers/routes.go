package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Register mounts the ops routes under /api/v1. limit guards the POST
// routes; pass nil to leave them unlimited.
func Register(app fiber.Router, ingest *IngestHandler, bills *BillHandler, health *HealthHandler, limit fiber.Handler) {
	api := app.Group("/api/v1")

	api.Get("/health", health.Health)
	api.Get("/ready", health.Ready)
	api.Get("/bills/:apiId", bills.GetBill)

	post := []fiber.Handler{}
	if limit != nil {
		post = append(post, limit)
	}
	api.Post("/ingest/refresh", append(post, ingest.TriggerRefresh)...)
	api.Post("/status/sync", append(post, ingest.SyncStatusLinks)...)
}
