package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"packsync/feature/packs/models"
)

// HealthSource provides the sync health summary. The pack repository
// implements this.
type HealthSource interface {
	SyncHealth(ctx context.Context) (models.SyncHealth, error)
}

// Register mounts the status endpoints on the Fiber app.
func Register(app *fiber.App, source HealthSource, log *zap.Logger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/status/sync", func(c *fiber.Ctx) error {
		health, err := source.SyncHealth(c.UserContext())
		if err != nil {
			log.Error("Failed to collect sync health", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to collect sync health",
			})
		}
		return c.JSON(health)
	})
}
