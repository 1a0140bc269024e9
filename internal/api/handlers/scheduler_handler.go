package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	job "github.com/maheshrc27/publish-engine/internal/jobs"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

type SchedulerHandler struct {
	scheduler job.Ticker
	log       *zap.Logger
}

func NewSchedulerHandler(scheduler job.Ticker) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler, log: logging.WithComponent("scheduler_handler")}
}

// Tick runs one scheduler pass for an external timer and reports what it
// published.
func (h *SchedulerHandler) Tick(c *fiber.Ctx) error {
	results, err := h.scheduler.Tick(c.UserContext(), time.Now())
	if err != nil {
		h.log.Error("triggered tick failed", zap.Error(err))
		if results == nil {
			return errorJSON(c, fiber.StatusInternalServerError, "Scheduler tick failed")
		}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"published": len(results),
		"results":   results,
	})
}

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "database unreachable")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
