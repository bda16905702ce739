package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trackly/internal/database"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
}

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	Logger *slog.Logger
}

// HealthIndexAction handles the health check endpoint
func (h *HealthHandler) HealthIndexAction(c *cartridge.Context) error {
	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		DBStatus:  "ok",
	}

	if err := database.Ping(c.UserContext(), c.DBManager.GetConnection()); err != nil {
		h.Logger.Error("Database ping failed", slog.Any("error", err))
		health.Status = "degraded"
		health.DBStatus = "error"
		return c.Status(fiber.StatusServiceUnavailable).JSON(health)
	}

	return c.JSON(health)
}
