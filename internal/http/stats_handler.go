package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trackly/internal/analytics"
	"trackly/internal/events"
)

// StatsHandler serves the reporting endpoints.
type StatsHandler struct {
	Engine      *analytics.Engine
	Logger      *slog.Logger
	DefaultDays int
}

// TrackingStatsAction handles GET /api/tracking/stats
func (h *StatsHandler) TrackingStatsAction(c *cartridge.Context) error {
	p, err := queryParams(c.Ctx, h.DefaultDays)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	stats, err := h.Engine.TrackingStats(c.UserContext(), p)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.JSON(stats)
}

// SessionAnalyticsAction handles GET /api/tracking/sessions
func (h *StatsHandler) SessionAnalyticsAction(c *cartridge.Context) error {
	p, err := queryParams(c.Ctx, h.DefaultDays)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	report, err := h.Engine.SessionAnalytics(c.UserContext(), p)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.JSON(report)
}

// RealtimeAction handles GET /api/tracking/realtime
func (h *StatsHandler) RealtimeAction(c *cartridge.Context) error {
	snap, err := h.Engine.Realtime(c.UserContext())
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.JSON(snap)
}

// VisitStatsAction handles GET /api/stats
func (h *StatsHandler) VisitStatsAction(c *cartridge.Context) error {
	p, err := queryParams(c.Ctx, h.DefaultDays)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	stats, err := h.Engine.VisitStats(c.UserContext(), p)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.JSON(stats)
}

// TopAction handles GET /api/stats/top/:dimension
func (h *StatsHandler) TopAction(c *cartridge.Context) error {
	dim, ok := events.ParseDimension(c.Params("dimension"))
	if !ok {
		return RespondError(c.Ctx, h.Logger, events.NewValidationError("dimension", "unsupported dimension %q", c.Params("dimension")))
	}
	p, err := queryParams(c.Ctx, h.DefaultDays)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}

	rows, err := h.Engine.TopN(c.UserContext(), dim, p)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.JSON(fiber.Map{
		"dimension": dim,
		"labeled":   p.Labeled,
		"items":     rows,
	})
}
