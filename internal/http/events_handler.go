package http

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trackly/internal/events"
	"trackly/internal/timeframe"
)

// EventsHandler serves raw event listings, session lookups and exports.
type EventsHandler struct {
	Aggregator     *events.Aggregator
	Reader         events.Reader
	Logger         *slog.Logger
	DefaultDays    int
	DefaultPerPage int
	MaxPerPage     int
}

// ListEventsAction handles GET /api/tracking/events
func (h *EventsHandler) ListEventsAction(c *cartridge.Context) error {
	kind, ok := events.ParseEventKind(c.Query("type"))
	if !ok {
		return RespondError(c.Ctx, h.Logger, events.NewValidationError("type", "must be one of all, page_views, custom_events"))
	}
	page, perPage, err := pageParams(c.Ctx, h.DefaultPerPage, h.MaxPerPage)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}

	f := events.Filter{Kind: kind, SessionID: c.Query("session_id")}
	total, err := h.Reader.Count(c.UserContext(), f)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	list, err := h.Reader.Query(c.UserContext(), f, events.Page{Offset: (page - 1) * perPage, Limit: perPage})
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}

	pages := (total + int64(perPage) - 1) / int64(perPage)
	return c.JSON(fiber.Map{
		"events":   events.Views(list),
		"total":    total,
		"page":     page,
		"per_page": perPage,
		"pages":    pages,
	})
}

// SessionAction handles GET /api/tracking/sessions/:id
func (h *EventsHandler) SessionAction(c *cartridge.Context) error {
	summary, err := h.Aggregator.SessionSummary(c.UserContext(), c.Params("id"))
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	return c.JSON(summary)
}

// ExportCSVAction handles GET /api/tracking/export.csv, newest events first.
func (h *EventsHandler) ExportCSVAction(c *cartridge.Context) error {
	p, err := queryParams(c.Ctx, h.DefaultDays)
	if err != nil {
		return RespondError(c.Ctx, h.Logger, err)
	}
	tf, err := p.Window.Resolve(h.Reader.Now())
	if err != nil {
		return RespondError(c.Ctx, h.Logger, events.NewValidationError("window", "%v", err))
	}
	f := events.Filter{From: tf.From, To: tf.To, Kind: p.Kind}

	filename := fmt.Sprintf("events-%s.csv", h.Reader.Now().UTC().Format(timeframe.UserFacingDayFormat))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))

	rows, err := events.ExportCSV(c.UserContext(), h.Reader, f, c)
	if err != nil {
		if rows == 0 {
			c.Response().Header.Del(fiber.HeaderContentDisposition)
			return RespondError(c.Ctx, h.Logger, err)
		}
		// Rows already went out; log and truncate.
		h.Logger.Error("CSV export interrupted", slog.Int("written", rows), slog.Any("error", err))
		return nil
	}

	h.Logger.Info("Exported events", slog.Int("rows", rows))
	return nil
}
