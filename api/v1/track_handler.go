package v1

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trackly/internal/events"
	apphttp "trackly/internal/http"
	"trackly/internal/http/middleware"
)

// TrackParams is the JSON body of a tracking request.
type TrackParams struct {
	SessionID   string         `json:"session_id"`
	PageURL     string         `json:"page_url"`
	Referrer    string         `json:"referrer"`
	UserAgent   string         `json:"user_agent"`
	Browser     string         `json:"browser"`
	OS          string         `json:"os"`
	Device      string         `json:"device"`
	Country     string         `json:"country"`
	City        string         `json:"city"`
	Region      string         `json:"region"`
	IsEntryPage bool           `json:"is_entry_page"`
	IsExitPage  bool           `json:"is_exit_page"`
	EventName   string         `json:"event_name"`
	EventData   map[string]any `json:"event_data"`
}

// TrackResponse is returned for a recorded event.
type TrackResponse struct {
	Success   bool      `json:"success"`
	EventID   uint      `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackHandler ingests events from the tracking script.
type TrackHandler struct {
	Aggregator *events.Aggregator
	Enricher   *events.Enricher
	Logger     *slog.Logger
}

// CreateEventAction handles POST /api/track
func (h *TrackHandler) CreateEventAction(c *cartridge.Context) error {
	var params TrackParams
	if err := c.BodyParser(&params); err != nil {
		h.Logger.Debug("Failed to parse tracking request", slog.Any("error", err))
		return apphttp.RespondError(c.Ctx, h.Logger, events.NewValidationError("body", "must be a JSON object"))
	}

	rec, err := h.record(c.Ctx, &params)
	if err != nil {
		return apphttp.RespondError(c.Ctx, h.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TrackResponse{
		Success:   true,
		EventID:   rec.ID,
		Timestamp: rec.Timestamp,
	})
}

// CreateEventBeaconAction handles POST /api/track/beacon. navigator.sendBeacon
// posts text/plain and ignores the answer, so it always gets 202.
func (h *TrackHandler) CreateEventBeaconAction(c *cartridge.Context) error {
	var params TrackParams
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		h.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return c.SendStatus(fiber.StatusAccepted)
	}

	if _, err := h.record(c.Ctx, &params); err != nil {
		h.Logger.Warn("Failed to record beacon event",
			slog.String("page_url", params.PageURL),
			slog.Any("error", err))
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// record validates, enriches and records one event. Enrichment problems are
// logged and never fail the request.
func (h *TrackHandler) record(c *fiber.Ctx, params *TrackParams) (events.Recorded, error) {
	e := params.toEvent()
	if err := events.Validate(e); err != nil {
		return events.Recorded{}, err
	}

	userAgent := c.Get(fiber.HeaderUserAgent)
	if forwardedUA := c.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		userAgent = forwardedUA
	}
	meta := events.RequestMeta{
		IPAddress: middleware.ClientIP(c),
		UserAgent: userAgent,
		Referrer:  c.Get(fiber.HeaderReferer),
	}
	if err := h.Enricher.Enrich(c.UserContext(), e, meta); err != nil {
		h.Logger.Warn("Recording event without location",
			slog.String("ip", e.IPAddress),
			slog.Any("error", err))
	}

	rec, err := h.Aggregator.RecordEvent(c.UserContext(), e)
	if err != nil {
		return events.Recorded{}, err
	}

	h.Logger.Debug("Recorded event",
		slog.Uint64("event_id", uint64(rec.ID)),
		slog.String("session_id", e.SessionID))
	return rec, nil
}

func (p *TrackParams) toEvent() *events.Event {
	e := &events.Event{
		SessionID:   p.SessionID,
		PageURL:     p.PageURL,
		Referrer:    p.Referrer,
		UserAgent:   p.UserAgent,
		Browser:     p.Browser,
		OS:          p.OS,
		Device:      p.Device,
		Country:     p.Country,
		City:        p.City,
		Region:      p.Region,
		IsEntryPage: p.IsEntryPage,
		IsExitPage:  p.IsExitPage,
		EventName:   p.EventName,
	}
	if len(p.EventData) > 0 {
		if data, err := json.Marshal(p.EventData); err == nil {
			e.EventData = string(data)
		}
	}
	return e
}
