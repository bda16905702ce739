package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Recorded is what RecordEvent reports back to the caller.
type Recorded struct {
	ID        uint      `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionSummary describes one session's events in chronological order.
type SessionSummary struct {
	SessionID   string      `json:"session_id"`
	Events      []EventView `json:"events"`
	Duration    *float64    `json:"duration"`
	EntryPage   *string     `json:"entry_page"`
	ExitPage    *string     `json:"exit_page"`
	TotalEvents int         `json:"total_events"`
}

// Aggregator appends events and keeps each session's exit-page flag on its
// newest event.
//
// The fix-up is best effort under concurrent writers for the same session:
// whichever append runs its fix-up last wins, and the next append corrects
// any leftover flags.
type Aggregator struct {
	store  Recorder
	logger *slog.Logger
}

func NewAggregator(store Recorder, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, logger: logger}
}

// RecordEvent validates and appends e. Session events are stored as the
// session's exit page; unless the caller marked e as the exit explicitly, the
// flag is then cleared on every other event of the session. Append failures
// are returned. Fix-up failures are logged and the event still counts as
// recorded.
func (a *Aggregator) RecordEvent(ctx context.Context, e *Event) (Recorded, error) {
	if err := Validate(e); err != nil {
		return Recorded{}, err
	}

	// The newest event of a session is its exit until a later one arrives.
	explicitExit := e.IsExitPage
	if e.SessionID != "" {
		e.IsExitPage = true
	}

	if err := a.store.Append(ctx, e); err != nil {
		return Recorded{}, fmt.Errorf("error recording event: %w", err)
	}

	if err := a.fixupExitPages(ctx, e, explicitExit); err != nil {
		var fe *FixupError
		if errors.As(err, &fe) {
			a.logger.Warn("Exit page fix-up failed",
				slog.String("session_id", fe.SessionID),
				slog.Uint64("event_id", uint64(fe.EventID)),
				slog.Any("error", fe.Err))
		}
	}

	a.logger.Debug("Event recorded",
		slog.Uint64("event_id", uint64(e.ID)),
		slog.String("session_id", e.SessionID),
		slog.Bool("page_view", e.IsPageView()))

	return Recorded{ID: e.ID, Timestamp: e.Timestamp}, nil
}

func (a *Aggregator) fixupExitPages(ctx context.Context, e *Event, explicitExit bool) error {
	if e.SessionID == "" || explicitExit {
		return nil
	}
	if err := a.store.SetExitFlag(ctx, e.SessionID, e.ID, false); err != nil {
		return &FixupError{SessionID: e.SessionID, EventID: e.ID, Err: err}
	}
	return nil
}

// SessionSummary returns the session's events and derived fields, or
// ErrNotFound when the session has none.
func (a *Aggregator) SessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, NewValidationError("session_id", "is required")
	}

	list, err := a.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error fetching session %q: %w", sessionID, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}

	first, last := list[0], list[len(list)-1]
	summary := &SessionSummary{
		SessionID:   sessionID,
		Events:      Views(list),
		EntryPage:   nullable(first.PageURL),
		ExitPage:    nullable(last.PageURL),
		TotalEvents: len(list),
	}
	if len(list) > 1 {
		d := last.Timestamp.Sub(first.Timestamp).Seconds()
		summary.Duration = &d
	}
	return summary, nil
}

// Validate checks the fields every event needs before it reaches the store.
func Validate(e *Event) error {
	if e == nil {
		return NewValidationError("", "event is required")
	}
	if strings.TrimSpace(e.PageURL) == "" {
		return NewValidationError("page_url", "is required")
	}
	if len(e.PageURL) > 2048 {
		return NewValidationError("page_url", "must be at most 2048 characters")
	}
	if len(e.SessionID) > 255 {
		return NewValidationError("session_id", "must be at most 255 characters")
	}
	if len(e.EventName) > 100 {
		return NewValidationError("event_name", "must be at most 100 characters")
	}
	return nil
}
