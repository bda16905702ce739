package analytics

import (
	"context"
	"fmt"

	"trackly/internal/events"
)

// TotalPageViews counts page views in the window. p.Kind is ignored.
func (e *Engine) TotalPageViews(ctx context.Context, p QueryParams) (int64, error) {
	return e.count(ctx, p.WithKind(events.KindPageViews), "page views")
}

// TotalCustomEvents counts events that are not page views.
func (e *Engine) TotalCustomEvents(ctx context.Context, p QueryParams) (int64, error) {
	return e.count(ctx, p.WithKind(events.KindCustomEvents), "custom events")
}

// TotalEvents counts events of p.Kind.
func (e *Engine) TotalEvents(ctx context.Context, p QueryParams) (int64, error) {
	return e.count(ctx, p, "events")
}

func (e *Engine) count(ctx context.Context, p QueryParams, what string) (int64, error) {
	f, err := e.filter(p)
	if err != nil {
		return 0, err
	}
	n, err := e.reader.Count(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("error counting %s: %w", what, err)
	}
	return n, nil
}

// UniqueSessions counts distinct non-empty session ids among events of p.Kind.
func (e *Engine) UniqueSessions(ctx context.Context, p QueryParams) (int64, error) {
	f, err := e.filter(p)
	if err != nil {
		return 0, err
	}
	n, err := e.reader.DistinctCount(ctx, f, events.DimensionSession)
	if err != nil {
		return 0, fmt.Errorf("error counting unique sessions: %w", err)
	}
	return n, nil
}

// AverageSessionDuration is the mean of last-minus-first over sessions with
// at least two events in the window, in minutes. Single-event sessions are
// left out of the mean, and 0 is returned when no session qualifies.
func (e *Engine) AverageSessionDuration(ctx context.Context, p QueryParams) (float64, error) {
	f, err := e.filter(p.WithKind(events.KindAll))
	if err != nil {
		return 0, err
	}
	stats, err := e.reader.SessionStats(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("error fetching session durations: %w", err)
	}

	var total float64
	var sessions int
	for _, s := range stats {
		if s.Events < 2 {
			continue
		}
		total += s.DurationSeconds
		sessions++
	}
	if sessions == 0 {
		return 0, nil
	}
	return round2(total / float64(sessions) / 60), nil
}

// BounceRate is the share of sessions with exactly one page view among
// sessions with at least one, as a percentage. Custom events do not count.
func (e *Engine) BounceRate(ctx context.Context, p QueryParams) (float64, error) {
	f, err := e.filter(p.WithKind(events.KindPageViews))
	if err != nil {
		return 0, err
	}
	stats, err := e.reader.SessionStats(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("error fetching bounce sessions: %w", err)
	}

	var bounced, sessions int
	for _, s := range stats {
		if s.PageViews < 1 {
			continue
		}
		sessions++
		if s.PageViews == 1 {
			bounced++
		}
	}
	if sessions == 0 {
		return 0, nil
	}
	return round2(float64(bounced) / float64(sessions) * 100), nil
}
