package analytics

import (
	"context"
	"fmt"
	"time"

	"trackly/internal/events"
	"trackly/internal/pkg/async"
	"trackly/internal/timeframe"
)

const (
	realtimeRecentEvents  = 10
	realtimeTopPagesToday = 5
)

// RealtimeSnapshot is what the live dashboard polls.
type RealtimeSnapshot struct {
	ActiveSessions      int64               `json:"active_sessions"`
	HourlyViews         int64               `json:"hourly_views"`
	PopularPageLastHour *string             `json:"popular_page_last_hour"`
	TopPagesToday       []events.GroupCount `json:"top_pages_today"`
	RecentEvents        []events.EventView  `json:"recent_events"`
	GeneratedAt         time.Time           `json:"generated_at"`
}

// Realtime reads the last few minutes of traffic relative to the store clock.
func (e *Engine) Realtime(ctx context.Context) (*RealtimeSnapshot, error) {
	now := e.reader.Now().UTC()
	lastHour := events.Filter{From: now.Add(-time.Hour), To: now, Kind: events.KindPageViews}

	tasks := []async.Task{
		{
			Name: "active_sessions",
			Execute: func(ctx context.Context) (any, error) {
				f := events.Filter{From: now.Add(-e.activeWindow), To: now}
				return e.reader.DistinctCount(ctx, f, events.DimensionSession)
			},
		},
		{
			Name: "hourly_views",
			Execute: func(ctx context.Context) (any, error) {
				return e.reader.Count(ctx, lastHour)
			},
		},
		{
			Name: "popular_page",
			Execute: func(ctx context.Context) (any, error) {
				return e.reader.GroupCount(ctx, lastHour, events.DimensionPageURL, events.GroupOptions{Limit: 1})
			},
		},
		{
			Name: "top_pages_today",
			Execute: func(ctx context.Context) (any, error) {
				f := events.Filter{From: timeframe.StartOfDay(now), To: now, Kind: events.KindPageViews}
				return e.reader.GroupCount(ctx, f, events.DimensionPageURL, events.GroupOptions{Limit: realtimeTopPagesToday})
			},
		},
		{
			Name: "recent_events",
			Execute: func(ctx context.Context) (any, error) {
				return e.reader.Query(ctx, events.Filter{To: now}, events.Page{Limit: realtimeRecentEvents})
			},
		},
	}

	results := e.pool.Execute(ctx, tasks)
	if err := async.FirstError(tasks, results); err != nil {
		return nil, fmt.Errorf("error building realtime snapshot: %w", err)
	}

	snap := &RealtimeSnapshot{
		ActiveSessions: results["active_sessions"].Data.(int64),
		HourlyViews:    results["hourly_views"].Data.(int64),
		TopPagesToday:  results["top_pages_today"].Data.([]events.GroupCount),
		RecentEvents:   events.Views(results["recent_events"].Data.([]events.Event)),
		GeneratedAt:    now,
	}
	if top := results["popular_page"].Data.([]events.GroupCount); len(top) > 0 {
		page := top[0].Name
		snap.PopularPageLastHour = &page
	}
	return snap, nil
}
