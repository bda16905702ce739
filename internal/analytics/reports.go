package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"trackly/internal/events"
	"trackly/internal/pkg/async"
	"trackly/internal/timeframe"
)

const (
	reportTopLimit    = 10
	reportDeviceLimit = 5
)

// TrackingStats is the event-centric report.
type TrackingStats struct {
	TotalPageViews    int64                `json:"total_page_views"`
	TotalCustomEvents int64                `json:"total_custom_events"`
	UniqueSessions    int64                `json:"unique_sessions"`
	TopPages          []events.GroupCount  `json:"top_pages"`
	TopEvents         []events.GroupCount  `json:"top_events"`
	DailyStats        []timeframe.DateStat `json:"daily_stats"`
	HourlyStats       []timeframe.HourStat `json:"hourly_stats"`
}

// SessionAnalytics summarises sessions in the window.
type SessionAnalytics struct {
	TotalSessions          int64               `json:"total_sessions"`
	AverageSessionDuration float64             `json:"average_session_duration"`
	BounceRate             float64             `json:"bounce_rate"`
	TopEntryPages          []events.GroupCount `json:"top_entry_pages"`
	TopExitPages           []events.GroupCount `json:"top_exit_pages"`
}

// VisitStats is the overview report with display-labeled breakdowns.
type VisitStats struct {
	TotalVisits            int64                `json:"total_visits"`
	UniqueVisitors         int64                `json:"unique_visitors"`
	PageViews              int64                `json:"page_views"`
	BounceRate             float64              `json:"bounce_rate"`
	AverageSessionDuration float64              `json:"average_session_duration"`
	TopPages               []events.GroupCount  `json:"top_pages"`
	TopReferrers           []events.GroupCount  `json:"top_referrers"`
	Countries              []events.GroupCount  `json:"countries"`
	Browsers               []events.GroupCount  `json:"browsers"`
	OperatingSystems       []events.GroupCount  `json:"operating_systems"`
	Devices                []events.GroupCount  `json:"devices"`
	HourlyVisits           []timeframe.HourStat `json:"hourly_visits"`
	DailyVisits            []timeframe.DateStat `json:"daily_visits"`
}

// TrackingStats builds the event-centric report. Totals ignore p.Kind; the
// daily (newest first) and hourly series honour it.
func (e *Engine) TrackingStats(ctx context.Context, p QueryParams) (*TrackingStats, error) {
	if _, err := e.filter(p); err != nil {
		return nil, err
	}
	top := p.WithKind(events.KindPageViews).WithLimit(reportTopLimit)
	daily := p
	daily.Order = timeframe.OrderDesc

	tasks := []async.Task{
		task("total_page_views", func(ctx context.Context) (int64, error) { return e.TotalPageViews(ctx, p) }),
		task("total_custom_events", func(ctx context.Context) (int64, error) { return e.TotalCustomEvents(ctx, p) }),
		task("unique_sessions", func(ctx context.Context) (int64, error) { return e.UniqueSessions(ctx, p.WithKind(events.KindAll)) }),
		task("top_pages", func(ctx context.Context) ([]events.GroupCount, error) {
			return e.TopN(ctx, events.DimensionPageURL, top)
		}),
		task("top_events", func(ctx context.Context) ([]events.GroupCount, error) {
			return e.TopN(ctx, events.DimensionEventName, top.WithKind(events.KindCustomEvents))
		}),
		task("daily_stats", func(ctx context.Context) ([]timeframe.DateStat, error) { return e.DailyCounts(ctx, daily) }),
		task("hourly_stats", func(ctx context.Context) ([]timeframe.HourStat, error) { return e.HourlyCounts(ctx, p) }),
	}

	results, err := e.run(ctx, "tracking stats", tasks)
	if err != nil {
		return nil, err
	}

	return &TrackingStats{
		TotalPageViews:    data[int64](results, "total_page_views"),
		TotalCustomEvents: data[int64](results, "total_custom_events"),
		UniqueSessions:    data[int64](results, "unique_sessions"),
		TopPages:          data[[]events.GroupCount](results, "top_pages"),
		TopEvents:         data[[]events.GroupCount](results, "top_events"),
		DailyStats:        data[[]timeframe.DateStat](results, "daily_stats"),
		HourlyStats:       data[[]timeframe.HourStat](results, "hourly_stats"),
	}, nil
}

// SessionAnalytics builds the session report.
func (e *Engine) SessionAnalytics(ctx context.Context, p QueryParams) (*SessionAnalytics, error) {
	if _, err := e.filter(p); err != nil {
		return nil, err
	}
	p = p.WithKind(events.KindAll).WithLimit(reportTopLimit)

	tasks := []async.Task{
		task("total_sessions", func(ctx context.Context) (int64, error) { return e.UniqueSessions(ctx, p) }),
		task("average_session_duration", func(ctx context.Context) (float64, error) { return e.AverageSessionDuration(ctx, p) }),
		task("bounce_rate", func(ctx context.Context) (float64, error) { return e.BounceRate(ctx, p) }),
		task("top_entry_pages", func(ctx context.Context) ([]events.GroupCount, error) { return e.TopEntryPages(ctx, p) }),
		task("top_exit_pages", func(ctx context.Context) ([]events.GroupCount, error) { return e.TopExitPages(ctx, p) }),
	}

	results, err := e.run(ctx, "session analytics", tasks)
	if err != nil {
		return nil, err
	}

	return &SessionAnalytics{
		TotalSessions:          data[int64](results, "total_sessions"),
		AverageSessionDuration: data[float64](results, "average_session_duration"),
		BounceRate:             data[float64](results, "bounce_rate"),
		TopEntryPages:          data[[]events.GroupCount](results, "top_entry_pages"),
		TopExitPages:           data[[]events.GroupCount](results, "top_exit_pages"),
	}, nil
}

// VisitStats builds the overview report. Breakdowns are labeled for display
// and count page views only.
func (e *Engine) VisitStats(ctx context.Context, p QueryParams) (*VisitStats, error) {
	if _, err := e.filter(p); err != nil {
		return nil, err
	}
	all := p.WithKind(events.KindAll)
	views := p.WithKind(events.KindPageViews).WithLimit(reportTopLimit)
	labeled := views
	labeled.Labeled = true
	daily := views
	daily.Order = timeframe.OrderAsc

	breakdown := func(name string, dim events.Dimension, q QueryParams) async.Task {
		return task(name, func(ctx context.Context) ([]events.GroupCount, error) { return e.TopN(ctx, dim, q) })
	}

	tasks := []async.Task{
		task("total_visits", func(ctx context.Context) (int64, error) { return e.TotalEvents(ctx, all) }),
		task("unique_visitors", func(ctx context.Context) (int64, error) { return e.UniqueSessions(ctx, all) }),
		task("page_views", func(ctx context.Context) (int64, error) { return e.TotalPageViews(ctx, all) }),
		task("bounce_rate", func(ctx context.Context) (float64, error) { return e.BounceRate(ctx, all) }),
		task("average_session_duration", func(ctx context.Context) (float64, error) { return e.AverageSessionDuration(ctx, all) }),
		breakdown("top_pages", events.DimensionPageURL, views),
		breakdown("top_referrers", events.DimensionReferrer, labeled),
		breakdown("countries", events.DimensionCountry, labeled),
		breakdown("browsers", events.DimensionBrowser, labeled.WithLimit(reportDeviceLimit)),
		breakdown("operating_systems", events.DimensionOS, labeled.WithLimit(reportDeviceLimit)),
		breakdown("devices", events.DimensionDevice, labeled.WithLimit(reportDeviceLimit)),
		task("hourly_visits", func(ctx context.Context) ([]timeframe.HourStat, error) { return e.HourlyCounts(ctx, views) }),
		task("daily_visits", func(ctx context.Context) ([]timeframe.DateStat, error) { return e.DailyCounts(ctx, daily) }),
	}

	results, err := e.run(ctx, "visit stats", tasks)
	if err != nil {
		return nil, err
	}

	return &VisitStats{
		TotalVisits:            data[int64](results, "total_visits"),
		UniqueVisitors:         data[int64](results, "unique_visitors"),
		PageViews:              data[int64](results, "page_views"),
		BounceRate:             data[float64](results, "bounce_rate"),
		AverageSessionDuration: data[float64](results, "average_session_duration"),
		TopPages:               data[[]events.GroupCount](results, "top_pages"),
		TopReferrers:           data[[]events.GroupCount](results, "top_referrers"),
		Countries:              data[[]events.GroupCount](results, "countries"),
		Browsers:               data[[]events.GroupCount](results, "browsers"),
		OperatingSystems:       data[[]events.GroupCount](results, "operating_systems"),
		Devices:                data[[]events.GroupCount](results, "devices"),
		HourlyVisits:           data[[]timeframe.HourStat](results, "hourly_visits"),
		DailyVisits:            data[[]timeframe.DateStat](results, "daily_visits"),
	}, nil
}

// run executes tasks on the pool. Any failed task fails the report.
func (e *Engine) run(ctx context.Context, report string, tasks []async.Task) (map[string]async.Result, error) {
	results := e.pool.Execute(ctx, tasks)
	if err := async.FirstError(tasks, results); err != nil {
		e.logger.Error("Report failed", slog.String("report", report), slog.Any("error", err))
		return nil, fmt.Errorf("error building %s: %w", report, err)
	}
	return results, nil
}

func task[T any](name string, fn func(context.Context) (T, error)) async.Task {
	return async.Task{
		Name: name,
		Execute: func(ctx context.Context) (any, error) {
			return fn(ctx)
		},
	}
}

func data[T any](results map[string]async.Result, name string) T {
	v, _ := results[name].Data.(T)
	return v
}
