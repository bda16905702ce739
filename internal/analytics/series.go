package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"trackly/internal/events"
	"trackly/internal/timeframe"
)

// DailyCounts buckets events of p.Kind by UTC calendar day in p.Order.
// Days without events are absent.
func (e *Engine) DailyCounts(ctx context.Context, p QueryParams) ([]timeframe.DateStat, error) {
	f, err := e.filter(p)
	if err != nil {
		return nil, err
	}

	rows, err := e.reader.GroupCount(ctx, f, events.DimensionDay, events.GroupOptions{
		SortBy:     events.SortByName,
		Descending: p.Order == timeframe.OrderDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching daily counts: %w", err)
	}

	stats := make([]timeframe.DateStat, len(rows))
	for i, r := range rows {
		stats[i] = timeframe.DateStat{Date: r.Name, Count: r.Count}
	}
	return stats, nil
}

// HourlyCounts covers the 24 hours before now and groups events of p.Kind
// by hour of day, so events a day apart share a bucket. p.Window is ignored.
func (e *Engine) HourlyCounts(ctx context.Context, p QueryParams) ([]timeframe.HourStat, error) {
	now := e.reader.Now().UTC()
	f := events.Filter{From: now.Add(-24 * time.Hour), To: now, Kind: p.Kind}

	rows, err := e.reader.GroupCount(ctx, f, events.DimensionHourOfDay, events.GroupOptions{SortBy: events.SortByName})
	if err != nil {
		return nil, fmt.Errorf("error fetching hourly counts: %w", err)
	}

	stats := make([]timeframe.HourStat, 0, len(rows))
	for _, r := range rows {
		hour, err := strconv.Atoi(r.Name)
		if err != nil {
			e.logger.Warn("Skipping unparseable hour bucket", slog.String("bucket", r.Name))
			continue
		}
		stats = append(stats, timeframe.HourStat{Hour: hour, Count: r.Count})
	}
	return stats, nil
}
