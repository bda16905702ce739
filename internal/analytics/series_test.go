package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackly/internal/events"
	"trackly/internal/testsupport"
	"trackly/internal/timeframe"
)

func TestDailyCountsOrder(t *testing.T) {
	engine, agg, clock := setupEngine(t)

	testsupport.Record(t, agg, "s1", "/")
	clock.Advance(24 * time.Hour)
	testsupport.Record(t, agg, "s2", "/")
	testsupport.Record(t, agg, "s2", "/", testsupport.WithName("click"))
	clock.Advance(24 * time.Hour)
	testsupport.Record(t, agg, "s3", "/")

	p := lastMonth()
	asc, err := engine.DailyCounts(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []timeframe.DateStat{
		{Date: "2024-03-15", Count: 1},
		{Date: "2024-03-16", Count: 2},
		{Date: "2024-03-17", Count: 1},
	}, asc)

	p.Order = timeframe.OrderDesc
	desc, err := engine.DailyCounts(context.Background(), p.WithKind(events.KindPageViews))
	require.NoError(t, err)
	assert.Equal(t, []timeframe.DateStat{
		{Date: "2024-03-17", Count: 1},
		{Date: "2024-03-16", Count: 1},
		{Date: "2024-03-15", Count: 1},
	}, desc)
}

func TestDailyCountsEmpty(t *testing.T) {
	engine, _, _ := setupEngine(t)

	stats, err := engine.DailyCounts(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestHourlyCountsMergeHourOfDay(t *testing.T) {
	engine, agg, clock := setupEngine(t)

	// 12:00 on the 15th and 12:00 on the 16th are both inside the last 24
	// hours once the clock reads 12:00 on the 16th.
	testsupport.Record(t, agg, "s1", "/")
	clock.Advance(6 * time.Hour)
	testsupport.Record(t, agg, "s1", "/evening")
	clock.Advance(18 * time.Hour)
	testsupport.Record(t, agg, "s2", "/")

	stats, err := engine.HourlyCounts(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, []timeframe.HourStat{
		{Hour: 12, Count: 2},
		{Hour: 18, Count: 1},
	}, stats)
}

func TestHourlyCountsIgnoresOlderEvents(t *testing.T) {
	engine, agg, clock := setupEngine(t)

	testsupport.Record(t, agg, "old", "/")
	clock.Advance(25 * time.Hour)
	testsupport.Record(t, agg, "new", "/", testsupport.WithName("click"))

	stats, err := engine.HourlyCounts(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, []timeframe.HourStat{{Hour: 13, Count: 1}}, stats)

	views, err := engine.HourlyCounts(context.Background(), lastMonth().WithKind(events.KindPageViews))
	require.NoError(t, err)
	assert.Empty(t, views)
}
