package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackly/internal/analytics"
	"trackly/internal/events"
	"trackly/internal/testsupport"
)

func TestTopNRawAndLabeled(t *testing.T) {
	engine, agg, _ := setupEngine(t)

	testsupport.Record(t, agg, "s1", "/", testsupport.WithBrowser("chrome"), testsupport.WithReferrer("https://www.google.com/search?q=a"))
	testsupport.Record(t, agg, "s2", "/", testsupport.WithBrowser("chrome"), testsupport.WithReferrer("https://google.com/"))
	testsupport.Record(t, agg, "s3", "/", testsupport.WithBrowser("firefox"))
	testsupport.Record(t, agg, "s4", "/")
	testsupport.Record(t, agg, "s5", "/")

	t.Run("raw drops empty values", func(t *testing.T) {
		rows, err := engine.TopN(context.Background(), events.DimensionBrowser, lastMonth())
		require.NoError(t, err)
		assert.Equal(t, []events.GroupCount{
			{Name: "chrome", Count: 2},
			{Name: "firefox", Count: 1},
		}, rows)
	})

	t.Run("labeled folds empty values", func(t *testing.T) {
		p := lastMonth()
		p.Labeled = true
		rows, err := engine.TopN(context.Background(), events.DimensionBrowser, p)
		require.NoError(t, err)
		assert.Equal(t, []events.GroupCount{
			{Name: "Chrome", Count: 2},
			{Name: "Unknown", Count: 2},
			{Name: "Firefox", Count: 1},
		}, rows)
	})

	t.Run("labeled referrers merge by source", func(t *testing.T) {
		p := lastMonth()
		p.Labeled = true
		rows, err := engine.TopN(context.Background(), events.DimensionReferrer, p)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, int64(3), rows[0].Count)
		assert.Equal(t, "Direct / Unknown", rows[0].Name)
		assert.Equal(t, int64(2), rows[1].Count)
	})

	t.Run("limit", func(t *testing.T) {
		rows, err := engine.TopN(context.Background(), events.DimensionBrowser, lastMonth().WithLimit(1))
		require.NoError(t, err)
		assert.Equal(t, []events.GroupCount{{Name: "chrome", Count: 2}}, rows)
	})

	t.Run("unsupported dimension", func(t *testing.T) {
		_, err := engine.TopN(context.Background(), events.DimensionSession, lastMonth())
		assert.ErrorIs(t, err, events.ErrValidation)
	})
}

func TestTopNCountryLabels(t *testing.T) {
	engine, agg, _ := setupEngine(t)

	testsupport.Record(t, agg, "s1", "/", testsupport.WithCountry("US"))
	testsupport.Record(t, agg, "s2", "/", testsupport.WithCountry("United States"))
	testsupport.Record(t, agg, "s3", "/", testsupport.WithCountry("DE"))

	p := lastMonth()
	p.Labeled = true
	rows, err := engine.TopN(context.Background(), events.DimensionCountry, p)
	require.NoError(t, err)
	assert.Equal(t, []events.GroupCount{
		{Name: "United States", Count: 2},
		{Name: "Germany", Count: 1},
	}, rows)
}

func TestTopEntryAndExitPages(t *testing.T) {
	engine, agg, clock := setupEngine(t)

	testsupport.Record(t, agg, "s1", "/", testsupport.AsEntry())
	clock.Advance(time.Second)
	testsupport.Record(t, agg, "s1", "/pricing")
	testsupport.Record(t, agg, "s2", "/", testsupport.AsEntry())
	clock.Advance(time.Second)
	testsupport.Record(t, agg, "s2", "/docs")
	clock.Advance(time.Second)
	testsupport.Record(t, agg, "s2", "/pricing")

	entry, err := engine.TopEntryPages(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, []events.GroupCount{{Name: "/", Count: 2}}, entry)

	exit, err := engine.TopExitPages(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, []events.GroupCount{{Name: "/pricing", Count: 2}}, exit)
}

func TestRealtime(t *testing.T) {
	engine, agg, clock := setupEngine(t)

	testsupport.Record(t, agg, "stale", "/old")
	clock.Advance(2 * time.Hour)
	testsupport.Record(t, agg, "early", "/pricing")
	clock.Advance(45 * time.Minute)
	testsupport.Record(t, agg, "live", "/docs")
	testsupport.Record(t, agg, "live", "/docs")
	testsupport.Record(t, agg, "live", "/docs", testsupport.WithName("click"))

	snap, err := engine.Realtime(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), snap.ActiveSessions)
	assert.Equal(t, int64(3), snap.HourlyViews)
	require.NotNil(t, snap.PopularPageLastHour)
	assert.Equal(t, "/docs", *snap.PopularPageLastHour)
	assert.Equal(t, []events.GroupCount{
		{Name: "/docs", Count: 2},
		{Name: "/old", Count: 1},
		{Name: "/pricing", Count: 1},
	}, snap.TopPagesToday)
	require.Len(t, snap.RecentEvents, 5)
	assert.Equal(t, "click", *snap.RecentEvents[0].EventName)
}

func TestRealtimeEmpty(t *testing.T) {
	engine, _, _ := setupEngine(t)

	snap, err := engine.Realtime(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.ActiveSessions)
	assert.Nil(t, snap.PopularPageLastHour)
	assert.Empty(t, snap.RecentEvents)
	assert.Empty(t, snap.TopPagesToday)
}

func TestActiveWindowOption(t *testing.T) {
	store, clock := testsupport.SetupTestStore(t)
	agg := events.NewAggregator(store, testsupport.GetLogger())
	engine := analytics.NewEngine(store, nil, testsupport.GetLogger(), analytics.WithActiveWindow(5*time.Minute))

	testsupport.Record(t, agg, "s1", "/")
	clock.Advance(10 * time.Minute)

	snap, err := engine.Realtime(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.ActiveSessions)
}
