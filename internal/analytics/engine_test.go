package analytics_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackly/internal/analytics"
	"trackly/internal/events"
	"trackly/internal/pkg/async"
	"trackly/internal/testsupport"
	"trackly/internal/timeframe"
)

func setupEngine(t *testing.T) (*analytics.Engine, *events.Aggregator, *timeframe.FixedTimeProvider) {
	t.Helper()
	store, clock := testsupport.SetupTestStore(t)
	engine := analytics.NewEngine(store, async.NewPool(2), testsupport.GetLogger())
	return engine, events.NewAggregator(store, testsupport.GetLogger()), clock
}

func lastMonth() analytics.QueryParams {
	return analytics.NewQueryParams(timeframe.LastDays(30))
}

func TestBounceRateCountsSinglePageSessions(t *testing.T) {
	engine, agg, clock := setupEngine(t)

	testsupport.Record(t, agg, "s1", "/")
	clock.Advance(time.Minute)
	testsupport.Record(t, agg, "s1", "/pricing")
	testsupport.Record(t, agg, "s2", "/")
	clock.Advance(time.Minute)
	testsupport.Record(t, agg, "s2", "/docs")
	testsupport.Record(t, agg, "s3", "/blog")

	rate, err := engine.BounceRate(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, 33.33, rate)

	sessions, err := engine.UniqueSessions(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, int64(3), sessions)
}

func TestBounceRateIgnoresCustomEvents(t *testing.T) {
	engine, agg, _ := setupEngine(t)

	// One page view plus a click is still a bounce.
	testsupport.Record(t, agg, "s1", "/", testsupport.WithName("page_view"))
	testsupport.Record(t, agg, "s1", "/", testsupport.WithName("click"))
	// Custom events only: no page views, so not a session for the ratio.
	testsupport.Record(t, agg, "s2", "/", testsupport.WithName("signup"))

	rate, err := engine.BounceRate(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, 100.0, rate)
}

func TestBounceRateWithoutSessions(t *testing.T) {
	engine, _, _ := setupEngine(t)

	rate, err := engine.BounceRate(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, 0.0, rate)
}

func TestTotalsWithOnlyCustomEvents(t *testing.T) {
	engine, agg, _ := setupEngine(t)

	testsupport.Record(t, agg, "only", "/signup", testsupport.WithName("signup"))

	views, err := engine.TotalPageViews(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, int64(0), views)

	custom, err := engine.TotalCustomEvents(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, int64(1), custom)

	sessions, err := engine.UniqueSessions(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessions)
}

func TestTopExitPagesFollowsCustomEvent(t *testing.T) {
	store, clock := testsupport.SetupTestStore(t)
	engine := analytics.NewEngine(store, async.NewPool(2), testsupport.GetLogger())
	agg := events.NewAggregator(store, testsupport.GetLogger())

	testsupport.Record(t, agg, "s1", "/a")
	clock.Advance(time.Minute)
	testsupport.Record(t, agg, "s1", "/b", testsupport.WithName("click"))

	list, err := store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].IsExitPage)
	assert.True(t, list[1].IsExitPage)

	exits, err := engine.TopExitPages(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, []events.GroupCount{{Name: "/b", Count: 1}}, exits)
}

func TestTotalEventsByKind(t *testing.T) {
	engine, agg, _ := setupEngine(t)

	testsupport.Record(t, agg, "s1", "/")
	testsupport.Record(t, agg, "s1", "/", testsupport.WithName("click"))
	testsupport.Record(t, agg, "", "/legacy")

	tests := []struct {
		kind events.EventKind
		want int64
	}{
		{events.KindAll, 3},
		{events.KindPageViews, 2},
		{events.KindCustomEvents, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			n, err := engine.TotalEvents(context.Background(), lastMonth().WithKind(tt.kind))
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestAverageSessionDurationExcludesSingleEventSessions(t *testing.T) {
	engine, agg, clock := setupEngine(t)

	for i := range 5 {
		testsupport.Record(t, agg, fmt.Sprintf("single-%d", i), "/")
		clock.Advance(time.Second)
	}

	avg, err := engine.AverageSessionDuration(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	testsupport.Record(t, agg, "pair", "/")
	clock.Advance(90 * time.Second)
	testsupport.Record(t, agg, "pair", "/pricing")

	avg, err = engine.AverageSessionDuration(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, 1.5, avg)
}

func TestAverageSessionDurationRespectsWindow(t *testing.T) {
	engine, agg, clock := setupEngine(t)

	testsupport.Record(t, agg, "old", "/")
	clock.Advance(10 * time.Minute)
	testsupport.Record(t, agg, "old", "/next")
	clock.Advance(3 * 24 * time.Hour)

	avg, err := engine.AverageSessionDuration(context.Background(), analytics.NewQueryParams(timeframe.LastDays(1)))
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	avg, err = engine.AverageSessionDuration(context.Background(), lastMonth())
	require.NoError(t, err)
	assert.Equal(t, 10.0, avg)
}

func TestInvalidWindowIsValidationError(t *testing.T) {
	engine, _, _ := setupEngine(t)

	start := testsupport.ReferenceTime
	end := start.Add(-time.Hour)

	windows := map[string]timeframe.Window{
		"too many days":   timeframe.LastDays(400),
		"start after end": timeframe.Between(start, end),
		"negative days":   {Days: -1},
	}
	for name, w := range windows {
		t.Run(name, func(t *testing.T) {
			_, err := engine.TotalPageViews(context.Background(), analytics.NewQueryParams(w))
			require.Error(t, err)
			assert.ErrorIs(t, err, events.ErrValidation)

			_, err = engine.VisitStats(context.Background(), analytics.NewQueryParams(w))
			assert.ErrorIs(t, err, events.ErrValidation)
		})
	}
}

func TestBounceRateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.MaxSize = 8
	properties := gopter.NewProperties(parameters)

	properties.Property("bounce rate stays within 0..100 and repeated queries agree", prop.ForAll(
		func(sizes []int) bool {
			engine, agg, clock := setupEngine(t)
			ctx := context.Background()
			for i, n := range sizes {
				session := fmt.Sprintf("s%d", i)
				for j := 0; j < n; j++ {
					e := &events.Event{SessionID: session, PageURL: fmt.Sprintf("/p%d", j)}
					if j%2 == 1 {
						e.EventName = "click"
					}
					if _, err := agg.RecordEvent(ctx, e); err != nil {
						return false
					}
					clock.Advance(time.Second)
				}
			}

			rate, err := engine.BounceRate(ctx, lastMonth())
			if err != nil || rate < 0 || rate > 100 {
				return false
			}

			queries := []func() (any, error){
				func() (any, error) { return engine.BounceRate(ctx, lastMonth()) },
				func() (any, error) { return engine.AverageSessionDuration(ctx, lastMonth()) },
				func() (any, error) { return engine.TopN(ctx, events.DimensionPageURL, lastMonth()) },
				func() (any, error) { return engine.DailyCounts(ctx, lastMonth()) },
			}
			for _, query := range queries {
				first, err := query()
				if err != nil {
					return false
				}
				second, err := query()
				if err != nil || !assert.ObjectsAreEqual(first, second) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}
