package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackly/internal/config"
	"trackly/internal/pkg/geoip"
	"trackly/internal/testsupport"
)

type trackResponse struct {
	Success   bool      `json:"success"`
	EventID   uint      `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field"`
}

func TestCreateEvent(t *testing.T) {
	app := testsupport.CreateTestApp(t)

	status, body := app.Do(t, http.MethodPost, "/api/track", map[string]any{
		"session_id":    "s1",
		"page_url":      "/pricing",
		"is_entry_page": true,
		"country":       "US",
	},
		"User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Referer", "https://www.google.com/",
	)
	require.Equal(t, http.StatusCreated, status, string(body))

	var resp trackResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, resp.Success)
	assert.NotZero(t, resp.EventID)
	assert.True(t, resp.Timestamp.Equal(testsupport.ReferenceTime))

	list, err := app.Store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "https://www.google.com/", list[0].Referrer)
	assert.NotEmpty(t, list[0].Browser)
	assert.True(t, list[0].IsEntryPage)
	assert.True(t, list[0].IsExitPage)
}

func TestCreateEventKeepsCustomEventData(t *testing.T) {
	app := testsupport.CreateTestApp(t)

	status, _ := app.Do(t, http.MethodPost, "/api/track", map[string]any{
		"session_id": "s1",
		"page_url":   "/checkout",
		"event_name": "purchase",
		"event_data": map[string]any{"amount": 42},
	})
	require.Equal(t, http.StatusCreated, status)

	list, err := app.Store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "purchase", list[0].EventName)
	assert.Equal(t, float64(42), list[0].Data()["amount"])
}

func TestCreateEventValidation(t *testing.T) {
	app := testsupport.CreateTestApp(t)

	status, body := app.Do(t, http.MethodPost, "/api/track", map[string]any{"session_id": "s1"})
	require.Equal(t, http.StatusBadRequest, status)

	var resp errorBody
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "page_url", resp.Field)

	status, _ = app.Do(t, http.MethodPost, "/api/track", "not json")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreateEventMovesExitFlag(t *testing.T) {
	app := testsupport.CreateTestApp(t)

	for _, page := range []string{"/", "/pricing", "/signup"} {
		status, _ := app.Do(t, http.MethodPost, "/api/track", map[string]any{"session_id": "s1", "page_url": page})
		require.Equal(t, http.StatusCreated, status)
		app.Clock.Advance(time.Minute)
	}

	list, err := app.Store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.False(t, list[0].IsExitPage)
	assert.False(t, list[1].IsExitPage)
	assert.True(t, list[2].IsExitPage)
}

func TestCreateEventWhenGeoLookupTimesOut(t *testing.T) {
	var calls atomic.Int32
	slow := geoip.ResolverFunc(func(ctx context.Context, ip string) (geoip.Location, error) {
		calls.Add(1)
		<-ctx.Done()
		return geoip.Location{}, ctx.Err()
	})
	app := testsupport.CreateTestApp(t,
		testsupport.WithResolver(slow),
		testsupport.WithConfig(func(c *config.Config) { c.GeoTimeout = 50 * time.Millisecond }),
	)

	start := time.Now()
	status, body := app.Do(t, http.MethodPost, "/api/track",
		map[string]any{"session_id": "s1", "page_url": "/"},
		"X-Forwarded-For", "203.0.113.5",
	)
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int32(1), calls.Load())

	list, err := app.Store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Country)
	assert.Equal(t, "203.0.113.5", list[0].IPAddress)
}

func TestCreateEventResolvesLocation(t *testing.T) {
	fixed := geoip.ResolverFunc(func(ctx context.Context, ip string) (geoip.Location, error) {
		return geoip.Location{Country: "DE", City: "Berlin", Region: "BE"}, nil
	})
	app := testsupport.CreateTestApp(t, testsupport.WithResolver(fixed))

	status, _ := app.Do(t, http.MethodPost, "/api/track",
		map[string]any{"session_id": "s1", "page_url": "/"},
		"X-Forwarded-For", "8.8.8.8",
	)
	require.Equal(t, http.StatusCreated, status)

	list, err := app.Store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "DE", list[0].Country)
	assert.Equal(t, "Berlin", list[0].City)
}

func TestCreateEventBeacon(t *testing.T) {
	app := testsupport.CreateTestApp(t)

	status, _ := app.Do(t, http.MethodPost, "/api/track/beacon",
		`{"session_id":"s1","page_url":"/leaving"}`,
		"Content-Type", "text/plain;charset=UTF-8",
	)
	assert.Equal(t, http.StatusAccepted, status)

	list, err := app.Store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/leaving", list[0].PageURL)

	// Invalid payloads are dropped quietly.
	status, _ = app.Do(t, http.MethodPost, "/api/track/beacon", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusAccepted, status)
	status, _ = app.Do(t, http.MethodPost, "/api/track/beacon", "garbage")
	assert.Equal(t, http.StatusAccepted, status)
}

func TestCreateEventRateLimitedPerClient(t *testing.T) {
	app := testsupport.CreateTestApp(t, testsupport.WithConfig(func(c *config.Config) {
		c.Environment = config.Production
		c.RateLimitPerMinute = 1
	}))
	track := func(forwardedFor string) (int, []byte) {
		return app.Do(t, http.MethodPost, "/api/track",
			map[string]any{"session_id": forwardedFor, "page_url": "/"},
			"X-Forwarded-For", forwardedFor,
		)
	}

	status, _ := track("203.0.113.5")
	require.Equal(t, http.StatusCreated, status)

	status, body := track("203.0.113.5")
	require.Equal(t, http.StatusTooManyRequests, status)
	var resp errorBody
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "RATE_LIMITED", resp.Code)

	// A second visitor behind the same proxy has its own budget.
	status, _ = track("198.51.100.7")
	assert.Equal(t, http.StatusCreated, status)
}
