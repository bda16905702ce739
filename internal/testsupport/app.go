package testsupport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	cartridgetest "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"

	"trackly/internal"
	"trackly/internal/analytics"
	"trackly/internal/config"
	"trackly/internal/events"
	"trackly/internal/pkg/async"
	"trackly/internal/pkg/geoip"
	"trackly/internal/tags"
	"trackly/internal/timeframe"
)

// TestApp is a fully wired server over a fresh test database.
type TestApp struct {
	Server     *fiber.App
	Config     *config.Config
	Store      *events.GormStore
	Clock      *timeframe.FixedTimeProvider
	Aggregator *events.Aggregator
	Tags       *tags.Service
}

type appOptions struct {
	resolver geoip.Resolver
	config   func(*config.Config)
}

type AppOption func(*appOptions)

// WithResolver enables location lookups through r.
func WithResolver(r geoip.Resolver) AppOption {
	return func(o *appOptions) { o.resolver = r }
}

// WithConfig adjusts the test configuration before the server is built.
func WithConfig(fn func(*config.Config)) AppOption {
	return func(o *appOptions) { o.config = fn }
}

// CreateTestApp builds the HTTP server the way the binary does, but over an
// in-memory database and a fixed clock. Location lookups are off unless
// WithResolver is given.
func CreateTestApp(t *testing.T, opts ...AppOption) *TestApp {
	t.Helper()

	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	t.Setenv("TRACKLY_ENV", config.Test)
	cfg, err := config.Load()
	require.NoError(t, err)
	if o.config != nil {
		o.config(cfg)
	}

	db := SetupTestDB(t)
	clock := timeframe.NewFixedTimeProvider(ReferenceTime)
	logger := GetLogger()
	store := events.NewGormStore(db, clock, logger)
	agg := events.NewAggregator(store, logger)
	tagService := tags.NewService(db, logger)

	srv, err := internal.NewServer(internal.Services{
		Config:     cfg,
		Logger:     logger,
		Reader:     store,
		Aggregator: agg,
		Enricher:   events.NewEnricher(o.resolver, cfg.GeoTimeout, cfg.DeriveUserAgent),
		Engine:     analytics.NewEngine(store, async.NewPool(cfg.ReportWorkers), logger),
		Tags:       tagService,
	}, cartridgetest.NewTestDBManager(db))
	require.NoError(t, err)

	return &TestApp{
		Server:     srv.App(),
		Config:     cfg,
		Store:      store,
		Clock:      clock,
		Aggregator: agg,
		Tags:       tagService,
	}
}

// Do sends a request to the server. A non-nil body is encoded as JSON unless
// it is already a string.
func (a *TestApp) Do(t *testing.T, method, path string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.Server.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}
