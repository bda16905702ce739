package internal

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"

	v1 "trackly/api/v1"
	"trackly/internal/analytics"
	"trackly/internal/config"
	"trackly/internal/events"
	"trackly/internal/http"
	"trackly/internal/http/middleware"
	"trackly/internal/tags"
)

// Services are the collaborators the HTTP layer is built from.
type Services struct {
	Config     *config.Config
	Logger     *slog.Logger
	Reader     events.Reader
	Aggregator *events.Aggregator
	Enricher   *events.Enricher
	Engine     *analytics.Engine
	Tags       *tags.Service
}

// ServerConfig returns the cartridge server settings for the collector: the
// JSON error handler, no templates or static assets, and no Sec-Fetch-Site
// check since ingestion and admin tooling are called from outside a browser.
func ServerConfig(cfg *config.Config, logger *slog.Logger, dbManager cartridge.DBManager) *cartridge.ServerConfig {
	sc := cartridge.DefaultServerConfig()
	sc.Config = cfg
	sc.Logger = logger
	sc.DBManager = dbManager
	sc.ErrorHandler = http.ErrorHandler(logger)
	sc.WriteTimeout = 60 * time.Second
	sc.EnableTemplates = false
	sc.EnableStaticAssets = false
	sc.EnableSecFetchSite = false
	return sc
}

// NewServer creates the cartridge server with every route mounted.
func NewServer(s Services, dbManager cartridge.DBManager) (*cartridge.Server, error) {
	srv, err := cartridge.NewServer(ServerConfig(s.Config, s.Logger, dbManager))
	if err != nil {
		return nil, err
	}
	MountRoutes(srv, s)
	return srv, nil
}

// MountRoutes registers all routes on srv.
func MountRoutes(srv *cartridge.Server, s Services) {
	cfg := s.Config

	// Tracking is called cross-origin from instrumented sites.
	publicCORSConfig := &cors.Config{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowMethods: "POST,GET,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Referer, User-Agent, X-Request-ID",
	}

	// Only enforced in production; in development and test the limiter
	// would get in the way.
	trackLimiter := middleware.RateLimiter(cfg.RateLimitPerMinute, cfg.IsProduction, func(c *fiber.Ctx) error {
		return http.RespondError(c, s.Logger, fiber.NewError(fiber.StatusTooManyRequests, "Too many requests"))
	})

	// ============================================
	// ROUTE CONFIGURATIONS
	// ============================================

	// Event ingestion: CORS, per-client rate limit, bounded SQLite writers
	ingestConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CORSConfig:       publicCORSConfig,
		WriteConcurrency: true,
		CustomMiddleware: []fiber.Handler{trackLimiter},
	}

	// Reports only read
	readConfig := &cartridge.RouteConfig{
		EnableCORS: true,
		CORSConfig: publicCORSConfig,
	}

	writeConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CORSConfig:       publicCORSConfig,
		WriteConcurrency: true,
	}

	// The cors middleware answers preflights before this handler runs.
	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	track := &v1.TrackHandler{Aggregator: s.Aggregator, Enricher: s.Enricher, Logger: s.Logger}
	stats := &http.StatsHandler{Engine: s.Engine, Logger: s.Logger, DefaultDays: cfg.DefaultWindowDays}
	evts := &http.EventsHandler{
		Aggregator:     s.Aggregator,
		Reader:         s.Reader,
		Logger:         s.Logger,
		DefaultDays:    cfg.DefaultWindowDays,
		DefaultPerPage: cfg.DefaultEventsPerPage,
		MaxPerPage:     cfg.MaxEventsPerPage,
	}
	tagHandler := &http.TagsHandler{Service: s.Tags, Logger: s.Logger}
	health := &http.HealthHandler{Logger: s.Logger}

	// === HEALTH ===
	srv.Get("/_health", health.HealthIndexAction)
	srv.Head("/_health", health.HealthIndexAction)

	// === INGESTION ===
	srv.Post("/api/track", track.CreateEventAction, ingestConfig)
	srv.Options("/api/track", preflight, readConfig)
	srv.Post("/api/track/beacon", track.CreateEventBeaconAction, ingestConfig)
	srv.Options("/api/track/beacon", preflight, readConfig)

	// === TRACKING REPORTS ===
	srv.Get("/api/tracking/events", evts.ListEventsAction, readConfig)
	srv.Get("/api/tracking/export.csv", evts.ExportCSVAction, readConfig)
	srv.Get("/api/tracking/sessions", stats.SessionAnalyticsAction, readConfig)
	srv.Get("/api/tracking/sessions/:id", evts.SessionAction, readConfig)
	srv.Get("/api/tracking/stats", stats.TrackingStatsAction, readConfig)
	srv.Get("/api/tracking/realtime", stats.RealtimeAction, readConfig)

	// === VISIT STATS ===
	srv.Get("/api/stats", stats.VisitStatsAction, readConfig)
	srv.Get("/api/stats/top/:dimension", stats.TopAction, readConfig)

	// === TAGS ===
	srv.Post("/api/tags", tagHandler.CreateTagAction, writeConfig)
	srv.Options("/api/tags", preflight, readConfig)
	srv.Get("/api/tags", tagHandler.ListTagsAction, readConfig)
	srv.Get("/api/tags/:id", tagHandler.GetTagAction, readConfig)
	srv.Put("/api/tags/:id", tagHandler.UpdateTagAction, writeConfig)
	srv.Delete("/api/tags/:id", tagHandler.DeleteTagAction, writeConfig)
	srv.Options("/api/tags/:id", preflight, readConfig)
}
