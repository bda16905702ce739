// Package seeder fills a database with synthetic browsing sessions for
// development and load checks.
package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trackly/internal/events"
	"trackly/internal/timeframe"
)

// Seeder records realistic sessions through the aggregator, so entry and
// exit flags come out the same way live traffic produces them.
type Seeder struct {
	Logger     *slog.Logger
	EventCount int
	Days       int

	clock      *timeframe.FixedTimeProvider
	aggregator *events.Aggregator
	enricher   *events.Enricher
	rng        *rand.Rand
	now        time.Time
}

// NewSeeder creates a new seeder writing to db. Events are spread over the
// last days days before now.
func NewSeeder(db *gorm.DB, logger *slog.Logger, eventCount, days int, now time.Time, seed uint64) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if days < 1 {
		days = 30
	}
	clock := timeframe.NewFixedTimeProvider(now)
	store := events.NewGormStore(db, clock, logger)
	return &Seeder{
		Logger:     logger,
		EventCount: eventCount,
		Days:       days,
		clock:      clock,
		aggregator: events.NewAggregator(store, logger),
		enricher:   events.NewEnricher(nil, 0, true),
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:        now.UTC(),
	}
}

var journeyTemplates = [][]string{
	{"/", "/about", "/contact"},
	{"/", "/features", "/pricing", "/signup"},
	{"/", "/blog", "/blog/article-1", "/signup"},
	{"/pricing", "/features", "/signup"},
	{"/", "/products", "/products/widget-a", "/products/gadget-b", "/pricing"},
	{"/", "/docs", "/docs/getting-started", "/docs/api-reference"},
	{"/", "/blog", "/blog/article-1", "/blog/article-2"},
	{"/", "/signup"},
	{"/"},
	{"/blog/article-1"},
	{"/login", "/dashboard", "/settings"},
}

var goalEvents = []struct {
	name     string
	metadata map[string]any
}{
	{name: "newsletter_signup", metadata: map[string]any{"source": "footer"}},
	{name: "purchase", metadata: map[string]any{"price": 2999, "currency": "USD", "product": "premium_plan"}},
	{name: "demo_requested", metadata: map[string]any{"plan": "enterprise"}},
	{name: "account_created", metadata: map[string]any{"plan": "free", "source": "homepage"}},
	{name: "download_started", metadata: map[string]any{"filename": "whitepaper.pdf"}},
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
	"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (iPad; CPU OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
}

var referrers = []string{
	"", // Direct visit
	"https://www.google.com/search?q=analytics",
	"https://bing.com",
	"https://duckduckgo.com",
	"https://news.ycombinator.com/item?id=1",
	"https://twitter.com",
	"https://github.com",
	"https://some-other-website.com/blog/post",
}

var locations = []struct{ country, city, region string }{
	{"US", "New York", "NY"},
	{"US", "San Francisco", "CA"},
	{"DE", "Berlin", "BE"},
	{"GB", "London", "ENG"},
	{"ES", "Madrid", "MD"},
	{"BR", "São Paulo", "SP"},
	{"JP", "Tokyo", "13"},
}

// MaxSessionSpan is the longest a seeded session can run past its start.
func (s *Seeder) MaxSessionSpan() time.Duration {
	longest := 0
	for _, j := range journeyTemplates {
		longest = max(longest, len(j))
	}
	// one extra step for a goal event
	return time.Duration(longest) * 120 * time.Second
}

// Run records sessions until at least EventCount events exist. It returns
// the number of events written.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	start := time.Now()
	s.Logger.Info("Seeding events...", slog.Int("eventCount", s.EventCount), slog.Int("days", s.Days))

	created := 0
	sessions := 0
	for created < s.EventCount {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		n, err := s.seedSession(ctx)
		created += n
		if err != nil {
			return created, fmt.Errorf("failed to seed session: %w", err)
		}
		sessions++
	}

	s.Logger.Info("Seeding completed",
		slog.Int("events", created),
		slog.Int("sessions", sessions),
		slog.Duration("elapsed", time.Since(start)))
	return created, nil
}

func (s *Seeder) seedSession(ctx context.Context) (int, error) {
	journey := journeyTemplates[s.rng.IntN(len(journeyTemplates))]
	ua := userAgents[s.rng.IntN(len(userAgents))]
	ref := referrers[s.rng.IntN(len(referrers))]
	loc := locations[s.rng.IntN(len(locations))]
	sessionID := uuid.NewString()

	window := time.Duration(s.Days) * 24 * time.Hour
	at := s.now.Add(-time.Duration(s.rng.Int64N(int64(window))))

	created := 0
	record := func(e *events.Event) error {
		e.SessionID = sessionID
		e.Country, e.City, e.Region = loc.country, loc.city, loc.region
		// Seeded data has no request; the enricher only derives user agent fields.
		_ = s.enricher.Enrich(ctx, e, events.RequestMeta{UserAgent: ua})

		s.clock.Set(at)
		if _, err := s.aggregator.RecordEvent(ctx, e); err != nil {
			return err
		}
		created++
		at = at.Add(time.Duration(s.rng.IntN(110)+10) * time.Second)
		return nil
	}

	for i, page := range journey {
		e := &events.Event{PageURL: page, IsEntryPage: i == 0}
		if i == 0 {
			e.Referrer = ref
		}
		if err := record(e); err != nil {
			return created, err
		}
	}

	if s.rng.Float64() < 0.2 {
		goal := goalEvents[s.rng.IntN(len(goalEvents))]
		data, err := json.Marshal(goal.metadata)
		if err != nil {
			return created, err
		}
		e := &events.Event{
			PageURL:   journey[len(journey)-1],
			EventName: goal.name,
			EventData: string(data),
		}
		if err := record(e); err != nil {
			return created, err
		}
	}

	return created, nil
}
