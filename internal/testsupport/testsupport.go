// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trackly/internal/events"
	"trackly/internal/tags"
	"trackly/internal/timeframe"
)

// ReferenceTime is where test clocks start: Friday 15 March 2024, 12:00 UTC.
var ReferenceTime = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// allModels returns every model for migration
func allModels() []any {
	return []any{
		&events.Event{},
		&tags.Tag{},
	}
}

// SetupTestDB opens a fresh, migrated in-memory database for the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// cache=shared lets every pooled connection see the same in-memory database
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitized, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestStore returns a store over a fresh database and the clock that
// stamps its appends, starting at ReferenceTime.
func SetupTestStore(t *testing.T) (*events.GormStore, *timeframe.FixedTimeProvider) {
	t.Helper()
	clock := timeframe.NewFixedTimeProvider(ReferenceTime)
	return events.NewGormStore(SetupTestDB(t), clock, GetLogger()), clock
}

// GetLogger returns a logger that discards output.
func GetLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// EventOption customises an event built by Record.
type EventOption func(*events.Event)

func WithName(name string) EventOption {
	return func(e *events.Event) { e.EventName = name }
}

func WithReferrer(ref string) EventOption {
	return func(e *events.Event) { e.Referrer = ref }
}

func WithBrowser(browser string) EventOption {
	return func(e *events.Event) { e.Browser = browser }
}

func WithCountry(country string) EventOption {
	return func(e *events.Event) { e.Country = country }
}

func WithDevice(device string) EventOption {
	return func(e *events.Event) { e.Device = device }
}

func AsEntry() EventOption {
	return func(e *events.Event) { e.IsEntryPage = true }
}

func AsExit() EventOption {
	return func(e *events.Event) { e.IsExitPage = true }
}

// Record appends an event through the aggregator and fails the test on error.
func Record(t *testing.T, agg *events.Aggregator, sessionID, pageURL string, opts ...EventOption) events.Recorded {
	t.Helper()
	e := &events.Event{SessionID: sessionID, PageURL: pageURL}
	for _, opt := range opts {
		opt(e)
	}
	rec, err := agg.RecordEvent(context.Background(), e)
	require.NoError(t, err)
	return rec
}
