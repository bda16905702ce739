package events

import (
	"context"
	"time"
)

// Recorder is the write side the Aggregator needs.
type Recorder interface {
	// Append persists e, filling in ID and Timestamp.
	Append(ctx context.Context, e *Event) error
	// ListBySession returns a session's events in ascending (timestamp, id) order.
	ListBySession(ctx context.Context, sessionID string) ([]Event, error)
	// SetExitFlag sets is_exit_page on every event of the session except excludeID.
	SetExitFlag(ctx context.Context, sessionID string, excludeID uint, value bool) error
}

// Reader is the aggregation surface the statistics engine queries.
type Reader interface {
	Now() time.Time
	Count(ctx context.Context, f Filter) (int64, error)
	DistinctCount(ctx context.Context, f Filter, dim Dimension) (int64, error)
	GroupCount(ctx context.Context, f Filter, dim Dimension, opts GroupOptions) ([]GroupCount, error)
	SessionStats(ctx context.Context, f Filter) ([]SessionStat, error)
	Query(ctx context.Context, f Filter, page Page) ([]Event, error)
}

// Store is both sides, implemented by GormStore.
type Store interface {
	Recorder
	Reader
}

// Filter is the predicate shared by every read. Zero fields do not filter.
type Filter struct {
	From           time.Time
	To             time.Time
	Kind           EventKind
	SessionID      string
	EntryPagesOnly bool
	ExitPagesOnly  bool
}

// Dimension names a groupable column or a time bucket.
type Dimension string

const (
	DimensionPageURL   Dimension = "page_url"
	DimensionReferrer  Dimension = "referrer"
	DimensionBrowser   Dimension = "browser"
	DimensionOS        Dimension = "os"
	DimensionDevice    Dimension = "device"
	DimensionCountry   Dimension = "country"
	DimensionCity      Dimension = "city"
	DimensionEventName Dimension = "event_name"
	DimensionSession   Dimension = "session_id"

	// UTC calendar day, YYYY-MM-DD.
	DimensionDay Dimension = "day"
	// Hour of day, 00-23. Different days share a bucket.
	DimensionHourOfDay Dimension = "hour_of_day"
)

// IsBucket reports whether the dimension is a time bucket rather than a column.
func (d Dimension) IsBucket() bool {
	return d == DimensionDay || d == DimensionHourOfDay
}

// ParseDimension accepts the column dimensions exposed by topN.
func ParseDimension(s string) (Dimension, bool) {
	switch d := Dimension(s); d {
	case DimensionPageURL, DimensionReferrer, DimensionBrowser, DimensionOS,
		DimensionDevice, DimensionCountry, DimensionCity, DimensionEventName:
		return d, true
	}
	return "", false
}

type SortBy int

const (
	SortByCount SortBy = iota // count desc, name asc
	SortByName
)

// GroupOptions shapes a grouped count.
type GroupOptions struct {
	Limit      int
	SortBy     SortBy
	Descending bool
	// IncludeEmpty folds NULL and empty values into one "" group instead of
	// dropping them.
	IncludeEmpty bool
}

// GroupCount is one group of a grouped count.
type GroupCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// SessionStat summarises one session inside a filter.
type SessionStat struct {
	SessionID       string
	Events          int64
	PageViews       int64
	DurationSeconds float64
}

// Page selects a slice of a newest-first listing.
type Page struct {
	Offset int
	Limit  int
}
