package timeframe

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultDays = 30
	MaxDays     = 365
)

// SQLite strftime formats for the buckets reports group by. Timestamps are
// stored in UTC, so buckets are UTC days and hours.
const (
	DailyBucketFormat   = "%Y-%m-%d"
	HourOfDayFormat     = "%H"
	UserFacingDayFormat = "2006-01-02"
)

// ErrInvalidWindow is returned for windows that can never match a valid range.
var ErrInvalidWindow = errors.New("invalid window")

// DateStat is one calendar-day bucket.
type DateStat struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// HourStat is one hour-of-day bucket (0-23).
type HourStat struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// Order controls the direction of time-bucketed series.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder accepts "asc" or "desc" and falls back to def for anything else.
func ParseOrder(s string, def Order) Order {
	switch Order(s) {
	case OrderAsc, OrderDesc:
		return Order(s)
	default:
		return def
	}
}

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider returns a settable instant. Safe for concurrent use.
type FixedTimeProvider struct {
	mu sync.Mutex
	at time.Time
}

func NewFixedTimeProvider(at time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{at: at}
}

func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.at.In(loc)
}

// Set moves the clock to at.
func (p *FixedTimeProvider) Set(at time.Time) {
	p.mu.Lock()
	p.at = at
	p.mu.Unlock()
}

// Advance moves the clock forward by d.
func (p *FixedTimeProvider) Advance(d time.Duration) {
	p.mu.Lock()
	p.at = p.at.Add(d)
	p.mu.Unlock()
}

// TimeFrame is a resolved, closed interval [From, To] in UTC.
type TimeFrame struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the frame, both ends inclusive.
func (tf TimeFrame) Contains(t time.Time) bool {
	return !t.Before(tf.From) && !t.After(tf.To)
}

// Window is either a trailing number of days ending now, or an explicit
// [Start, End] range. A zero Window means the default trailing window.
type Window struct {
	Days  int
	Start *time.Time
	End   *time.Time
}

// LastDays returns a trailing window of n days.
func LastDays(n int) Window {
	return Window{Days: n}
}

// Between returns an explicit window.
func Between(start, end time.Time) Window {
	return Window{Start: &start, End: &end}
}

// Validate checks the window without resolving it.
func (w Window) Validate() error {
	if w.Days != 0 && (w.Days < 1 || w.Days > MaxDays) {
		return fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidWindow, MaxDays, w.Days)
	}
	if w.Start != nil && w.End != nil && w.Start.After(*w.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow,
			w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
	}
	return nil
}

// Resolve turns the window into a concrete frame using now as the default end.
// With only Start set the frame runs from Start to now; with only End set it
// covers the trailing days before End.
func (w Window) Resolve(now time.Time) (TimeFrame, error) {
	if err := w.Validate(); err != nil {
		return TimeFrame{}, err
	}

	to := now.UTC()
	if w.End != nil {
		to = w.End.UTC()
	}

	var from time.Time
	if w.Start != nil {
		from = w.Start.UTC()
	} else {
		days := w.Days
		if days == 0 {
			days = DefaultDays
		}
		from = to.Add(-time.Duration(days) * 24 * time.Hour)
	}

	if from.After(to) {
		return TimeFrame{}, fmt.Errorf("%w: start is after end", ErrInvalidWindow)
	}
	return TimeFrame{From: from, To: to}, nil
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
