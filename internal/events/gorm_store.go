package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"trackly/internal/timeframe"
)

const pageViewCondition = "(event_name IS NULL OR event_name = '' OR event_name = '" + PageViewEventName + "')"

// GormStore is the relational event store.
type GormStore struct {
	db     *gorm.DB
	clock  timeframe.TimeProvider
	logger *slog.Logger
}

// NewGormStore wraps db. A nil clock uses the system clock.
func NewGormStore(db *gorm.DB, clock timeframe.TimeProvider, logger *slog.Logger) *GormStore {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GormStore{db: db, clock: clock, logger: logger}
}

var _ Store = (*GormStore)(nil)

// Now is the store's clock in UTC; it stamps appends and ends default windows.
func (s *GormStore) Now() time.Time {
	return s.clock.Now(time.UTC)
}

func (s *GormStore) Append(ctx context.Context, e *Event) error {
	e.ID = 0
	e.Timestamp = s.Now()

	var createErr error
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		createErr = tx.Create(e).Error
		return createErr
	})
	if createErr != nil {
		return classifyStoreError("error appending event", createErr)
	}
	return classifyStoreError("error appending event", err)
}

func (s *GormStore) ListBySession(ctx context.Context, sessionID string) ([]Event, error) {
	var list []Event
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, classifyStoreError("error listing session events", err)
	}
	return list, nil
}

func (s *GormStore) SetExitFlag(ctx context.Context, sessionID string, excludeID uint, value bool) error {
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Model(&Event{}).
			Where("session_id = ? AND id <> ? AND is_exit_page <> ?", sessionID, excludeID, value).
			Update("is_exit_page", value).Error
	})
	return classifyStoreError("error updating exit pages", err)
}

func (s *GormStore) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	if err := s.scoped(ctx, f).Count(&n).Error; err != nil {
		return 0, classifyStoreError("error counting events", err)
	}
	return n, nil
}

func (s *GormStore) DistinctCount(ctx context.Context, f Filter, dim Dimension) (int64, error) {
	if dim.IsBucket() {
		return 0, fmt.Errorf("distinct count over bucket %q is not supported", dim)
	}
	col := string(dim)
	var n int64
	err := s.scoped(ctx, f).
		Where(nonEmpty(col)).
		Select("COUNT(DISTINCT " + col + ")").
		Scan(&n).Error
	if err != nil {
		return 0, classifyStoreError(fmt.Sprintf("error counting distinct %s", dim), err)
	}
	return n, nil
}

func (s *GormStore) GroupCount(ctx context.Context, f Filter, dim Dimension, opts GroupOptions) ([]GroupCount, error) {
	q := s.scoped(ctx, f)

	var expr string
	switch dim {
	case DimensionDay:
		expr = fmt.Sprintf("strftime('%s', timestamp)", timeframe.DailyBucketFormat)
	case DimensionHourOfDay:
		expr = fmt.Sprintf("strftime('%s', timestamp)", timeframe.HourOfDayFormat)
	default:
		col := string(dim)
		if opts.IncludeEmpty {
			expr = "COALESCE(" + col + ", '')"
		} else {
			expr = col
			q = q.Where(nonEmpty(col))
		}
	}

	q = q.Select(expr + " AS name, COUNT(*) AS count").Group("name")

	dir := "ASC"
	if opts.Descending {
		dir = "DESC"
	}
	switch opts.SortBy {
	case SortByName:
		q = q.Order("name " + dir)
	default:
		q = q.Order("count DESC").Order("name ASC")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var rows []GroupCount
	if err := q.Scan(&rows).Error; err != nil {
		return nil, classifyStoreError(fmt.Sprintf("error grouping events by %s", dim), err)
	}
	if rows == nil {
		rows = []GroupCount{}
	}
	return rows, nil
}

func (s *GormStore) SessionStats(ctx context.Context, f Filter) ([]SessionStat, error) {
	var rows []SessionStat
	err := s.scoped(ctx, f).
		Where(nonEmpty("session_id")).
		Select(`session_id,
			COUNT(*) AS events,
			SUM(CASE WHEN ` + pageViewCondition + ` THEN 1 ELSE 0 END) AS page_views,
			(JULIANDAY(MAX(timestamp)) - JULIANDAY(MIN(timestamp))) * 86400.0 AS duration_seconds`).
		Group("session_id").
		Scan(&rows).Error
	if err != nil {
		return nil, classifyStoreError("error fetching session stats", err)
	}
	return rows, nil
}

func (s *GormStore) Query(ctx context.Context, f Filter, page Page) ([]Event, error) {
	q := s.scoped(ctx, f).Order("timestamp DESC, id DESC")
	if page.Offset > 0 {
		q = q.Offset(page.Offset)
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}

	var list []Event
	if err := q.Find(&list).Error; err != nil {
		return nil, classifyStoreError("error querying events", err)
	}
	return list, nil
}

// scoped starts a query on the events table with f applied.
func (s *GormStore) scoped(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Event{})

	if !f.From.IsZero() {
		q = q.Where("timestamp >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("timestamp <= ?", f.To.UTC())
	}
	switch f.Kind {
	case KindPageViews:
		q = q.Where(pageViewCondition)
	case KindCustomEvents:
		q = q.Where("NOT " + pageViewCondition)
	}
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.EntryPagesOnly {
		q = q.Where("is_entry_page = ?", true)
	}
	if f.ExitPagesOnly {
		q = q.Where("is_exit_page = ?", true)
	}
	return q
}

func nonEmpty(col string) string {
	return "(" + col + " IS NOT NULL AND " + col + " <> '')"
}
