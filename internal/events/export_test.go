package events_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackly/internal/events"
	"trackly/internal/testsupport"
)

func TestExportCSVNewestFirst(t *testing.T) {
	store, clock := testsupport.SetupTestStore(t)
	agg := events.NewAggregator(store, testsupport.GetLogger())

	testsupport.Record(t, agg, "s1", "/a", testsupport.AsEntry())
	clock.Advance(time.Minute)
	testsupport.Record(t, agg, "s1", "/b", testsupport.WithName("signup"))

	var buf bytes.Buffer
	n, err := events.ExportCSV(context.Background(), store, events.Filter{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, events.CSVHeader, rows[0])
	assert.Equal(t, "signup", rows[1][3])
	assert.Equal(t, "/a", rows[2][4])
	assert.Equal(t, "true", rows[2][12])
}

// pagedReader serves full batches until failAt, then errors.
type pagedReader struct {
	events.Reader
	failAt int
	calls  int
}

func (r *pagedReader) Query(ctx context.Context, f events.Filter, page events.Page) ([]events.Event, error) {
	r.calls++
	if r.calls == r.failAt {
		return nil, events.ErrStoreUnavailable
	}
	return make([]events.Event, events.ExportBatchSize), nil
}

func TestExportCSVStoreFailures(t *testing.T) {
	t.Run("first batch leaves the writer untouched", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := events.ExportCSV(context.Background(), &pagedReader{failAt: 1}, events.Filter{}, &buf)
		assert.True(t, errors.Is(err, events.ErrStoreUnavailable))
		assert.Zero(t, n)
		assert.Zero(t, buf.Len())
	})

	t.Run("later batch truncates", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := events.ExportCSV(context.Background(), &pagedReader{failAt: 3}, events.Filter{}, &buf)
		assert.True(t, errors.Is(err, events.ErrStoreUnavailable))
		assert.Equal(t, 2*events.ExportBatchSize, n)

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		assert.Len(t, rows, 2*events.ExportBatchSize+1)
	})
}
