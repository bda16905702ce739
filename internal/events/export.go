package events

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// ExportBatchSize is how many rows are read from the store per query.
const ExportBatchSize = 500

// CSVHeader is the first row of every export.
var CSVHeader = []string{
	"id", "timestamp", "session_id", "event_name", "page_url", "referrer",
	"browser", "os", "device", "country", "city", "region",
	"is_entry_page", "is_exit_page", "event_data",
}

// ExportCSV streams the events matching f to w, newest first, and returns the
// number of data rows written.
//
// The first batch is read before anything is written, so when the store is
// unavailable w is untouched and rows is zero. A failure on a later batch
// truncates the export; the rows already written are flushed and the error
// is returned with their count.
func ExportCSV(ctx context.Context, r Reader, f Filter, w io.Writer) (rows int, err error) {
	batch, err := r.Query(ctx, f, Page{Limit: ExportBatchSize})
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	defer func() {
		cw.Flush()
		if ferr := cw.Error(); ferr != nil && err == nil {
			err = ferr
		}
	}()

	if err := cw.Write(CSVHeader); err != nil {
		return 0, err
	}

	for offset := 0; len(batch) > 0; {
		for i := range batch {
			if err := cw.Write(CSVRow(&batch[i])); err != nil {
				return rows, err
			}
		}
		rows += len(batch)
		if len(batch) < ExportBatchSize {
			break
		}
		offset += len(batch)
		batch, err = r.Query(ctx, f, Page{Offset: offset, Limit: ExportBatchSize})
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

// CSVRow renders one event in CSVHeader order.
func CSVRow(e *Event) []string {
	return []string{
		strconv.FormatUint(uint64(e.ID), 10),
		e.Timestamp.UTC().Format(time.RFC3339),
		e.SessionID,
		e.EventName,
		e.PageURL,
		e.Referrer,
		e.Browser,
		e.OS,
		e.Device,
		e.Country,
		e.City,
		e.Region,
		strconv.FormatBool(e.IsEntryPage),
		strconv.FormatBool(e.IsExitPage),
		e.EventData,
	}
}
