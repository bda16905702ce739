package analytics

import (
	"trackly/internal/events"
	"trackly/internal/timeframe"
)

// DefaultLimit is the number of rows a top list returns when none is asked for.
const DefaultLimit = 10

// QueryParams contains the common parameters of every statistics query
type QueryParams struct {
	Window  timeframe.Window
	Kind    events.EventKind
	Limit   int             // Number of rows for top lists
	Order   timeframe.Order // Date order for daily counts
	Labeled bool            // Fold empty values and prettify names for display
}

// NewQueryParams creates query params over window with the defaults used by reports
func NewQueryParams(window timeframe.Window) QueryParams {
	return QueryParams{
		Window: window,
		Kind:   events.KindAll,
		Limit:  DefaultLimit,
		Order:  timeframe.OrderAsc,
	}
}

// WithKind returns a copy of p restricted to kind.
func (p QueryParams) WithKind(kind events.EventKind) QueryParams {
	p.Kind = kind
	return p
}

// WithLimit returns a copy of p with limit rows.
func (p QueryParams) WithLimit(limit int) QueryParams {
	p.Limit = limit
	return p
}

func (p QueryParams) limit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}
