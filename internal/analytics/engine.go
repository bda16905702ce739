// Package analytics computes windowed statistics over the event store.
package analytics

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"trackly/internal/events"
	"trackly/internal/pkg/async"
	"trackly/internal/timeframe"
)

// Engine answers statistics queries. It holds no state besides its
// collaborators and is safe for concurrent use.
type Engine struct {
	reader       events.Reader
	pool         *async.Pool
	logger       *slog.Logger
	activeWindow time.Duration
}

// DefaultActiveWindow is how far back a session counts as active.
const DefaultActiveWindow = 30 * time.Minute

type Option func(*Engine)

// WithActiveWindow overrides DefaultActiveWindow. Non-positive values are ignored.
func WithActiveWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.activeWindow = d
		}
	}
}

func NewEngine(reader events.Reader, pool *async.Pool, logger *slog.Logger, opts ...Option) *Engine {
	if pool == nil {
		pool = async.NewPool(1)
	}
	e := &Engine{reader: reader, pool: pool, logger: logger, activeWindow: DefaultActiveWindow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// filter resolves the window against the store clock and builds the base
// filter for p. An invalid window is reported as a validation error.
func (e *Engine) filter(p QueryParams) (events.Filter, error) {
	tf, err := p.Window.Resolve(e.reader.Now())
	if err != nil {
		if errors.Is(err, timeframe.ErrInvalidWindow) {
			return events.Filter{}, events.NewValidationError("window", "%v", err)
		}
		return events.Filter{}, err
	}
	return events.Filter{From: tf.From, To: tf.To, Kind: p.Kind}, nil
}

// round2 rounds to two decimals and maps NaN and Inf to 0.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}
