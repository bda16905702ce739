package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trackly/internal/pkg/geoip"
	"trackly/internal/pkg/user_agent"
)

// DefaultGeoTimeout bounds a single location lookup.
const DefaultGeoTimeout = 5 * time.Second

// RequestMeta is what the transport knows about the sender of an event.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

// Enricher fills in request metadata, user agent details and location before
// an event is recorded. It never blocks the write for longer than its geo
// timeout.
type Enricher struct {
	geo             geoip.Resolver
	deriveUserAgent bool
}

// NewEnricher wraps geo with timeout. A nil geo disables location lookups.
func NewEnricher(geo geoip.Resolver, timeout time.Duration, deriveUserAgent bool) *Enricher {
	if timeout <= 0 {
		timeout = DefaultGeoTimeout
	}
	if geo != nil {
		geo = geoip.WithTimeout(geo, timeout)
	}
	return &Enricher{geo: geo, deriveUserAgent: deriveUserAgent}
}

// Enrich mutates e in place. The returned error, if any, wraps
// ErrEnrichmentDegraded; e is complete and recordable either way.
func (en *Enricher) Enrich(ctx context.Context, e *Event, meta RequestMeta) error {
	if e.IPAddress == "" {
		e.IPAddress = strings.TrimSpace(meta.IPAddress)
	}
	if e.UserAgent == "" {
		e.UserAgent = strings.TrimSpace(meta.UserAgent)
	}
	if e.Referrer == "" {
		e.Referrer = strings.TrimSpace(meta.Referrer)
	}

	if en.deriveUserAgent && e.UserAgent != "" && (e.Browser == "" || e.OS == "" || e.Device == "") {
		ua := user_agent.ParseUserAgent(e.UserAgent)
		if e.Browser == "" {
			e.Browser = ua.Browser
		}
		if e.OS == "" {
			e.OS = ua.OS
		}
		if e.Device == "" {
			e.Device = ua.Device
		}
	}

	if en.geo == nil || e.Country != "" || !geoip.ShouldLookup(e.IPAddress) {
		return nil
	}

	loc, err := en.geo.Resolve(ctx, e.IPAddress)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEnrichmentDegraded, err)
	}
	e.Country = loc.Country
	if e.City == "" {
		e.City = loc.City
	}
	if e.Region == "" {
		e.Region = loc.Region
	}
	return nil
}
