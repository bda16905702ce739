// Package geoip resolves IP addresses to a best-effort location.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrNoLocation is returned when a resolver has no data for an address.
var ErrNoLocation = errors.New("no location for address")

// Location is what a lookup can tell about an address. Any field may be empty.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Region  string `json:"region"`
}

// IsZero reports whether the lookup produced nothing.
func (l Location) IsZero() bool {
	return l.Country == "" && l.City == "" && l.Region == ""
}

// Resolver looks up an IP address.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (Location, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ip string) (Location, error)

func (f ResolverFunc) Resolve(ctx context.Context, ip string) (Location, error) {
	return f(ctx, ip)
}

var privateBlocks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
)

func mustParseCIDRs(blocks ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(blocks))
	for _, b := range blocks {
		_, n, err := net.ParseCIDR(b)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// ShouldLookup reports whether ip is worth resolving: present, parseable and
// not a loopback or private address.
func ShouldLookup(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" || strings.EqualFold(ip, "localhost") {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, block := range privateBlocks {
		if block.Contains(parsed) {
			return false
		}
	}
	return true
}

// Chain tries resolvers in order and returns the first location with a country.
// A resolver error moves on to the next one; the last error is returned when
// none succeeds.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, ip string) (Location, error) {
	lastErr := ErrNoLocation
	var partial Location
	for _, r := range c {
		if err := ctx.Err(); err != nil {
			return partial, err
		}
		loc, err := r.Resolve(ctx, ip)
		if err != nil {
			lastErr = err
			continue
		}
		if loc.Country != "" {
			return loc, nil
		}
		if partial.IsZero() {
			partial = loc
		}
	}
	if !partial.IsZero() {
		return partial, nil
	}
	return Location{}, lastErr
}

// WithTimeout bounds every lookup of r to d, even when r ignores its context.
func WithTimeout(r Resolver, d time.Duration) Resolver {
	return ResolverFunc(func(ctx context.Context, ip string) (Location, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			loc Location
			err error
		}
		done := make(chan result, 1)
		go func() {
			loc, err := r.Resolve(ctx, ip)
			done <- result{loc, err}
		}()

		select {
		case res := <-done:
			return res.loc, res.err
		case <-ctx.Done():
			return Location{}, fmt.Errorf("geo lookup for %s: %w", ip, ctx.Err())
		}
	})
}
