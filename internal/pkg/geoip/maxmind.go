package geoip

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindResolver reads a local GeoLite2 City or Country database.
type MaxMindResolver struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *geoip2.Reader
}

// OpenMaxMind opens the database at path. A missing file is an error; callers
// treat it as "MaxMind lookups disabled".
func OpenMaxMind(path string, logger *slog.Logger) (*MaxMindResolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &MaxMindResolver{path: path, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reopens the database file, e.g. after a fresh download.
func (r *MaxMindResolver) Reload() error {
	if r.path == "" {
		return fmt.Errorf("geoip database path not configured")
	}
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("geoip database %s: %w", r.path, err)
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to open geoip database %s: %w", r.path, err)
	}

	r.mu.Lock()
	old := r.db
	r.db = db
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	r.logger.Info("GeoLite2 database loaded", slog.String("path", r.path))
	return nil
}

func (r *MaxMindResolver) Resolve(_ context.Context, ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, fmt.Errorf("invalid ip address %q", ip)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return Location{}, fmt.Errorf("geoip database closed")
	}

	if city, err := r.db.City(parsed); err == nil {
		loc := Location{
			Country: city.Country.Names["en"],
			City:    city.City.Names["en"],
		}
		if len(city.Subdivisions) > 0 {
			loc.Region = city.Subdivisions[0].Names["en"]
		}
		if loc.Country == "" {
			loc.Country = city.Country.IsoCode
		}
		if loc.IsZero() {
			return Location{}, ErrNoLocation
		}
		return loc, nil
	}

	// Country editions reject City lookups.
	country, err := r.db.Country(parsed)
	if err != nil {
		return Location{}, fmt.Errorf("geoip lookup for %s: %w", ip, err)
	}
	name := country.Country.Names["en"]
	if name == "" {
		name = country.Country.IsoCode
	}
	if name == "" {
		return Location{}, ErrNoLocation
	}
	return Location{Country: name}, nil
}

// Close releases the database.
func (r *MaxMindResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
