package analytics

import (
	"strings"
	"sync"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"trackly/internal/events"
	"trackly/internal/pkg/referrers"
)

// UnknownLabel replaces empty values in labeled reports.
const UnknownLabel = "Unknown"

var countries = sync.OnceValue(gountries.New)

func labelerFor(dim events.Dimension) func(string) string {
	switch dim {
	case events.DimensionReferrer:
		return referrers.Label
	case events.DimensionCountry:
		return countryLabel
	case events.DimensionOS:
		return osLabel
	case events.DimensionBrowser, events.DimensionDevice:
		return titleLabel
	default:
		return plainLabel
	}
}

func plainLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownLabel
	}
	return name
}

func titleLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownLabel
	}
	return cases.Title(language.AmericanEnglish).String(name)
}

// countryLabel maps ISO codes and loose spellings to the common English name.
func countryLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownLabel
	}

	q := countries()
	if len(name) == 2 || len(name) == 3 {
		if c, err := q.FindCountryByAlpha(name); err == nil {
			return c.Name.Common
		}
	}
	if c, err := q.FindCountryByName(name); err == nil {
		return c.Name.Common
	}
	return name
}

func osLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownLabel
	}

	// Title casing would break these.
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ios", "iphone os":
		return "iOS"
	case "ipados":
		return "iPadOS"
	case "macos", "mac os", "mac os x", "darwin":
		return "macOS"
	}
	return cases.Title(language.AmericanEnglish).String(name)
}
