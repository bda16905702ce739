package analytics

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"trackly/internal/events"
)

// TopN groups events of p.Kind by dim, largest count first, ties by name.
//
// Raw mode drops NULL and empty values. Labeled mode keeps them under
// "Unknown" (or "Direct / Unknown" for referrers), prettifies names, and
// merges rows that end up with the same label before applying the limit.
func (e *Engine) TopN(ctx context.Context, dim events.Dimension, p QueryParams) ([]events.GroupCount, error) {
	if _, ok := events.ParseDimension(string(dim)); !ok {
		return nil, events.NewValidationError("dimension", "unsupported dimension %q", dim)
	}
	f, err := e.filter(p)
	if err != nil {
		return nil, err
	}

	if !p.Labeled {
		rows, err := e.reader.GroupCount(ctx, f, dim, events.GroupOptions{Limit: p.limit()})
		if err != nil {
			return nil, fmt.Errorf("error fetching top %s: %w", dim, err)
		}
		return rows, nil
	}

	rows, err := e.reader.GroupCount(ctx, f, dim, events.GroupOptions{IncludeEmpty: true})
	if err != nil {
		return nil, fmt.Errorf("error fetching top %s: %w", dim, err)
	}
	return mergeLabeled(rows, labelerFor(dim), p.limit()), nil
}

// TopEntryPages groups entry-flagged events by page.
func (e *Engine) TopEntryPages(ctx context.Context, p QueryParams) ([]events.GroupCount, error) {
	return e.topFlaggedPages(ctx, p, true)
}

// TopExitPages groups exit-flagged events by page.
func (e *Engine) TopExitPages(ctx context.Context, p QueryParams) ([]events.GroupCount, error) {
	return e.topFlaggedPages(ctx, p, false)
}

func (e *Engine) topFlaggedPages(ctx context.Context, p QueryParams, entry bool) ([]events.GroupCount, error) {
	f, err := e.filter(p)
	if err != nil {
		return nil, err
	}
	what := "exit"
	if entry {
		f.EntryPagesOnly = true
		what = "entry"
	} else {
		f.ExitPagesOnly = true
	}

	rows, err := e.reader.GroupCount(ctx, f, events.DimensionPageURL, events.GroupOptions{Limit: p.limit()})
	if err != nil {
		return nil, fmt.Errorf("error fetching top %s pages: %w", what, err)
	}
	return rows, nil
}

func mergeLabeled(rows []events.GroupCount, label func(string) string, limit int) []events.GroupCount {
	index := make(map[string]int, len(rows))
	merged := make([]events.GroupCount, 0, len(rows))
	for _, r := range rows {
		name := label(r.Name)
		if i, ok := index[name]; ok {
			merged[i].Count += r.Count
			continue
		}
		index[name] = len(merged)
		merged = append(merged, events.GroupCount{Name: name, Count: r.Count})
	}

	slices.SortStableFunc(merged, func(a, b events.GroupCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
