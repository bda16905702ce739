package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"trackly/internal/analytics"
	"trackly/internal/events"
	"trackly/internal/timeframe"
)

// queryParams reads ?days= or ?start=&end=, plus ?type=, ?limit=, ?order=
// and ?labeled= into analytics params.
func queryParams(c *fiber.Ctx, defaultDays int) (analytics.QueryParams, error) {
	window, err := timeframe.ParseWindow(timeframe.WindowParams{
		Days:  c.Query("days"),
		Start: c.Query("start"),
		End:   c.Query("end"),
	}, defaultDays)
	if err != nil {
		return analytics.QueryParams{}, events.NewValidationError("window", "%v", err)
	}

	p := analytics.NewQueryParams(window)

	if raw := c.Query("type"); raw != "" {
		kind, ok := events.ParseEventKind(raw)
		if !ok {
			return analytics.QueryParams{}, events.NewValidationError("type", "must be one of all, page_views, custom_events")
		}
		p.Kind = kind
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			return analytics.QueryParams{}, events.NewValidationError("limit", "must be an integer between 1 and 100")
		}
		p.Limit = limit
	}

	p.Order = timeframe.ParseOrder(c.Query("order"), timeframe.OrderAsc)
	p.Labeled = c.QueryBool("labeled", false)
	return p, nil
}

// pageParams reads ?page= (1-based) and ?per_page=, clamping per_page to max.
func pageParams(c *fiber.Ctx, defaultPerPage, maxPerPage int) (page, perPage int, err error) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		return 0, 0, events.NewValidationError("page", "must be at least 1")
	}
	perPage = c.QueryInt("per_page", defaultPerPage)
	if perPage < 1 {
		return 0, 0, events.NewValidationError("per_page", "must be at least 1")
	}
	return page, min(perPage, maxPerPage), nil
}
