package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// IPAPIResolver queries an ip-api.com compatible JSON endpoint.
type IPAPIResolver struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

type ipAPIResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Country    string `json:"country"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
}

// NewIPAPIResolver builds a resolver for baseURL (e.g. "http://ip-api.com/json/")
// allowing at most perMinute requests. perMinute <= 0 disables throttling.
func NewIPAPIResolver(baseURL string, perMinute int, client *http.Client) *IPAPIResolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &IPAPIResolver{
		baseURL: baseURL,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (r *IPAPIResolver) Resolve(ctx context.Context, ip string) (Location, error) {
	// Wait fails fast when the deadline would pass before a token frees up.
	if err := r.limiter.Wait(ctx); err != nil {
		return Location{}, fmt.Errorf("ip-api rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+url.PathEscape(ip), nil)
	if err != nil {
		return Location{}, fmt.Errorf("error building ip-api request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("ip-api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("ip-api returned status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("error decoding ip-api response: %w", err)
	}
	if body.Status != "success" {
		return Location{}, fmt.Errorf("%w: ip-api status %q %s", ErrNoLocation, body.Status, body.Message)
	}

	return Location{Country: body.Country, City: body.City, Region: body.RegionName}, nil
}
