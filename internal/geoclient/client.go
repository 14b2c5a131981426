package geoclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrSkipped is returned by Locate when lookups are disabled.
var ErrSkipped = errors.New("geolocation disabled")

// Location is the coarse position reported by the lookup service.
type Location struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country_name"`
	IP      string `json:"ip"`
}

// String renders "city, region, country" with N/A for missing parts.
func (l Location) String() string {
	return orNA(l.City) + ", " + orNA(l.Region) + ", " + orNA(l.Country)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// Client calls an ipapi.co compatible JSON endpoint.
type Client struct {
	URL  string
	HTTP *http.Client
	Skip bool
}

// New creates a client whose requests never outlive timeout.
func New(url string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		URL:  url,
		Skip: skip,
		HTTP: &http.Client{Timeout: timeout},
	}
}

// Locate looks up the location of the server's public address.
func (c *Client) Locate(ctx context.Context) (Location, error) {
	if c.Skip {
		return Location{}, ErrSkipped
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "checkin-obreiros/1.0")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Location{}, fmt.Errorf("geolocation error %s: %s", resp.Status, string(body))
	}

	var out struct {
		Location
		Error  bool   `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Location{}, fmt.Errorf("failed to decode response: %w", err)
	}
	// ipapi.co reports rate limiting with 200 and {"error": true}
	if out.Error {
		return Location{}, fmt.Errorf("geolocation error: %s", out.Reason)
	}
	return out.Location, nil
}
