package wiki

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

// DefaultBaseURL is the public OSRS real-time prices API.
const DefaultBaseURL = "https://prices.runescape.wiki/api/v1/osrs"

// ErrFeedUnavailable wraps every failure to fetch one of the upstream
// resources (transport error, non-200 status, undecodable body).
var ErrFeedUnavailable = errors.New("price feed unavailable")

// Client is a concurrency-limited HTTP client for the prices API.
// The API asks for a descriptive User-Agent on every request.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	sem       chan struct{}
	series    *SeriesCache
}

// NewClient creates a prices API client. concurrency bounds in-flight requests.
func NewClient(baseURL, userAgent string, timeout time.Duration, concurrency int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = "osrs-flipper/1.0 (github.com)"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		sem:       make(chan struct{}, concurrency),
		series:    NewSeriesCache(),
	}
}

// HealthCheck pings the latest-prices resource to verify connectivity.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := c.newRequest(ctx, c.baseURL+"/latest?id=2")
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// GetJSON fetches a URL and decodes JSON into dst.
func (c *Client) GetJSON(ctx context.Context, url string, dst interface{}) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()

	req, err := c.newRequest(ctx, url)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d @ %s: %s", resp.StatusCode, url, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
