package wiki

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SeriesPoint is one bucket of an item's price history.
type SeriesPoint struct {
	Timestamp       int64  `json:"timestamp"`
	AvgHighPrice    *int64 `json:"avgHighPrice"`
	AvgLowPrice     *int64 `json:"avgLowPrice"`
	HighPriceVolume int64  `json:"highPriceVolume"`
	LowPriceVolume  int64  `json:"lowPriceVolume"`
}

// Timesteps accepted by the /timeseries resource.
var validTimesteps = map[string]bool{"5m": true, "1h": true, "6h": true, "24h": true}

// ChartRange maps a chart range preset to its window length and granularity.
type ChartRange struct {
	Seconds  int64
	Timestep string
}

// ChartRanges are the range presets offered for item charts.
var ChartRanges = map[string]ChartRange{
	"1h": {Seconds: 3600, Timestep: "5m"},
	"1d": {Seconds: 86400, Timestep: "5m"},
	"1w": {Seconds: 604800, Timestep: "1h"},
	"1m": {Seconds: 2592000, Timestep: "6h"},
}

// ValidTimestep reports whether ts is a granularity the API understands.
func ValidTimestep(ts string) bool {
	return validTimesteps[ts]
}

type seriesKey struct {
	itemID   int
	timestep string
}

// SeriesCache holds fetched time series for the lifetime of the process,
// keyed by (item id, timestep). A singleflight.Group coalesces concurrent
// fetches of the same key.
type SeriesCache struct {
	mu      sync.RWMutex
	entries map[seriesKey][]SeriesPoint
	group   singleflight.Group
}

// NewSeriesCache creates an empty series cache.
func NewSeriesCache() *SeriesCache {
	return &SeriesCache{entries: make(map[seriesKey][]SeriesPoint)}
}

// Get returns a cached series.
func (sc *SeriesCache) Get(itemID int, timestep string) ([]SeriesPoint, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	pts, ok := sc.entries[seriesKey{itemID, timestep}]
	return pts, ok
}

// Put stores a series.
func (sc *SeriesCache) Put(itemID int, timestep string, pts []SeriesPoint) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.entries[seriesKey{itemID, timestep}] = pts
}

// Len returns the number of cached series.
func (sc *SeriesCache) Len() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.entries)
}

// Clear drops every cached series and returns how many were removed.
func (sc *SeriesCache) Clear() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	n := len(sc.entries)
	sc.entries = make(map[seriesKey][]SeriesPoint)
	return n
}

// FetchSeries returns the price history of one item at the given timestep,
// served from the session cache when possible. Failed fetches are not cached.
func (c *Client) FetchSeries(ctx context.Context, itemID int, timestep string) ([]SeriesPoint, error) {
	if !ValidTimestep(timestep) {
		return nil, fmt.Errorf("invalid timestep %q", timestep)
	}
	if pts, ok := c.series.Get(itemID, timestep); ok {
		return pts, nil
	}

	sfKey := fmt.Sprintf("%d:%s", itemID, timestep)
	result, err, _ := c.series.group.Do(sfKey, func() (interface{}, error) {
		if pts, ok := c.series.Get(itemID, timestep); ok {
			return pts, nil
		}
		u := fmt.Sprintf("%s/timeseries?id=%d&timestep=%s", c.baseURL, itemID, url.QueryEscape(timestep))
		var body struct {
			Data   []SeriesPoint `json:"data"`
			Series []SeriesPoint `json:"series"`
		}
		if err := c.GetJSON(ctx, u, &body); err != nil {
			return nil, fmt.Errorf("timeseries %s: %w", sfKey, err)
		}
		pts := body.Data
		if len(pts) == 0 {
			pts = body.Series
		}
		if pts == nil {
			pts = []SeriesPoint{}
		}
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp < pts[j].Timestamp })
		c.series.Put(itemID, timestep, pts)
		log.Printf("[WIKI] Series MISS %s (%d points)", sfKey, len(pts))
		return pts, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]SeriesPoint), nil
}

// SeriesCache exposes the client's session series cache.
func (c *Client) SeriesCache() *SeriesCache {
	return c.series
}
