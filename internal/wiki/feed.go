package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// Item is one catalog entry from /mapping. Limit is the per-window trade
// limit; nil when the catalog does not publish one.
type Item struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Limit *int64 `json:"limit"`
}

// TradeLimit returns the trade limit, or 0 when unknown.
func (it Item) TradeLimit() int64 {
	if it.Limit == nil || *it.Limit < 0 {
		return 0
	}
	return *it.Limit
}

// InstantPrice is the most recent observed instant-buy (High) and
// instant-sell (Low) quote with Unix-second timestamps. Null fields decode as 0.
type InstantPrice struct {
	ItemID   int   `json:"-"`
	High     int64 `json:"high"`
	HighTime int64 `json:"highTime"`
	Low      int64 `json:"low"`
	LowTime  int64 `json:"lowTime"`
}

// IntervalStat is one aggregate record from /1h or /5m. Every field may be
// absent; volume fields stay nil so "absent" and "zero" can be told apart.
type IntervalStat struct {
	ItemID          int    `json:"-"`
	AvgHighPrice    int64  `json:"avgHighPrice"`
	AvgLowPrice     int64  `json:"avgLowPrice"`
	HighPriceVolume *int64 `json:"highPriceVolume"`
	LowPriceVolume  *int64 `json:"lowPriceVolume"`
	TotalVolume     *int64 `json:"volume"`
}

// Volume resolves the traded volume of the window. Lookup order:
// highPriceVolume, then lowPriceVolume, then a generic volume field, else 0.
// A present zero wins over a later field.
func (s IntervalStat) Volume() int64 {
	for _, v := range []*int64{s.HighPriceVolume, s.LowPriceVolume, s.TotalVolume} {
		if v != nil {
			return *v
		}
	}
	return 0
}

// Snapshot is the feed cache: the four most recent upstream resources,
// normalized into id-keyed maps. A Snapshot is never mutated after
// FetchSnapshot returns it; refreshes replace it wholesale.
type Snapshot struct {
	Items     map[int]Item
	Latest    map[int]InstantPrice
	Hourly    map[int]IntervalStat
	FiveMin   map[int]IntervalStat
	FetchedAt time.Time
}

// CandidateIDs returns, in ascending order, every id that has both a
// latest price and a catalog entry.
func (s *Snapshot) CandidateIDs() []int {
	if s == nil {
		return nil
	}
	ids := make([]int, 0, len(s.Latest))
	for id := range s.Latest {
		if _, ok := s.Items[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// FetchSnapshot fetches the catalog, latest prices, and both interval
// aggregates concurrently. It returns only when all four succeed; the first
// failure cancels the rest and is reported wrapped in ErrFeedUnavailable.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		mapping []Item
		latest  struct {
			Data map[string]InstantPrice `json:"data"`
		}
		hourly, fiveMin intervalEnvelope
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.fetch(gctx, "/mapping", &mapping) })
	g.Go(func() error { return c.fetch(gctx, "/latest", &latest) })
	g.Go(func() error { return c.fetch(gctx, "/1h", &hourly) })
	g.Go(func() error { return c.fetch(gctx, "/5m", &fiveMin) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Items:     make(map[int]Item, len(mapping)),
		Latest:    make(map[int]InstantPrice, len(latest.Data)),
		FetchedAt: time.Now(),
	}
	for _, it := range mapping {
		snap.Items[it.ID] = it
	}
	for k, p := range latest.Data {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		p.ItemID = id
		snap.Latest[id] = p
	}
	snap.Hourly = hourly.records()
	snap.FiveMin = fiveMin.records()

	log.Printf("[WIKI] Snapshot: %d items, %d prices, %d hourly, %d 5m",
		len(snap.Items), len(snap.Latest), len(snap.Hourly), len(snap.FiveMin))
	return snap, nil
}

func (c *Client) fetch(ctx context.Context, path string, dst interface{}) error {
	if err := c.GetJSON(ctx, c.baseURL+path, dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFeedUnavailable, path, err)
	}
	return nil
}

// intervalEnvelope decodes the /1h and /5m payloads, whose "data" member is
// either an object keyed by item id or an array of records carrying "id".
type intervalEnvelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type intervalRecord struct {
	ID *int `json:"id"`
	IntervalStat
}

func (e intervalEnvelope) records() map[int]IntervalStat {
	out := make(map[int]IntervalStat)
	raw := bytes.TrimSpace(e.Data)
	if len(raw) == 0 {
		return out
	}

	if raw[0] == '[' {
		var list []*intervalRecord
		if err := json.Unmarshal(raw, &list); err != nil {
			log.Printf("[WIKI] interval array decode: %v", err)
			return out
		}
		for _, r := range list {
			if r == nil || r.ID == nil {
				continue
			}
			st := r.IntervalStat
			st.ItemID = *r.ID
			out[st.ItemID] = st
		}
		return out
	}

	var byKey map[string]IntervalStat
	if err := json.Unmarshal(raw, &byKey); err != nil {
		log.Printf("[WIKI] interval object decode: %v", err)
		return out
	}
	for k, st := range byKey {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		st.ItemID = id
		out[id] = st
	}
	return out
}
