package engine

import (
	"sort"
	"time"
)

// Signal is the discrete recommendation attached to each row.
type Signal string

const (
	SignalBuy   Signal = "BUY"
	SignalHold  Signal = "HOLD"
	SignalDodge Signal = "DODGE"
)

// PriceMode selects how the price bounds are derived.
type PriceMode string

const (
	PriceStable PriceMode = "stable" // blend instant quotes with the hourly average
	PriceLive   PriceMode = "live"   // instant quotes as-is
)

// Mode is the operating-mode eligibility gate.
type Mode string

const (
	ModeAll        Mode = "all"
	ModeHighValue  Mode = "hv"
	ModeHighMargin Mode = "hm"
	ModeQuickFlip  Mode = "qf"
)

// SortKey selects the in-partition row ordering.
type SortKey string

const (
	SortProfit      SortKey = "profit"
	SortROI         SortKey = "roi"
	SortLimitProfit SortKey = "limitProfit"
	SortVolume      SortKey = "volume"
	SortTraders     SortKey = "traders"
	SortName        SortKey = "name"
	SortSpeed       SortKey = "speed" // keeps build order inside each partition
)

// VolumeWindow selects which window the displayed volume and trader
// estimate are expressed in.
type VolumeWindow string

const (
	Window10m VolumeWindow = "10m"
	Window1h  VolumeWindow = "1h"
	Window1d  VolumeWindow = "1d"
)

// Scope selects the candidate id set.
type Scope string

const (
	ScopeAll    Scope = "all"
	ScopePinned Scope = "pinned"
)

// SignalFilterAny disables the signal quick control.
const SignalFilterAny = "ANY"

// DefaultFreshMinutes is used by scoring when the user freshness limit is unset.
const DefaultFreshMinutes = 8

// Params holds every user-tunable input of one recompute cycle.
type Params struct {
	Cash            float64
	AllocPercent    float64
	ItemCap         int
	MinHourlyVolume int64
	MinROI          float64
	FreshMinutes    float64

	PriceMode    PriceMode
	Mode         Mode
	SortKey      SortKey
	VolumeWindow VolumeWindow
	Scope        Scope
	SignalFilter string // ANY | BUY | HOLD | DODGE (case-insensitive)
	Search       string

	Popover  PopoverFilters
	Advanced AdvancedFilterConfig

	Now time.Time // zero = time.Now()
}

func (p Params) now() time.Time {
	if p.Now.IsZero() {
		return time.Now()
	}
	return p.Now
}

// freshLimitSeconds is the freshness limit used by scoring, gating and the
// rationale. An unset limit falls back to DefaultFreshMinutes.
func (p Params) freshLimitSeconds() float64 {
	m := p.FreshMinutes
	if m <= 0 {
		m = DefaultFreshMinutes
	}
	return m * 60
}

// PricingPlan is the buy/sell estimate for one item.
type PricingPlan struct {
	Low       int64   `json:"low"`
	High      int64   `json:"high"`
	Buy       int64   `json:"buy"`
	Sell      int64   `json:"sell"`
	ROIPct    float64 `json:"roi"`
	MarginPct float64 `json:"margin_pct"`
}

// ActivityMetrics describes short- and long-window liquidity.
type ActivityMetrics struct {
	HourlyVolume  int64   `json:"v1h"`
	FiveMinVolume int64   `json:"v5m"`
	ActivityRatio float64 `json:"activity"`
}

// Confidence is the normalized trade-viability score.
type Confidence struct {
	Value            float64 `json:"value"`
	FreshnessSeconds int64   `json:"fresh_secs"`
	VolumeUsed       int64   `json:"volume_used"`
}

// Row is one fully derived, eligible item for the current cycle.
type Row struct {
	ID   int    `json:"id"`
	Name string `json:"name"`

	Low        int64   `json:"low"`
	High       int64   `json:"high"`
	Buy        int64   `json:"buy"`
	Sell       int64   `json:"sell"`
	ProfitEach int64   `json:"margin"` // post-tax profit per unit, floored
	ROI        float64 `json:"roi"`
	MarginPct  float64 `json:"margin_pct"`
	Limit      int64   `json:"lim"` // 0 = unknown

	HourlyVolume  int64   `json:"v1h"`
	FiveMinVolume int64   `json:"v5m"`
	ActivityRatio float64 `json:"activity"`
	DisplayVolume int64   `json:"vol_disp"`
	Traders       *int64  `json:"traders"` // nil when the trade limit is unknown

	Confidence       float64 `json:"conf"`
	FreshnessSeconds int64   `json:"fresh"`
	Proposed         Signal  `json:"proposed"`
	Signal           Signal  `json:"sig"`

	Qty         int64  `json:"qty"`
	ProfitAtQty int64  `json:"pq"`
	LimitProfit int64  `json:"limit_profit"`
	Pinned      bool   `json:"is_pinned"`
	Rationale   string `json:"explain"`
}

// PinSet is the set of pinned item ids.
type PinSet map[int]struct{}

// NewPinSet builds a PinSet from ids.
func NewPinSet(ids ...int) PinSet {
	s := make(PinSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is pinned.
func (s PinSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the pinned ids in ascending order.
func (s PinSet) IDs() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
