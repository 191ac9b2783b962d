package engine

import (
	"math"
	"strings"

	"osrs-flipper/internal/wiki"
)

// Mode gate thresholds.
const (
	highValueMinLimit  = 1000
	highMarginMaxLimit = 100

	quickFlipMinActivity  = 0.6
	quickFlipMinMargin    = 1.5
	quickFlipMaxMargin    = 12.0
	quickFlipMinHourlyVol = 800
)

// rationaleMinROI replaces an unset (zero) minimum ROI in the row rationale.
const rationaleMinROI = 3.0

// candidateIDs returns the ids a cycle evaluates for the given scope.
func candidateIDs(snap *wiki.Snapshot, scope Scope, pins PinSet) []int {
	if scope == ScopePinned {
		return pins.IDs()
	}
	return snap.CandidateIDs()
}

// SuggestQty sizes one position: the budget is the lesser of the per-trade
// allocation and an even split across ItemCap items, divided by the buy-side price.
func SuggestQty(low int64, p Params) int64 {
	if low <= 0 || p.Cash <= 0 || math.IsInf(p.Cash, 0) || math.IsNaN(p.Cash) {
		return 0
	}
	alloc := p.AllocPercent / 100
	if alloc < 0 {
		alloc = 0
	}
	itemCap := p.ItemCap
	if itemCap < 1 {
		itemCap = 1
	}
	spend := math.Min(p.Cash*alloc, p.Cash/float64(itemCap))
	qty := int64(math.Floor(spend / float64(low)))
	if qty < 0 {
		return 0
	}
	return qty
}

// passesModeGate applies the operating-mode eligibility rules.
func passesModeGate(mode Mode, limit int64, conf Confidence, act ActivityMetrics, plan PricingPlan, p Params) bool {
	switch mode {
	case ModeHighValue:
		return limit >= highValueMinLimit
	case ModeHighMargin:
		return limit < highMarginMaxLimit
	case ModeQuickFlip:
		if float64(conf.FreshnessSeconds) > p.freshLimitSeconds() {
			return false
		}
		if act.ActivityRatio < quickFlipMinActivity {
			return false
		}
		if plan.MarginPct < quickFlipMinMargin || plan.MarginPct > quickFlipMaxMargin {
			return false
		}
		minVol := p.MinHourlyVolume
		if minVol < quickFlipMinHourlyVol {
			minVol = quickFlipMinHourlyVol
		}
		return act.HourlyVolume >= minVol
	default:
		return true
	}
}

// rationale summarizes, in fixed order, the price mode, freshness, spread
// safety, volume adequacy and ROI adequacy of a row.
func rationale(plan PricingPlan, conf Confidence, act ActivityMetrics, p Params) string {
	parts := make([]string, 0, 5)
	if p.PriceMode == PriceLive {
		parts = append(parts, "live")
	} else {
		parts = append(parts, "stable")
	}
	if float64(conf.FreshnessSeconds) <= p.freshLimitSeconds() {
		parts = append(parts, "fresh")
	} else {
		parts = append(parts, "stale")
	}
	if marginStable(plan.MarginPct) {
		parts = append(parts, "spread ok")
	} else {
		parts = append(parts, "spread risk")
	}
	if act.HourlyVolume >= p.MinHourlyVolume {
		parts = append(parts, "high vol")
	} else {
		parts = append(parts, "low vol")
	}
	roiBar := p.MinROI
	if roiBar == 0 || math.IsNaN(roiBar) {
		roiBar = rationaleMinROI
	}
	if plan.ROIPct >= roiBar {
		parts = append(parts, "roi ok")
	} else {
		parts = append(parts, "roi low")
	}
	return strings.Join(parts, " · ")
}

// buildRow derives one row, or reports false when the item is excluded.
// The signal book is updated for every item that reaches classification,
// including items the mode gate later drops.
func buildRow(snap *wiki.Snapshot, id int, p Params, pins PinSet, book SignalBook) (Row, bool) {
	item, ok := snap.Items[id]
	if !ok {
		return Row{}, false
	}
	price, ok := snap.Latest[id]
	if !ok {
		return Row{}, false
	}
	hourly := snap.Hourly[id]
	plan, ok := BuildPricingPlan(price, hourly, p.PriceMode)
	if !ok {
		return Row{}, false
	}

	act := ComputeActivity(hourly, snap.FiveMin[id])
	if act.HourlyVolume < p.MinHourlyVolume {
		return Row{}, false
	}

	conf := ScoreConfidence(price, act.HourlyVolume, plan.ROIPct, plan.MarginPct, p)
	pinned := pins.Has(id)
	proposed := ProposeSignal(plan.ROIPct, conf.Value, plan.MarginPct, p.MinROI)
	sig := book.Stabilize(id, proposed, pinned)

	limit := item.TradeLimit()
	if !passesModeGate(p.Mode, limit, conf, act, plan, p) {
		return Row{}, false
	}

	qty := SuggestQty(plan.Low, p)
	if limit > 0 && qty > limit {
		qty = limit
	}
	each := plan.ProfitEach()
	pq := each * qty
	if pq < 0 {
		pq = 0
	}

	return Row{
		ID:               id,
		Name:             item.Name,
		Low:              plan.Low,
		High:             plan.High,
		Buy:              plan.Buy,
		Sell:             plan.Sell,
		ProfitEach:       each,
		ROI:              plan.ROIPct,
		MarginPct:        plan.MarginPct,
		Limit:            limit,
		HourlyVolume:     act.HourlyVolume,
		FiveMinVolume:    act.FiveMinVolume,
		ActivityRatio:    act.ActivityRatio,
		DisplayVolume:    displayVolume(act, p.VolumeWindow),
		Traders:          tradersEstimate(act, p.VolumeWindow, limit),
		Confidence:       conf.Value,
		FreshnessSeconds: conf.FreshnessSeconds,
		Proposed:         proposed,
		Signal:           sig,
		Qty:              qty,
		ProfitAtQty:      pq,
		LimitProfit:      plan.LimitProfit(limit),
		Pinned:           pinned,
		Rationale:        rationale(plan, conf, act, p),
	}, true
}

// BuildRows derives every eligible row of the cycle. It returns the rows in
// ascending id order and the number of candidate ids considered. book is
// updated in place.
func BuildRows(snap *wiki.Snapshot, p Params, pins PinSet, book SignalBook) ([]Row, int) {
	if snap == nil {
		return nil, 0
	}
	ids := candidateIDs(snap, p.Scope, pins)
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		if r, ok := buildRow(snap, id, p, pins, book); ok {
			rows = append(rows, r)
		}
	}
	return rows, len(ids)
}
