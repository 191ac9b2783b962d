package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"osrs-flipper/internal/wiki"
)

// Weights of the stable-mode price blend.
const (
	blendInstantWeight = 0.6
	blendHourlyWeight  = 0.4
)

// saleKeep is the fraction of sale proceeds left after the flat 2% tax.
var saleKeep = decimal.RequireFromString("0.98")

// afterTax returns price*0.98 exactly.
func afterTax(price int64) decimal.Decimal {
	return decimal.NewFromInt(price).Mul(saleKeep)
}

// blendedBounds mixes the instant quotes with the hourly averages.
// A missing hourly average falls back to the instant quote.
func blendedBounds(p wiki.InstantPrice, h wiki.IntervalStat) (low, high int64) {
	lowA, highA := h.AvgLowPrice, h.AvgHighPrice
	if lowA == 0 {
		lowA = p.Low
	}
	if highA == 0 {
		highA = p.High
	}
	low = int64(math.Round(float64(p.Low)*blendInstantWeight + float64(lowA)*blendHourlyWeight))
	high = int64(math.Round(float64(p.High)*blendInstantWeight + float64(highA)*blendHourlyWeight))
	return low, high
}

// BuildPricingPlan derives the buy/sell plan for one item. It reports false
// when either price bound is non-positive; such an item cannot be evaluated.
func BuildPricingPlan(p wiki.InstantPrice, hourly wiki.IntervalStat, mode PriceMode) (PricingPlan, bool) {
	low, high := p.Low, p.High
	if mode != PriceLive {
		low, high = blendedBounds(p, hourly)
	}
	if low <= 0 || high <= 0 {
		return PricingPlan{}, false
	}

	buy := low + 1
	sell := high - 1
	if sell < 1 {
		sell = 1
	}

	buyD := decimal.NewFromInt(buy)
	roi := afterTax(sell).Sub(buyD).Div(buyD).Mul(decimal.NewFromInt(100)).InexactFloat64()
	margin := float64(high-low) / float64(low) * 100

	return PricingPlan{
		Low:       low,
		High:      high,
		Buy:       buy,
		Sell:      sell,
		ROIPct:    roi,
		MarginPct: margin,
	}, true
}

// ProfitEach is the post-tax profit of one buy/sell round trip, floored.
func (pl PricingPlan) ProfitEach() int64 {
	return afterTax(pl.Sell).Sub(decimal.NewFromInt(pl.Buy)).Floor().IntPart()
}

// LimitProfit is the profit ceiling of filling the full trade limit at the
// raw bounds; 0 when the limit is unknown.
func (pl PricingPlan) LimitProfit(limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	each := afterTax(pl.High).Sub(decimal.NewFromInt(pl.Low)).Floor().IntPart()
	if each <= 0 {
		return 0
	}
	return each * limit
}
