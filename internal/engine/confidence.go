package engine

import (
	"math"

	"osrs-flipper/internal/wiki"
)

// Confidence weights; they sum to 1.
const (
	weightFreshness = 0.35
	weightVolume    = 0.25
	weightStability = 0.20
	weightROI       = 0.20
)

// Margin band considered stable (inclusive, percent).
const (
	stableMarginMin = 2.0
	stableMarginMax = 12.0
)

func marginStable(marginPct float64) bool {
	return marginPct >= stableMarginMin && marginPct <= stableMarginMax
}

// freshnessSeconds is the age of the most recent of the two quotes.
// A missing timestamp counts as the epoch.
func freshnessSeconds(p wiki.InstantPrice, nowUnix int64) int64 {
	return min(nowUnix-p.HighTime, nowUnix-p.LowTime)
}

// ScoreConfidence combines freshness, hourly volume, margin stability and ROI
// into a score in [0,1].
func ScoreConfidence(p wiki.InstantPrice, hourlyVolume int64, roiPct, marginPct float64, params Params) Confidence {
	fresh := freshnessSeconds(p, params.now().Unix())

	freshScore := clampRange(1-float64(fresh)/(params.freshLimitSeconds()*1.2), 0, 1)
	volScore := clampRange(float64(hourlyVolume)/math.Max(1, float64(params.MinHourlyVolume)), 0, 1)
	stability := 0.5
	if marginStable(marginPct) {
		stability = 1
	}
	roiScore := clampRange(roiPct/8, 0, 1)

	value := freshScore*weightFreshness +
		volScore*weightVolume +
		stability*weightStability +
		roiScore*weightROI

	return Confidence{
		Value:            clampRange(value, 0, 1),
		FreshnessSeconds: fresh,
		VolumeUsed:       hourlyVolume,
	}
}
