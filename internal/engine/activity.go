package engine

import (
	"math"

	"osrs-flipper/internal/wiki"
)

// maxActivityRatio caps how far recent acceleration can push the ratio.
const maxActivityRatio = 1.5

// ComputeActivity compares five-minute volume with the volume expected from
// linear extrapolation of the hourly window. Missing records count as zero.
func ComputeActivity(hourly, fiveMin wiki.IntervalStat) ActivityMetrics {
	v1h := hourly.Volume()
	v5 := fiveMin.Volume()

	expected5 := float64(v1h) / 12
	ratio := 0.0
	if expected5 > 0 {
		ratio = clampRange(float64(v5)/expected5, 0, maxActivityRatio)
	}
	return ActivityMetrics{
		HourlyVolume:  v1h,
		FiveMinVolume: v5,
		ActivityRatio: ratio,
	}
}

// displayVolume expresses traded volume in the selected window.
func displayVolume(a ActivityMetrics, win VolumeWindow) int64 {
	switch win {
	case Window10m:
		return int64(math.Round(float64(a.FiveMinVolume) * 2))
	case Window1d:
		return int64(math.Round(float64(a.HourlyVolume) * 24))
	default:
		return a.HourlyVolume
	}
}

// tradersEstimate approximates how many traders could be filling their
// four-hour trade limit given the observed volume. nil when the limit is unknown.
func tradersEstimate(a ActivityMetrics, win VolumeWindow, limit int64) *int64 {
	if limit <= 0 {
		return nil
	}
	var vol4h float64
	switch win {
	case Window10m:
		vol4h = math.Round(float64(a.FiveMinVolume) * 2 * 24)
	case Window1d:
		vol4h = math.Round(float64(a.HourlyVolume) * 24 / 6)
	default:
		vol4h = math.Round(float64(a.HourlyVolume) * 4)
	}
	n := int64(math.Ceil(vol4h / float64(limit)))
	if n < 0 {
		n = 0
	}
	return &n
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
