package config

import "strings"

// Config holds the live user parameters the pipeline re-reads every cycle
// (in-memory representation). Persistence is handled by internal/db package.
type Config struct {
	Cash            float64 `json:"cash"`
	AllocPercent    float64 `json:"alloc_pct"`
	ItemCap         int     `json:"items_cap"`
	MinHourlyVolume int64   `json:"min_hr_vol"`
	MinROI          float64 `json:"min_roi"`
	FreshMinutes    float64 `json:"fresh_mins"` // 0 disables the staleness quick control

	PriceMode    string `json:"price_mode"`  // stable | live
	Mode         string `json:"mode"`        // all | hv | hm | qf
	SortKey      string `json:"sort"`        // profit | roi | limitProfit | volume | traders | name
	VolumeWindow string `json:"vol_window"`  // 10m | 1h | 1d
	Scope        string `json:"scope"`       // all | pinned
	SignalFilter string `json:"signal"`      // any | BUY | HOLD | DODGE
	ChartRange   string `json:"chart_range"` // 1h | 1d | 1w | 1m
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Cash:            10_000_000,
		AllocPercent:    20,
		ItemCap:         6,
		MinHourlyVolume: 1000,
		MinROI:          3,
		FreshMinutes:    8,
		PriceMode:       "stable",
		Mode:            "all",
		SortKey:         "profit",
		VolumeWindow:    "1h",
		Scope:           "all",
		SignalFilter:    "any",
		ChartRange:      "1d",
	}
}

// Clamp pulls out-of-range values back into bounds and replaces unknown
// enum strings with their defaults.
func (c *Config) Clamp() {
	d := Default()
	if c.Cash < 0 {
		c.Cash = 0
	}
	if c.AllocPercent < 0 {
		c.AllocPercent = 0
	} else if c.AllocPercent > 100 {
		c.AllocPercent = 100
	}
	if c.ItemCap < 1 {
		c.ItemCap = 1
	}
	if c.MinHourlyVolume < 0 {
		c.MinHourlyVolume = 0
	}
	if c.FreshMinutes < 0 {
		c.FreshMinutes = 0
	}
	c.PriceMode = oneOf(c.PriceMode, d.PriceMode, "stable", "live")
	c.Mode = oneOf(c.Mode, d.Mode, "all", "hv", "hm", "qf")
	c.SortKey = oneOf(c.SortKey, d.SortKey, "profit", "roi", "limitProfit", "volume", "traders", "name", "speed")
	c.VolumeWindow = oneOf(c.VolumeWindow, d.VolumeWindow, "10m", "1h", "1d")
	c.Scope = oneOf(c.Scope, d.Scope, "all", "pinned")
	c.SignalFilter = oneOf(normalizeSignal(c.SignalFilter), d.SignalFilter, "any", "BUY", "HOLD", "DODGE")
	c.ChartRange = oneOf(c.ChartRange, d.ChartRange, "1h", "1d", "1w", "1m")
}

// normalizeSignal upper-cases a signal name; "any" keeps its lowercase form.
func normalizeSignal(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "ANY" {
		return "any"
	}
	return v
}

func oneOf(v, fallback string, allowed ...string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}
