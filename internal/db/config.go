package db

import (
	"fmt"
	"strconv"

	"osrs-flipper/internal/config"
)

// LoadConfig reads config from SQLite. Missing or unparsable keys keep their
// defaults; the result is always clamped.
func (d *DB) LoadConfig() *config.Config {
	cfg := config.Default()

	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		rows.Scan(&k, &v)
		m[k] = v
	}

	if len(m) == 0 {
		return cfg
	}

	parseFloat := func(key string, dst *float64) {
		if v, ok := m[key]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	parseFloat("cash", &cfg.Cash)
	parseFloat("alloc_pct", &cfg.AllocPercent)
	parseFloat("min_roi", &cfg.MinROI)
	parseFloat("fresh_mins", &cfg.FreshMinutes)
	if v, ok := m["items_cap"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ItemCap = n
		}
	}
	if v, ok := m["min_hr_vol"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MinHourlyVolume = n
		}
	}
	if v, ok := m["price_mode"]; ok {
		cfg.PriceMode = v
	}
	if v, ok := m["mode"]; ok {
		cfg.Mode = v
	}
	if v, ok := m["sort"]; ok {
		cfg.SortKey = v
	}
	if v, ok := m["vol_window"]; ok {
		cfg.VolumeWindow = v
	}
	if v, ok := m["scope"]; ok {
		cfg.Scope = v
	}
	if v, ok := m["signal"]; ok {
		cfg.SignalFilter = v
	}
	if v, ok := m["chart_range"]; ok {
		cfg.ChartRange = v
	}

	cfg.Clamp()
	return cfg
}

// SaveConfig writes config to SQLite (upsert all fields).
func (d *DB) SaveConfig(cfg *config.Config) error {
	pairs := map[string]string{
		"cash":        fmt.Sprintf("%g", cfg.Cash),
		"alloc_pct":   fmt.Sprintf("%g", cfg.AllocPercent),
		"items_cap":   strconv.Itoa(cfg.ItemCap),
		"min_hr_vol":  strconv.FormatInt(cfg.MinHourlyVolume, 10),
		"min_roi":     fmt.Sprintf("%g", cfg.MinROI),
		"fresh_mins":  fmt.Sprintf("%g", cfg.FreshMinutes),
		"price_mode":  cfg.PriceMode,
		"mode":        cfg.Mode,
		"sort":        cfg.SortKey,
		"vol_window":  cfg.VolumeWindow,
		"scope":       cfg.Scope,
		"signal":      cfg.SignalFilter,
		"chart_range": cfg.ChartRange,
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.Exec(k, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
