package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"osrs-flipper/internal/engine"
)

// Preference blob keys.
const (
	KeyPins     = "osrsfp_pins_lite"
	KeySignals  = "osrsfp_sig_lite"
	KeyColumns  = "osrsfp_cols_full"
	KeyAdvanced = "osrsfp_adv_lite"
)

// DefaultColumns is the built-in column visibility map.
func DefaultColumns() map[string]bool {
	return map[string]bool{
		"item": true, "graph": false, "low": true, "high": true, "margin": true,
		"roi": true, "limit": true, "traders": false, "volume": true, "conf": false,
		"signal": false, "why": false, "buy": true, "sell": true, "qty": false,
		"profit": false, "limitprofit": false,
	}
}

// loadPref decodes the blob stored under key into dst. It reports false when
// the blob is missing or cannot be decoded; dst is then left for the caller
// to fill with defaults.
func (d *DB) loadPref(key string, dst interface{}) bool {
	var raw string
	err := d.sql.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		log.Printf("[DB] read pref %s: %v", key, err)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Printf("[DB] corrupt pref %s, using defaults: %v", key, err)
		return false
	}
	return true
}

func (d *DB) savePref(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode pref %s: %w", key, err)
	}
	_, err = d.sql.Exec(
		"INSERT OR REPLACE INTO prefs (key, value, updated_at) VALUES (?, ?, ?)",
		key, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save pref %s: %w", key, err)
	}
	return nil
}

// LoadPins returns the pinned item set; empty when missing or corrupt.
func (d *DB) LoadPins() engine.PinSet {
	var ids []int
	if !d.loadPref(KeyPins, &ids) {
		return engine.NewPinSet()
	}
	return engine.NewPinSet(ids...)
}

// SavePins stores the pinned ids as a sorted JSON array.
func (d *DB) SavePins(pins engine.PinSet) error {
	return d.savePref(KeyPins, pins.IDs())
}

// LoadSignals returns the last recorded per-item classifier state.
func (d *DB) LoadSignals() engine.SignalBook {
	book := engine.SignalBook{}
	if !d.loadPref(KeySignals, &book) {
		return engine.SignalBook{}
	}
	return book
}

// SaveSignals stores the classifier state.
func (d *DB) SaveSignals(book engine.SignalBook) error {
	return d.savePref(KeySignals, book)
}

// LoadColumns returns the column visibility map merged over the defaults.
func (d *DB) LoadColumns() map[string]bool {
	cols := DefaultColumns()
	var stored map[string]bool
	if d.loadPref(KeyColumns, &stored) {
		for k, v := range stored {
			cols[k] = v
		}
	}
	return cols
}

// SaveColumns stores the column visibility map.
func (d *DB) SaveColumns(cols map[string]bool) error {
	return d.savePref(KeyColumns, cols)
}

// LoadAdvancedFilter returns the advanced rule set. Criteria missing from the
// stored blob take their default rule.
func (d *DB) LoadAdvancedFilter() engine.AdvancedFilterConfig {
	cfg := engine.DefaultAdvancedFilter()
	var stored engine.AdvancedFilterConfig
	if !d.loadPref(KeyAdvanced, &stored) {
		return cfg
	}
	cfg.Match = stored.Match
	for crit, rule := range stored.Rules {
		cfg.Rules[crit] = rule
	}
	return cfg
}

// SaveAdvancedFilter stores the advanced rule set.
func (d *DB) SaveAdvancedFilter(cfg engine.AdvancedFilterConfig) error {
	return d.savePref(KeyAdvanced, cfg)
}
