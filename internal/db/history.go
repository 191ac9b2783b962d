package db

import (
	"time"
)

// CycleRecord is one completed recompute cycle.
type CycleRecord struct {
	ID         int64  `json:"id"`
	CycleID    string `json:"cycle_id"`
	Timestamp  string `json:"timestamp"`
	Mode       string `json:"mode"`
	Considered int    `json:"considered"`
	Built      int    `json:"built"`
	Count      int    `json:"count"`
	TopProfit  int64  `json:"top_profit"`
	DurationMs int64  `json:"duration_ms"`
	Fallback   bool   `json:"fallback"`
	Diagnostic string `json:"diagnostic"`
}

// InsertCycle records a cycle and returns its row ID (0 on failure).
func (d *DB) InsertCycle(r CycleRecord) int64 {
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	result, err := d.sql.Exec(
		`INSERT INTO cycle_history
		 (cycle_id, timestamp, mode, considered, built, count, top_profit, duration_ms, fallback, diagnostic)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CycleID, r.Timestamp, r.Mode, r.Considered, r.Built, r.Count, r.TopProfit, r.DurationMs, r.Fallback, r.Diagnostic,
	)
	if err != nil {
		return 0
	}
	id, _ := result.LastInsertId()
	return id
}

// GetCycles returns the last N cycles (newest first).
func (d *DB) GetCycles(limit int) []CycleRecord {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query(
		`SELECT id, cycle_id, timestamp, mode, considered, built, count, top_profit, duration_ms, fallback, diagnostic
		 FROM cycle_history ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return []CycleRecord{}
	}
	defer rows.Close()

	var records []CycleRecord
	for rows.Next() {
		var r CycleRecord
		rows.Scan(&r.ID, &r.CycleID, &r.Timestamp, &r.Mode, &r.Considered, &r.Built,
			&r.Count, &r.TopProfit, &r.DurationMs, &r.Fallback, &r.Diagnostic)
		records = append(records, r)
	}
	if records == nil {
		return []CycleRecord{}
	}
	return records
}

// PruneCycles deletes cycles recorded before cutoff and returns how many
// rows were removed.
func (d *DB) PruneCycles(cutoff time.Time) int64 {
	result, err := d.sql.Exec(
		"DELETE FROM cycle_history WHERE timestamp < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0
	}
	n, _ := result.RowsAffected()
	return n
}
