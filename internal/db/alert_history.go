package db

import (
	"database/sql"
	"errors"
	"time"
)

// AlertRecord is one BUY alert delivery attempt.
type AlertRecord struct {
	ID       int64   `json:"id"`
	ItemID   int     `json:"item_id"`
	ItemName string  `json:"item_name"`
	Signal   string  `json:"signal"`
	ROI      float64 `json:"roi"`
	Message  string  `json:"message"`
	Channel  string  `json:"channel"`
	Error    string  `json:"error,omitempty"`
	CycleID  string  `json:"cycle_id,omitempty"`
	SentAt   string  `json:"sent_at"`
}

// SaveAlert records an alert attempt.
func (d *DB) SaveAlert(a AlertRecord) error {
	if a.SentAt == "" {
		a.SentAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := d.sql.Exec(`
		INSERT INTO alert_history (item_id, item_name, signal, roi, message, channel, error, cycle_id, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ItemID, a.ItemName, a.Signal, a.ROI, a.Message, a.Channel, a.Error, a.CycleID, a.SentAt,
	)
	return err
}

// GetAlerts returns the most recent alerts, newest first. itemID 0 returns
// alerts for every item.
func (d *DB) GetAlerts(itemID, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, item_id, item_name, signal, roi, message, channel, error, cycle_id, sent_at
	            FROM alert_history`
	args := []interface{}{}
	if itemID > 0 {
		query += " WHERE item_id = ?"
		args = append(args, itemID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.sql.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AlertRecord{}
	for rows.Next() {
		var a AlertRecord
		if err := rows.Scan(&a.ID, &a.ItemID, &a.ItemName, &a.Signal, &a.ROI, &a.Message,
			&a.Channel, &a.Error, &a.CycleID, &a.SentAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LastAlertTime returns when an alert was last delivered for itemID; zero
// when none was.
func (d *DB) LastAlertTime(itemID int) (time.Time, error) {
	var sentAt string
	err := d.sql.QueryRow(
		"SELECT sent_at FROM alert_history WHERE item_id = ? AND error = '' ORDER BY id DESC LIMIT 1",
		itemID,
	).Scan(&sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, sentAt)
}
