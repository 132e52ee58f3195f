package store

import (
	"database/sql"
	"time"
)

// ShouldBackfill reports whether the history backfill watermark is older than
// the interval (or has never been set).
func (db *DB) ShouldBackfill(interval time.Duration) (bool, error) {
	var last time.Time
	err := db.QueryRow(`SELECT last_fetch FROM fetch_meta WHERE id = 1`).Scan(&last)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return time.Since(last) > interval, nil
}

// TouchBackfill sets the history backfill watermark to now.
func (db *DB) TouchBackfill() error {
	_, err := db.Exec(`
		INSERT INTO fetch_meta (id, last_fetch) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_fetch = excluded.last_fetch`,
		time.Now().UTC())
	return err
}
