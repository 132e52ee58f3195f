package store

import (
	"database/sql"
	"time"
)

// MarkJobStart records that a named job has begun. Upserts by job name so the
// ledger row exists from the first run onward; rows are never deleted.
func (db *DB) MarkJobStart(job string) error {
	_, err := db.Exec(`
		INSERT INTO job_status (job, last_start) VALUES (?, ?)
		ON CONFLICT(job) DO UPDATE SET last_start = excluded.last_start`,
		job, time.Now().UTC())
	return err
}

// MarkJobEnd records completion. jobErr is stored stringified, or cleared on
// success so a later healthy run wipes a stale error.
func (db *DB) MarkJobEnd(job string, jobErr error) error {
	var lastError sql.NullString
	if jobErr != nil {
		lastError = sql.NullString{String: jobErr.Error(), Valid: true}
	}
	_, err := db.Exec(`UPDATE job_status SET last_end = ?, last_error = ? WHERE job = ?`,
		time.Now().UTC(), lastError, job)
	return err
}

// ListJobs returns the full ledger, ordered by job name.
func (db *DB) ListJobs() ([]JobStatus, error) {
	rows, err := db.Query(`SELECT job, last_start, last_end, last_error FROM job_status ORDER BY job`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []JobStatus
	for rows.Next() {
		var j JobStatus
		var lastStart, lastEnd sql.NullTime
		var lastError sql.NullString
		if err := rows.Scan(&j.Job, &lastStart, &lastEnd, &lastError); err != nil {
			return nil, err
		}
		j.LastStart = lastStart.Time
		j.LastEnd = lastEnd.Time
		j.LastError = lastError.String
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// GetJob returns one ledger row, or nil when the job has never run.
func (db *DB) GetJob(job string) (*JobStatus, error) {
	row := db.QueryRow(`SELECT job, last_start, last_end, last_error FROM job_status WHERE job = ?`, job)
	var j JobStatus
	var lastStart, lastEnd sql.NullTime
	var lastError sql.NullString
	if err := row.Scan(&j.Job, &lastStart, &lastEnd, &lastError); err != nil {
		return nil, ignoreNoRows(err)
	}
	j.LastStart = lastStart.Time
	j.LastEnd = lastEnd.Time
	j.LastError = lastError.String
	return &j, nil
}
