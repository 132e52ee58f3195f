package store

import (
	"fmt"
	"time"
)

// InsertDraft creates an AI-origin outbox row in draft status.
func (db *DB) InsertDraft(chatID, sourceMessageID, text string, priority int) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO outbox (chat_id, source_message_id, text, origin, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chatID, sourceMessageID, text, OriginAI, StatusDraft, priority, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertManual creates a manual-origin outbox row. clientRef deduplicates
// operator double-submits: a repeated ref returns the existing row's id.
func (db *DB) InsertManual(chatID, text, clientRef, status string, priority int) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO outbox (chat_id, text, client_ref, origin, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_ref) DO NOTHING`,
		chatID, text, clientRef, OriginManual, status, priority, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var id int64
		if err := db.QueryRow(`SELECT id FROM outbox WHERE client_ref = ?`, clientRef).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	return res.LastInsertId()
}

// GetOutboxEntry returns one outbox row by id, or nil when absent.
func (db *DB) GetOutboxEntry(id int64) (*OutboxEntry, error) {
	row := db.QueryRow(`
		SELECT id, chat_id, COALESCE(source_message_id, ''), COALESCE(client_ref, ''),
		       text, origin, status, priority, attempts, COALESCE(sent_message_id, ''), created_at
		FROM outbox WHERE id = ?`, id)
	var e OutboxEntry
	if err := scanOutbox(row, &e); err != nil {
		return nil, ignoreNoRows(err)
	}
	return &e, nil
}

// PendingOutbox returns rows eligible for the delivery sweep: draft or queued,
// ordered by priority descending then insertion order ascending, so urgent
// entries are never starved by a backlog of low-priority drafts.
func (db *DB) PendingOutbox(limit int) ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, chat_id, COALESCE(source_message_id, ''), COALESCE(client_ref, ''),
		       text, origin, status, priority, attempts, COALESCE(sent_message_id, ''), created_at
		FROM outbox
		WHERE status = ? OR status = ?
		ORDER BY priority DESC, id ASC
		LIMIT ?`, StatusDraft, StatusQueued, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := scanOutbox(rows, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListOutboxByStatus returns rows in one status, newest first. An empty
// status returns everything.
func (db *DB) ListOutboxByStatus(status string) ([]OutboxEntry, error) {
	query := `
		SELECT id, chat_id, COALESCE(source_message_id, ''), COALESCE(client_ref, ''),
		       text, origin, status, priority, attempts, COALESCE(sent_message_id, ''), created_at
		FROM outbox`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := scanOutbox(rows, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkOutboxSent finalizes a row: sent is terminal.
func (db *DB) MarkOutboxSent(id int64, sentMessageID string) error {
	_, err := db.Exec(`UPDATE outbox SET status = ?, sent_message_id = ? WHERE id = ?`,
		StatusSent, sentMessageID, id)
	return err
}

// RecordSendFailure increments the attempts counter and flips the row to
// failed once the counter reaches the cap, in one atomic statement.
func (db *DB) RecordSendFailure(id int64) error {
	_, err := db.Exec(`
		UPDATE outbox
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END
		WHERE id = ?`,
		MaxSendAttempts, StatusFailed, StatusQueued, id)
	return err
}

// PromoteDraft moves a draft to queued, making it eligible for delivery.
// Refuses rows in any other status.
func (db *DB) PromoteDraft(id int64) error {
	res, err := db.Exec(`UPDATE outbox SET status = ? WHERE id = ? AND status = ?`,
		StatusQueued, id, StatusDraft)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("outbox entry %d is not a draft", id)
	}
	return nil
}

// RetryFailed resets a failed row to queued with attempts back to zero.
// It never touches a sent row.
func (db *DB) RetryFailed(id int64) error {
	res, err := db.Exec(`UPDATE outbox SET status = ?, attempts = 0 WHERE id = ? AND status = ?`,
		StatusQueued, id, StatusFailed)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("outbox entry %d is not failed", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutbox(r rowScanner, e *OutboxEntry) error {
	return r.Scan(&e.ID, &e.ChatID, &e.SourceMessageID, &e.ClientRef,
		&e.Text, &e.Origin, &e.Status, &e.Priority, &e.Attempts, &e.SentMessageID, &e.CreatedAt)
}
