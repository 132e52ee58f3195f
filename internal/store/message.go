package store

import "time"

// InsertMessage stores a message exactly once. Duplicate protocol deliveries
// are no-ops keyed by the protocol-assigned id.
func (db *DB) InsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (id, chat_id, from_me, timestamp, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		m.ID, m.ChatID, m.FromMe, m.Timestamp, m.Body)
	return err
}

// GetMessage returns a message by id, or nil when unknown.
func (db *DB) GetMessage(id string) (*Message, error) {
	row := db.QueryRow(`SELECT id, chat_id, from_me, timestamp, body FROM messages WHERE id = ?`, id)
	var m Message
	if err := row.Scan(&m.ID, &m.ChatID, &m.FromMe, &m.Timestamp, &m.Body); err != nil {
		return nil, ignoreNoRows(err)
	}
	return &m, nil
}

// RecentByDirection returns the most recent rows for one direction of a chat,
// newest first, with transcript text substituted for the body when present.
func (db *DB) RecentByDirection(chatID string, fromMe bool, limit int) ([]HistoryRow, error) {
	rows, err := db.Query(`
		SELECT m.id, m.from_me, m.timestamp, COALESCE(NULLIF(t.text, ''), m.body) AS text
		FROM messages m
		LEFT JOIN transcripts t ON m.id = t.message_id
		WHERE m.chat_id = ? AND m.from_me = ?
		ORDER BY m.timestamp DESC
		LIMIT ?`, chatID, fromMe, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.MsgID, &h.FromMe, &h.Timestamp, &h.Text); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// RecentForChat returns up to limit most recent rows of a chat regardless of
// direction, newest first, transcript text substituted.
func (db *DB) RecentForChat(chatID string, limit int) ([]HistoryRow, error) {
	rows, err := db.Query(`
		SELECT m.id, m.from_me, m.timestamp, COALESCE(NULLIF(t.text, ''), m.body) AS text
		FROM messages m
		LEFT JOIN transcripts t ON m.id = t.message_id
		WHERE m.chat_id = ?
		ORDER BY m.timestamp DESC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.MsgID, &h.FromMe, &h.Timestamp, &h.Text); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// PendingForAssistant returns inbound messages within the lookback window
// that have no outbox row yet, newest first.
func (db *DB) PendingForAssistant(lookbackDays, limit int) ([]EmbedRow, error) {
	cutoff := time.Now().Unix() - int64(lookbackDays)*86400
	rows, err := db.Query(`
		SELECT m.id, m.chat_id, m.from_me, m.timestamp, COALESCE(NULLIF(t.text, ''), m.body) AS text
		FROM messages m
		LEFT JOIN transcripts t ON m.id = t.message_id
		WHERE m.from_me = 0
		  AND m.timestamp >= ?
		  AND NOT EXISTS (SELECT 1 FROM outbox o WHERE o.source_message_id = m.id)
		ORDER BY m.timestamp DESC
		LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []EmbedRow
	for rows.Next() {
		var h EmbedRow
		if err := rows.Scan(&h.MsgID, &h.ChatID, &h.FromMe, &h.Timestamp, &h.Text); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// SentToday returns from-me messages since UTC midnight, newest first,
// joined with contact names.
func (db *DB) SentToday() ([]SentMessage, error) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Unix()
	rows, err := db.Query(`
		SELECT m.chat_id, COALESCE(c.name, ''), m.timestamp, m.body
		FROM messages m
		LEFT JOIN contacts c ON m.chat_id = c.id
		WHERE m.from_me = 1 AND m.timestamp >= ?
		ORDER BY m.timestamp DESC`, midnight)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SentMessage
	for rows.Next() {
		var s SentMessage
		if err := rows.Scan(&s.ChatID, &s.ContactName, &s.Timestamp, &s.Body); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MessageCount returns the total number of stored messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
