package store

import "time"

// Follow-up reasons.
const (
	FollowUpQuestion = "question"
	FollowUpCatchUp  = "catch_up"
)

// InsertFollowUp flags a contact. The unique (contact, reason, message) key
// makes re-running the detection job a no-op for rows already flagged.
func (db *DB) InsertFollowUp(contactID, reason, messageID string) error {
	_, err := db.Exec(`
		INSERT INTO follow_ups (contact_id, reason, message_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contact_id, reason, message_id) DO NOTHING`,
		contactID, reason, messageID, time.Now().Unix())
	return err
}

// ListFollowUps returns all flagged follow-ups, newest first.
func (db *DB) ListFollowUps() ([]FollowUp, error) {
	rows, err := db.Query(`
		SELECT id, contact_id, reason, message_id, created_at
		FROM follow_ups ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []FollowUp
	for rows.Next() {
		var f FollowUp
		if err := rows.Scan(&f.ID, &f.ContactID, &f.Reason, &f.MessageID, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UnansweredQuestions returns inbound messages containing a question mark
// within the window that have no later from-me message in the same chat.
func (db *DB) UnansweredQuestions(days int) ([]Message, error) {
	cutoff := time.Now().Unix() - int64(days)*86400
	rows, err := db.Query(`
		SELECT m.id, m.chat_id, m.from_me, m.timestamp, m.body
		FROM messages m
		WHERE m.from_me = 0
		  AND m.body LIKE '%?%'
		  AND m.timestamp >= ?
		  AND NOT EXISTS (
		    SELECT 1 FROM messages m2
		    WHERE m2.chat_id = m.chat_id AND m2.from_me = 1 AND m2.timestamp > m.timestamp
		  )`, cutoff)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.FromMe, &m.Timestamp, &m.Body); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// StaleChat is a chat whose most recent message is older than the cutoff.
type StaleChat struct {
	ChatID   string
	LastSeen int64
}

// StaleChats returns chats with no activity for the given number of days.
func (db *DB) StaleChats(days int) ([]StaleChat, error) {
	cutoff := time.Now().Unix() - int64(days)*86400
	rows, err := db.Query(`
		SELECT chat_id, MAX(timestamp) AS last_time
		FROM messages
		GROUP BY chat_id
		HAVING MAX(timestamp) < ?`, cutoff)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []StaleChat
	for rows.Next() {
		var s StaleChat
		if err := rows.Scan(&s.ChatID, &s.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
