package store

// MarkEmbedded records that a message has been pushed to the vector store.
// The row is a processed-watermark, not semantic data; a duplicate insert is
// success, not error, so re-runs after partial failure converge.
func (db *DB) MarkEmbedded(messageID string) error {
	_, err := db.Exec(`
		INSERT INTO vector_meta (message_id) VALUES (?)
		ON CONFLICT(message_id) DO NOTHING`, messageID)
	return err
}

// UnembeddedBatch returns up to limit messages with non-empty text (transcript
// substituted) that have no vector_meta watermark yet, oldest first.
func (db *DB) UnembeddedBatch(limit int) ([]EmbedRow, error) {
	rows, err := db.Query(`
		SELECT m.id, m.chat_id, m.from_me, m.timestamp, COALESCE(NULLIF(t.text, ''), m.body) AS text
		FROM messages m
		LEFT JOIN transcripts t ON m.id = t.message_id
		WHERE NOT EXISTS (SELECT 1 FROM vector_meta v WHERE v.message_id = m.id)
		  AND COALESCE(NULLIF(t.text, ''), m.body) != ''
		ORDER BY m.timestamp ASC
		LIMIT ?`, limit)
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
