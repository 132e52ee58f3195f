package store

// InsertAttachment records the resolved storage path for a message's media.
// At most one attachment per message; a duplicate insert is a no-op.
func (db *DB) InsertAttachment(a *Attachment) error {
	_, err := db.Exec(`
		INSERT INTO attachments (message_id, file_path, mime_type)
		VALUES (?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING`,
		a.MessageID, a.FilePath, a.MimeType)
	return err
}

// NextAudioWithoutTranscript returns the single oldest audio attachment past
// afterID that has no transcript yet, or nil when the backlog is empty. The
// cursor lets a processing loop step over attachments that keep failing
// instead of spinning on the same row.
func (db *DB) NextAudioWithoutTranscript(afterID int64) (*Attachment, error) {
	row := db.QueryRow(`
		SELECT a.id, a.message_id, a.file_path, a.mime_type
		FROM attachments a
		LEFT JOIN transcripts t ON a.message_id = t.message_id
		WHERE t.message_id IS NULL AND a.mime_type LIKE 'audio/%' AND a.id > ?
		ORDER BY a.id ASC
		LIMIT 1`, afterID)
	var a Attachment
	if err := row.Scan(&a.ID, &a.MessageID, &a.FilePath, &a.MimeType); err != nil {
		return nil, ignoreNoRows(err)
	}
	return &a, nil
}

// GetAttachment returns the attachment for a message, or nil when absent.
func (db *DB) GetAttachment(messageID string) (*Attachment, error) {
	row := db.QueryRow(`
		SELECT id, message_id, file_path, mime_type
		FROM attachments WHERE message_id = ?`, messageID)
	var a Attachment
	if err := row.Scan(&a.ID, &a.MessageID, &a.FilePath, &a.MimeType); err != nil {
		return nil, ignoreNoRows(err)
	}
	return &a, nil
}
