package store

// InsertTranscript stores the transcription result for a message. At most one
// transcript per message; a duplicate insert is a no-op so a re-run after a
// partial failure never duplicates effects.
func (db *DB) InsertTranscript(t *Transcript) error {
	_, err := db.Exec(`
		INSERT INTO transcripts (message_id, text, engine, language, language_confidence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING`,
		t.MessageID, t.Text, t.Engine, t.Language, t.LanguageConfidence)
	return err
}

// GetTranscript returns the transcript for a message, or nil when absent.
func (db *DB) GetTranscript(messageID string) (*Transcript, error) {
	row := db.QueryRow(`
		SELECT message_id, text, engine, language, language_confidence
		FROM transcripts WHERE message_id = ?`, messageID)
	var t Transcript
	if err := row.Scan(&t.MessageID, &t.Text, &t.Engine, &t.Language, &t.LanguageConfidence); err != nil {
		return nil, ignoreNoRows(err)
	}
	return &t, nil
}
