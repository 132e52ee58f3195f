package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertContact inserts or updates a contact. An empty incoming name never
// clobbers a known one.
func (db *DB) UpsertContact(c *Contact) error {
	now := time.Now().Unix()
	_, err := db.Exec(`
		INSERT INTO contacts (id, name, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, now)
	return err
}

// BulkUpsertContacts inserts or updates multiple contacts in a single transaction.
func (db *DB) BulkUpsertContacts(contacts []Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	for _, c := range contacts {
		if _, err := tx.Exec(`
			INSERT INTO contacts (id, name, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
				updated_at = excluded.updated_at`,
			c.ID, c.Name, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// GetContact returns a contact by id, or nil when unknown.
func (db *DB) GetContact(id string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`SELECT id, name, profile FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Profile)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ContactName returns the display name for a chat id, or "" when unknown.
func (db *DB) ContactName(id string) (string, error) {
	c, err := db.GetContact(id)
	if err != nil || c == nil {
		return "", err
	}
	return c.Name, nil
}

// UpdateContactProfile replaces the free-text relationship profile.
func (db *DB) UpdateContactProfile(id, profile string) error {
	_, err := db.Exec(`UPDATE contacts SET profile = ?, updated_at = ? WHERE id = ?`,
		profile, time.Now().Unix(), id)
	return err
}

// ListContactIDs returns every known contact id.
func (db *DB) ListContactIDs() ([]string, error) {
	rows, err := db.Query(`SELECT id FROM contacts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
