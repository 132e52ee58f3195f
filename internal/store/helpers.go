package store

import "database/sql"

// ignoreNoRows maps sql.ErrNoRows to nil so lookups can return a nil row
// instead of an error for "not found".
func ignoreNoRows(err error) error {
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}
