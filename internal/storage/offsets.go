package storage

import (
	"database/sql"
	"time"
)

// Offset returns the stored byte offset for a server's log file, or zero when
// no offset was recorded yet.
func (r *Repository) Offset(serverID string) (int64, error) {
	var offset int64
	err := r.db.QueryRow(
		`SELECT position FROM log_offsets WHERE server_id = ?`, serverID).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return offset, nil
}

// SaveOffset persists the byte offset reached in a server's log file so a
// restart resumes without re-reading history.
func (r *Repository) SaveOffset(serverID, path string, offset int64) error {
	_, err := r.db.Exec(
		`INSERT INTO log_offsets (server_id, path, position, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(server_id) DO UPDATE SET
			path = excluded.path,
			position = excluded.position,
			updated_at = excluded.updated_at`,
		serverID, path, offset, time.Now().UTC())

	return err
}
