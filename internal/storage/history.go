package storage

import (
	"database/sql"
	"time"

	"github.com/dayztools/tracker/internal/models"
)

// touchName records a name observation: first sight creates the row, every
// further sight bumps usage_count and last_seen.
func touchName(tx *sql.Tx, playerID int64, name string, t time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO name_records (player_id, name, first_seen, last_seen, usage_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(player_id, name) DO UPDATE SET
			usage_count = usage_count + 1,
			last_seen = excluded.last_seen`,
		playerID, name, t.UTC(), t.UTC())

	return err
}

// touchAddress records an (ip, port) observation, same accounting as touchName.
// The country code is filled on first sight and kept afterwards unless it was
// empty and a resolution is now available.
func touchAddress(tx *sql.Tx, playerID int64, ip string, port int, country string, t time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO address_records (player_id, ip, port, country_code, first_seen, last_seen, usage_count)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(player_id, ip, port) DO UPDATE SET
			usage_count = usage_count + 1,
			last_seen = excluded.last_seen,
			country_code = CASE WHEN country_code = '' THEN excluded.country_code ELSE country_code END`,
		playerID, ip, port, country, t.UTC(), t.UTC())

	return err
}

// PlayerNames returns the name history of a player, newest first.
func (r *Repository) PlayerNames(playerID int64) ([]models.NameRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, player_id, name, first_seen, last_seen, usage_count
		FROM name_records WHERE player_id = ?
		ORDER BY first_seen DESC`,
		playerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []models.NameRecord
	for rows.Next() {
		var n models.NameRecord
		if err := rows.Scan(&n.ID, &n.PlayerID, &n.Name, &n.FirstSeen, &n.LastSeen, &n.UsageCount); err != nil {
			continue
		}
		records = append(records, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// PlayerAddresses returns the address history of a player, newest first.
func (r *Repository) PlayerAddresses(playerID int64) ([]models.AddressRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, player_id, ip, port, country_code, first_seen, last_seen, usage_count
		FROM address_records WHERE player_id = ?
		ORDER BY first_seen DESC`,
		playerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []models.AddressRecord
	for rows.Next() {
		var a models.AddressRecord
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.IP, &a.Port, &a.CountryCode, &a.FirstSeen, &a.LastSeen, &a.UsageCount); err != nil {
			continue
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
