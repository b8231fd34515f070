package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dayztools/tracker/internal/models"
)

// playerColumns is the scan order shared by all player queries.
const playerColumns = `id, server_id, public_id, guid, steam_id, bohemia_id,
	current_name, current_ip, current_port, is_online,
	total_playtime, session_count, first_seen, last_seen`

// scanPlayer reads one player row in playerColumns order.
func scanPlayer(row interface{ Scan(...any) error }) (*models.Player, error) {
	var p models.Player
	err := row.Scan(
		&p.ID, &p.ServerID, &p.PublicID, &p.GUID, &p.SteamID, &p.BohemiaID,
		&p.CurrentName, &p.CurrentIP, &p.CurrentPort, &p.IsOnline,
		&p.TotalPlaytime, &p.SessionCount, &p.FirstSeen, &p.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// FindPlayerByGUID returns the player for (server, guid) or nil when unknown.
func (r *Repository) FindPlayerByGUID(serverID, guid string) (*models.Player, error) {
	row := r.db.QueryRow(
		`SELECT `+playerColumns+` FROM players WHERE server_id = ? AND guid = ?`,
		serverID, guid)

	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return p, err
}

// FindPlayerByPublicID returns the player with the given public identifier or nil.
func (r *Repository) FindPlayerByPublicID(publicID string) (*models.Player, error) {
	row := r.db.QueryRow(
		`SELECT `+playerColumns+` FROM players WHERE public_id = ?`, publicID)

	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return p, err
}

// FindOnlinePlayerByName returns the online player currently using the given
// display name, or nil when no online player matches. Name is the only
// correlation key available for several log line shapes.
func (r *Repository) FindOnlinePlayerByName(serverID, name string) (*models.Player, error) {
	row := r.db.QueryRow(
		`SELECT `+playerColumns+` FROM players
		WHERE server_id = ? AND current_name = ? AND is_online = 1`,
		serverID, name)

	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return p, err
}

// OnlinePlayers returns all players currently marked online for a server.
func (r *Repository) OnlinePlayers(serverID string) ([]models.Player, error) {
	rows, err := r.db.Query(
		`SELECT `+playerColumns+` FROM players
		WHERE server_id = ? AND is_online = 1
		ORDER BY last_seen DESC`,
		serverID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var players []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			continue
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return players, nil
}

// UpdatePlayerIdentity fills identity fields of the online player matched by
// name. GUID, Steam ID and Bohemia ID are only set when currently empty; the
// GUID is the primary key of the row and never overwritten once known.
// Returns false when no online player matches the name.
func (r *Repository) UpdatePlayerIdentity(serverID, name, steamID, bohemiaID string, t time.Time) (bool, error) {
	res, err := r.db.Exec(
		`UPDATE players SET
			steam_id = CASE WHEN steam_id = '' AND ? != '' THEN ? ELSE steam_id END,
			bohemia_id = CASE WHEN bohemia_id = '' AND ? != '' THEN ? ELSE bohemia_id END,
			last_seen = ?
		WHERE server_id = ? AND current_name = ? AND is_online = 1`,
		steamID, steamID, bohemiaID, bohemiaID, t.UTC(), serverID, name)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// ensurePlayer finds or creates the player row for (server, guid) inside tx
// and brings its current identity fields and history rows up to date.
// Returns the player ID and whether the row already carries an open session.
func ensurePlayer(tx *sql.Tx, rec JoinRecord) (int64, error) {
	var id int64
	err := tx.QueryRow(
		`SELECT id FROM players WHERE server_id = ? AND guid = ?`,
		rec.ServerID, rec.GUID).Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		id, err = insertPlayer(tx, rec)
		if err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if err := updatePlayer(tx, id, rec); err != nil {
			return 0, err
		}
	}

	if rec.Name != "" {
		if err := touchName(tx, id, rec.Name, rec.Time); err != nil {
			return 0, err
		}
	}
	if rec.IP != "" {
		if err := touchAddress(tx, id, rec.IP, rec.Port, rec.Country, rec.Time); err != nil {
			return 0, err
		}
	}

	return id, nil
}

// insertPlayer creates a new player row. On a public-id collision the
// identifier is regenerated and the insert retried once; a second collision
// fails the creation.
func insertPlayer(tx *sql.Tx, rec JoinRecord) (int64, error) {
	t := rec.Time.UTC()

	for attempt := 0; attempt < 2; attempt++ {
		publicID, err := newPublicID()
		if err != nil {
			return 0, err
		}

		res, err := tx.Exec(
			`INSERT INTO players (
				server_id, public_id, guid, steam_id, bohemia_id,
				current_name, current_ip, current_port, is_online,
				total_playtime, session_count, first_seen, last_seen
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?)`,
			rec.ServerID, publicID, rec.GUID, rec.SteamID, rec.BohemiaID,
			rec.Name, rec.IP, rec.Port, t, t)
		if err != nil {
			if isPublicIDCollision(err) {
				continue
			}
			return 0, err
		}

		return res.LastInsertId()
	}

	return 0, fmt.Errorf("public id collision persisted after retry for guid %s", rec.GUID)
}

// updatePlayer refreshes the current identity fields of an existing row.
// Optional identifiers are filled only when previously unknown.
func updatePlayer(tx *sql.Tx, id int64, rec JoinRecord) error {
	_, err := tx.Exec(
		`UPDATE players SET
			current_name = CASE WHEN ? != '' THEN ? ELSE current_name END,
			current_ip   = CASE WHEN ? != '' THEN ? ELSE current_ip END,
			current_port = CASE WHEN ? != 0 THEN ? ELSE current_port END,
			steam_id     = CASE WHEN steam_id = '' AND ? != '' THEN ? ELSE steam_id END,
			bohemia_id   = CASE WHEN bohemia_id = '' AND ? != '' THEN ? ELSE bohemia_id END,
			last_seen    = ?
		WHERE id = ?`,
		rec.Name, rec.Name, rec.IP, rec.IP, rec.Port, rec.Port,
		rec.SteamID, rec.SteamID, rec.BohemiaID, rec.BohemiaID,
		rec.Time.UTC(), id)

	return err
}

// isPublicIDCollision reports whether err is the UNIQUE violation on public_id.
func isPublicIDCollision(err error) bool {
	return err != nil && strings.Contains(err.Error(), "players.public_id")
}

// TouchOnline refreshes last_seen for every online player of a server.
// Used by the heartbeat task; performs no session transitions.
func (r *Repository) TouchOnline(serverID string, t time.Time) (int64, error) {
	res, err := r.db.Exec(
		`UPDATE players SET last_seen = ? WHERE server_id = ? AND is_online = 1`,
		t.UTC(), serverID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
