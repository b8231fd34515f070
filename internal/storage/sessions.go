package storage

import (
	"database/sql"
	"time"

	"github.com/dayztools/tracker/internal/models"
)

// JoinRecord carries everything known about a player at the moment a join is
// resolved. Optional fields may be empty; GUID and ServerID are mandatory.
type JoinRecord struct {
	Time      time.Time
	ServerID  string
	GUID      string
	Name      string
	IP        string
	SteamID   string
	BohemiaID string
	Country   string
	Port      int
}

// LeaveResult describes a closed session.
type LeaveResult struct {
	PlayerID int64
	Duration int64
}

// ApplyJoin upserts the player, updates name/address history and opens a new
// session, all in one transaction. When the player already has an open
// session the join is idempotent: identity and last_seen are refreshed but no
// second session is opened. Returns the player ID and whether a session was
// actually opened.
func (r *Repository) ApplyJoin(rec JoinRecord) (int64, bool, error) {
	var (
		playerID int64
		opened   bool
	)

	err := r.withTx(func(tx *sql.Tx) error {
		id, err := ensurePlayer(tx, rec)
		if err != nil {
			return err
		}
		playerID = id

		var open int64
		err = tx.QueryRow(
			`SELECT id FROM sessions WHERE player_id = ? AND leave_time IS NULL`,
			id).Scan(&open)
		if err == nil {
			return nil // duplicate join, keep the existing session
		}
		if err != sql.ErrNoRows {
			return err
		}

		if _, err := tx.Exec(
			`INSERT INTO sessions (player_id, join_time, name_at_join, ip_at_join, port_at_join)
			VALUES (?, ?, ?, ?, ?)`,
			id, rec.Time.UTC(), rec.Name, rec.IP, rec.Port); err != nil {
			return err
		}

		if _, err := tx.Exec(
			`UPDATE players SET is_online = 1, session_count = session_count + 1, last_seen = ?
			WHERE id = ?`,
			rec.Time.UTC(), id); err != nil {
			return err
		}

		opened = true
		return nil
	})

	return playerID, opened, err
}

// EnsurePlayer creates or updates the player row without touching sessions.
// Used when a GUID line arrives with no buffered connect: the identity becomes
// durable but no join was observed.
func (r *Repository) EnsurePlayer(rec JoinRecord) (int64, error) {
	var playerID int64

	err := r.withTx(func(tx *sql.Tx) error {
		id, err := ensurePlayer(tx, rec)
		playerID = id
		return err
	})

	return playerID, err
}

// ApplyLeave closes the open session of the online player using the given
// display name. Returns nil when no online player matches (orphan disconnect)
// or when the matched player has no open session.
func (r *Repository) ApplyLeave(serverID, name string, t time.Time, reason string) (*LeaveResult, error) {
	var playerID int64
	err := r.db.QueryRow(
		`SELECT id FROM players WHERE server_id = ? AND current_name = ? AND is_online = 1`,
		serverID, name).Scan(&playerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return r.ApplyLeaveByPlayerID(playerID, t, reason)
}

// ApplyLeaveByPlayerID closes the open session of a specific player, computes
// its duration and adds it to the cumulative playtime, in one transaction.
// Returns nil when the player has no open session.
func (r *Repository) ApplyLeaveByPlayerID(playerID int64, t time.Time, reason string) (*LeaveResult, error) {
	var result *LeaveResult

	err := r.withTx(func(tx *sql.Tx) error {
		var (
			sessionID int64
			joinTime  time.Time
		)
		err := tx.QueryRow(
			`SELECT id, join_time FROM sessions WHERE player_id = ? AND leave_time IS NULL`,
			playerID).Scan(&sessionID, &joinTime)
		if err == sql.ErrNoRows {
			// Online flag without an open session should not happen;
			// clear the flag so the state converges.
			_, err := tx.Exec(`UPDATE players SET is_online = 0 WHERE id = ?`, playerID)
			return err
		}
		if err != nil {
			return err
		}

		duration := int64(t.Sub(joinTime).Seconds())
		if duration < 0 {
			duration = 0
		}

		if _, err := tx.Exec(
			`UPDATE sessions SET leave_time = ?, duration = ?, close_reason = ? WHERE id = ?`,
			t.UTC(), duration, reason, sessionID); err != nil {
			return err
		}

		if _, err := tx.Exec(
			`UPDATE players SET is_online = 0, last_seen = ?, total_playtime = total_playtime + ?
			WHERE id = ?`,
			t.UTC(), duration, playerID); err != nil {
			return err
		}

		result = &LeaveResult{PlayerID: playerID, Duration: duration}
		return nil
	})

	return result, err
}

// OpenSession returns the open session of a player, or nil if offline.
func (r *Repository) OpenSession(playerID int64) (*models.Session, error) {
	row := r.db.QueryRow(
		`SELECT id, player_id, join_time, leave_time, duration, close_reason,
			name_at_join, ip_at_join, port_at_join
		FROM sessions WHERE player_id = ? AND leave_time IS NULL`,
		playerID)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return s, err
}

// PlayerSessions returns the session history of a player, newest first.
func (r *Repository) PlayerSessions(playerID int64) ([]models.Session, error) {
	rows, err := r.db.Query(
		`SELECT id, player_id, join_time, leave_time, duration, close_reason,
			name_at_join, ip_at_join, port_at_join
		FROM sessions WHERE player_id = ?
		ORDER BY join_time DESC`,
		playerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			continue
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// scanSession reads one session row.
func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	var (
		s        models.Session
		leave    sql.NullTime
		duration sql.NullInt64
		reason   sql.NullString
	)

	err := row.Scan(
		&s.ID, &s.PlayerID, &s.JoinTime, &leave, &duration, &reason,
		&s.NameAtJoin, &s.IPAtJoin, &s.PortAtJoin,
	)
	if err != nil {
		return nil, err
	}

	if leave.Valid {
		t := leave.Time
		s.LeaveTime = &t
	}
	if duration.Valid {
		s.Duration = duration.Int64
	}
	if reason.Valid {
		s.CloseReason = reason.String
	}

	return &s, nil
}

// PruneSessions deletes sessions older than the cutoff. Player rows are never
// deleted by retention.
func (r *Repository) PruneSessions(before time.Time) (int64, error) {
	res, err := r.db.Exec(
		`DELETE FROM sessions WHERE join_time < ? AND leave_time IS NOT NULL`,
		before.UTC())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// CloseStaleSessions closes every open session as crash-detected at the given
// time. Used by the one-shot maintenance command after an unclean shutdown
// when no remote query is available.
func (r *Repository) CloseStaleSessions(t time.Time) (int64, error) {
	var closed int64

	err := r.withTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT id, player_id, join_time FROM sessions WHERE leave_time IS NULL`)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		type stale struct {
			join      time.Time
			sessionID int64
			playerID  int64
		}

		var open []stale
		for rows.Next() {
			var s stale
			if err := rows.Scan(&s.sessionID, &s.playerID, &s.join); err != nil {
				return err
			}
			open = append(open, s)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, s := range open {
			duration := int64(t.Sub(s.join).Seconds())
			if duration < 0 {
				duration = 0
			}

			if _, err := tx.Exec(
				`UPDATE sessions SET leave_time = ?, duration = ?, close_reason = ? WHERE id = ?`,
				t.UTC(), duration, models.CloseCrash, s.sessionID); err != nil {
				return err
			}
			if _, err := tx.Exec(
				`UPDATE players SET is_online = 0, last_seen = ?, total_playtime = total_playtime + ?
				WHERE id = ?`,
				t.UTC(), duration, s.playerID); err != nil {
				return err
			}

			closed++
		}

		return nil
	})

	return closed, err
}
