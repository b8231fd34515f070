package tracker

import (
	"time"

	"github.com/dayztools/tracker/internal/models"
	"github.com/dayztools/tracker/internal/storage"
)

// syncOnline reconciles the persisted online state against the remote query
// when the tracker attaches. The step order matters:
//
//  1. Seek the log reader to end of file, skipping the historical backlog.
//  2. Ask the server who is online right now.
//  3. Open sessions for players connected before tracking began.
//  4. Close sessions left open by a previous crash.
//
// Any remote failure degrades to log-only tracking with a warning; it never
// blocks startup.
func (t *Tracker) syncOnline(now time.Time) {
	if err := t.reader.SeekEnd(); err != nil {
		t.log.Warn().Err(err).Msg("Could not seek log to end, starting from stored offset")
	} else if err := t.store.SaveOffset(t.server.Name, t.reader.Path(), t.reader.Offset()); err != nil {
		t.log.Error().Err(err).Msg("Failed to persist log offset")
	}

	if t.query == nil {
		t.log.Debug().Msg("No online query configured, log-only tracking")
		return
	}

	if t.probe != nil {
		if err := t.probe(); err != nil {
			t.log.Warn().Err(err).Msg("Server not answering queries, reconciliation sync skipped")
			return
		}
	}

	online, err := t.query()
	if err != nil {
		t.log.Warn().Err(err).Msg("Online query failed, reconciliation sync skipped")
		return
	}

	// Backfill sessions for players who joined before the tracker attached.
	connected := make(map[string]struct{}, len(online))
	for _, p := range online {
		if p.GUID == "" || p.GUID == "-" {
			t.log.Warn().Str("name", p.Name).Msg("Online player without GUID skipped in sync")
			continue
		}
		connected[p.GUID] = struct{}{}

		t.applyJoin(storage.JoinRecord{
			ServerID: t.server.Name,
			GUID:     p.GUID,
			Name:     p.Name,
			IP:       p.IP,
			Port:     p.Port,
			Time:     now,
		})
	}

	// Close sessions of players the server no longer reports: a crash or a
	// missed disconnect while the tracker was down.
	stored, err := t.store.OnlinePlayers(t.server.Name)
	if err != nil {
		t.log.Error().Err(err).Msg("Failed to list stored online players")
		return
	}

	for _, p := range stored {
		if _, ok := connected[p.GUID]; ok {
			continue
		}

		result, err := t.store.ApplyLeaveByPlayerID(p.ID, now, models.CloseCrash)
		if err != nil {
			t.log.Error().Err(err).Str("guid", p.GUID).Msg("Failed to close stale session")
			continue
		}

		t.log.Info().
			Str("name", p.CurrentName).
			Str("guid", p.GUID).
			Msg("Closed crash-detected session")

		if result != nil && t.notifier != nil {
			t.notifier.Publish(t.server.Name, p.ID, EventLeave, models.CloseCrash, now)
		}
	}

	t.log.Info().Int("online", len(connected)).Msg("Reconciliation sync completed")
}
