package tracker

import (
	"time"

	"github.com/dayztools/tracker/internal/models"
	"github.com/dayztools/tracker/internal/storage"
)

// applyJoin drives the OFFLINE -> ONLINE transition. The storage layer
// applies the player upsert, history rows and session open as one atomic
// unit; a join for an already-online player is idempotent and only refreshes
// identity and last_seen.
func (t *Tracker) applyJoin(rec storage.JoinRecord) {
	if t.geo != nil && rec.IP != "" {
		rec.Country = t.geo.GetCountryCode(rec.IP)
	}

	playerID, opened, err := t.store.ApplyJoin(rec)
	if err != nil {
		t.log.Error().Err(err).
			Str("name", rec.Name).
			Str("guid", rec.GUID).
			Msg("Failed to apply join")
		return
	}

	if !opened {
		t.log.Warn().
			Str("name", rec.Name).
			Str("guid", rec.GUID).
			Msg("Duplicate join for online player, session kept")
		return
	}

	t.log.Info().
		Str("name", rec.Name).
		Str("guid", rec.GUID).
		Str("ip", rec.IP).
		Msg("Player joined")

	if t.notifier != nil {
		t.notifier.Publish(t.server.Name, playerID, EventJoin, "", rec.Time)
	}
}

// applyLeave drives the ONLINE -> OFFLINE transition for a log-observed
// disconnect, resolving the player by current display name.
func (t *Tracker) applyLeave(name string, at time.Time) {
	result, err := t.store.ApplyLeave(t.server.Name, name, at, models.CloseDisconnect)
	if err != nil {
		t.log.Error().Err(err).Str("name", name).Msg("Failed to apply leave")
		return
	}

	if result == nil {
		t.log.Warn().Str("name", name).Msg("Disconnect without matching online player, ignored")
		return
	}

	t.log.Info().
		Str("name", name).
		Int64("duration", result.Duration).
		Msg("Player left")

	if t.notifier != nil {
		t.notifier.Publish(t.server.Name, result.PlayerID, EventLeave, models.CloseDisconnect, at)
	}
}
