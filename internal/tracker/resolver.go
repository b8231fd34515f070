package tracker

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dayztools/tracker/internal/parser"
	"github.com/dayztools/tracker/internal/storage"
)

// pendingIdentity buffers the fragments of one connection until the GUID line
// arrives. Connect, GUID, Steam ID and Bohemia ID events share no transaction
// id in the log; the display name is the only correlation key, so the buffer
// lives only for a short window.
type pendingIdentity struct {
	joinTime  time.Time
	seen      time.Time
	name      string
	ip        string
	steamID   string
	bohemiaID string
	port      int
}

// handleEvent dispatches a single extracted event to the resolver.
func (t *Tracker) handleEvent(event parser.Event) {
	switch event.Kind {
	case parser.KindConnect:
		t.resolveConnect(event)
	case parser.KindGUID:
		t.resolveGUID(event)
	case parser.KindSteamID, parser.KindBohemiaID:
		t.resolveIdentity(event)
	case parser.KindDisconnect:
		t.resolveDisconnect(event)
	}
}

// resolveConnect opens a pending identity for the name. A connect for a name
// that is already online is a known ambiguity (reconnect reusing a name
// before its GUID line, or two players sharing a name): treated as a no-op.
func (t *Tracker) resolveConnect(event parser.Event) {
	online, err := t.store.FindOnlinePlayerByName(t.server.Name, event.Name)
	if err != nil {
		t.log.Error().Err(err).Str("name", event.Name).Msg("Online lookup failed")
		return
	}

	if online != nil {
		t.log.Warn().
			Str("name", event.Name).
			Str("guid", online.GUID).
			Msg("Connect for a name that is already online, ignoring")
		return
	}

	t.pending[pendingKey(event.Name)] = &pendingIdentity{
		name:     event.Name,
		ip:       event.IP,
		port:     event.Port,
		joinTime: event.Time,
		seen:     event.Time,
	}
}

// resolveGUID is the durability anchor: with a GUID the identity can be
// persisted. A buffered connect for the same name becomes a join with the
// connect's timestamp; without one the player row is created or refreshed but
// no session is opened.
func (t *Tracker) resolveGUID(event parser.Event) {
	key := pendingKey(event.Name)

	if p, ok := t.pending[key]; ok && p.name == event.Name {
		delete(t.pending, key)

		t.applyJoin(storage.JoinRecord{
			ServerID:  t.server.Name,
			GUID:      event.GUID,
			Name:      event.Name,
			IP:        p.ip,
			Port:      p.port,
			SteamID:   p.steamID,
			BohemiaID: p.bohemiaID,
			Time:      p.joinTime,
		})
		return
	}

	found, err := t.store.UpdatePlayerIdentity(t.server.Name, event.Name, "", "", event.Time)
	if err != nil {
		t.log.Error().Err(err).Str("name", event.Name).Msg("Identity update failed")
		return
	}
	if found {
		return
	}

	// No pending connect and nobody online under that name: make the
	// identity durable anyway, a join was simply never observed.
	if _, err := t.store.EnsurePlayer(storage.JoinRecord{
		ServerID: t.server.Name,
		GUID:     event.GUID,
		Name:     event.Name,
		Time:     event.Time,
	}); err != nil {
		t.log.Error().Err(err).Str("name", event.Name).Msg("Player creation failed")
	}
}

// resolveIdentity applies a Steam or Bohemia ID to the online player with the
// given name, or buffers it against a pending identity awaiting its GUID.
func (t *Tracker) resolveIdentity(event parser.Event) {
	key := pendingKey(event.Name)

	if p, ok := t.pending[key]; ok && p.name == event.Name {
		if event.SteamID != "" {
			p.steamID = event.SteamID
		}
		if event.BohemiaID != "" {
			p.bohemiaID = event.BohemiaID
		}
		p.seen = event.Time
		return
	}

	found, err := t.store.UpdatePlayerIdentity(
		t.server.Name, event.Name, event.SteamID, event.BohemiaID, event.Time)
	if err != nil {
		t.log.Error().Err(err).Str("name", event.Name).Msg("Identity update failed")
		return
	}

	if !found {
		t.log.Debug().
			Str("name", event.Name).
			Str("kind", event.Kind.String()).
			Msg("Identity fragment without pending or online player, dropped")
	}
}

// resolveDisconnect hands a leave off to the session manager. A disconnect
// with no matching online player is an orphan: logged, never fatal.
func (t *Tracker) resolveDisconnect(event parser.Event) {
	t.applyLeave(event.Name, event.Time)
}

// sweepPending drops pending identities that never received a GUID inside
// the configured window. A connect without a GUID line does not create a
// durable player.
func (t *Tracker) sweepPending(now time.Time) {
	for key, p := range t.pending {
		if now.Sub(p.seen) > t.tracking.PendingWindow {
			delete(t.pending, key)
			t.log.Debug().
				Str("name", p.name).
				Time("connected_at", p.joinTime).
				Msg("Pending identity expired without GUID")
		}
	}
}

// pendingKey hashes the correlation name for the pending map.
func pendingKey(name string) uint64 {
	return xxhash.Sum64String(name)
}
