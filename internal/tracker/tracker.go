// Package tracker implements the per-server player tracking engine: log tail
// polling, identity resolution, session management, reconciliation sync and
// the heartbeat task.
package tracker

import (
	"context"
	"time"

	"github.com/dayztools/tracker/internal/config"
	"github.com/dayztools/tracker/internal/geoip"
	"github.com/dayztools/tracker/internal/models"
	"github.com/dayztools/tracker/internal/parser"
	"github.com/dayztools/tracker/internal/storage"
	"github.com/dayztools/tracker/internal/tail"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// QueryFunc retrieves the authoritative list of currently connected players.
// Implementations must be idempotent and safe to call repeatedly.
type QueryFunc func() ([]models.OnlinePlayer, error)

// ProbeFunc checks whether the game server process answers at all. A non-nil
// error skips the reconciliation sync.
type ProbeFunc func() error

// Options bundles the dependencies of a single server tracker.
type Options struct {
	// Store is the shared persistence layer. Required.
	Store *storage.Repository

	// Geo resolves IP addresses to country codes. May be nil.
	Geo *geoip.Provider

	// Notifier receives resolved join/leave events. May be nil.
	Notifier *Notifier

	// Query is the remote "who is online" interface. Nil disables the
	// reconciliation sync (log-only tracking).
	Query QueryFunc

	// Probe gates the sync on server liveness. May be nil.
	Probe ProbeFunc

	// Server identifies the tracked server and its log file.
	Server config.ServerConfig

	// Tracking holds intervals and the pending-identity window.
	Tracking config.Tracking
}

// Tracker drives tracking for one game server. All of its work runs on a
// single goroutine, so a poll still in flight simply absorbs the next tick
// instead of overlapping it. Trackers for different servers are independent.
type Tracker struct {
	store    *storage.Repository
	geo      *geoip.Provider
	notifier *Notifier
	query    QueryFunc
	probe    ProbeFunc
	reader   *tail.Reader
	pending  map[uint64]*pendingIdentity

	server   config.ServerConfig
	tracking config.Tracking

	// readWarn throttles repeated warnings about an unreadable log file.
	readWarn rate.Sometimes

	log zerolog.Logger
}

// New creates a tracker for a single server. The log reader resumes from the
// offset persisted for this server, if any.
func New(opts Options) (*Tracker, error) {
	offset, err := opts.Store.Offset(opts.Server.Name)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		store:    opts.Store,
		geo:      opts.Geo,
		notifier: opts.Notifier,
		query:    opts.Query,
		probe:    opts.Probe,
		reader:   tail.NewReader(opts.Server.LogPath, offset),
		pending:  make(map[uint64]*pendingIdentity),
		server:   opts.Server,
		tracking: opts.Tracking,
		readWarn: rate.Sometimes{First: 1, Interval: 5 * time.Minute},
		log:      log.With().Str("server", opts.Server.Name).Logger(),
	}, nil
}

// Run attaches the tracker and polls until the context is cancelled. An
// in-flight poll always finishes before Run returns.
func (t *Tracker) Run(ctx context.Context) {
	t.log.Info().Str("log", t.server.LogPath).Msg("Tracker attached")

	t.syncOnline(time.Now())

	poll := time.NewTicker(t.tracking.PollInterval)
	defer poll.Stop()

	heartbeat := time.NewTicker(t.tracking.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Info().Msg("Tracker stopped")
			return
		case <-poll.C:
			t.poll()
		case <-heartbeat.C:
			t.heartbeat()
		}
	}
}

// poll reads new log lines, feeds them through the extractor and resolver,
// sweeps expired pending identities and persists the advanced offset.
// Every failure here is transient: logged and retried next cycle.
func (t *Tracker) poll() {
	before := t.reader.Offset()

	lines, err := t.reader.ReadNew()
	if err != nil {
		t.readWarn.Do(func() {
			t.log.Warn().Err(err).Msg("Log file unavailable, skipping poll cycle")
		})
		return
	}

	now := time.Now()

	for _, line := range lines {
		event, ok := parser.Parse(line, now)
		if !ok {
			t.log.Trace().Str("line", line).Msg("Unmatched log line discarded")
			continue
		}

		t.handleEvent(event)
	}

	t.sweepPending(now)

	if t.reader.Offset() != before {
		if err := t.store.SaveOffset(t.server.Name, t.reader.Path(), t.reader.Offset()); err != nil {
			t.log.Error().Err(err).Msg("Failed to persist log offset")
		}
	}
}

// heartbeat refreshes last_seen for all online players. No session
// transitions happen here; it only bounds staleness during quiet periods.
func (t *Tracker) heartbeat() {
	count, err := t.store.TouchOnline(t.server.Name, time.Now())
	if err != nil {
		t.log.Error().Err(err).Msg("Heartbeat update failed")
		return
	}

	if count > 0 {
		t.log.Debug().Int64("players", count).Msg("Refreshed online players")
	}
}
