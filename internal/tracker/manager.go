package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/dayztools/tracker/internal/config"
	"github.com/dayztools/tracker/internal/game"
	"github.com/dayztools/tracker/internal/geoip"
	"github.com/dayztools/tracker/internal/models"
	"github.com/dayztools/tracker/internal/rcon"
	"github.com/dayztools/tracker/internal/storage"
	"github.com/rs/zerolog/log"
)

// Manager owns one tracker per configured server plus the optional retention
// task. Trackers run concurrently but never share mutable state; failures in
// one server never affect the others.
type Manager struct {
	store    *storage.Repository
	notifier *Notifier
	trackers []*Tracker
	tracking config.Tracking
	wg       sync.WaitGroup
}

// NewManager builds trackers for every server, wiring the BattlEye RCON
// query and the A2S liveness probe from the server spec.
func NewManager(cfg *config.Config, servers []config.ServerConfig, store *storage.Repository, geo *geoip.Provider) (*Manager, error) {
	m := &Manager{
		store:    store,
		notifier: NewNotifier(),
		tracking: cfg.Tracking,
	}

	for _, srv := range servers {
		opts := Options{
			Store:    store,
			Geo:      geo,
			Notifier: m.notifier,
			Server:   srv,
			Tracking: cfg.Tracking,
			Query:    queryFor(srv, cfg.RCON),
		}

		if srv.QueryAddress != "" {
			address := srv.QueryAddress
			a2sOpts := cfg.A2S
			opts.Probe = func() error {
				return game.Ping(address, a2sOpts)
			}
		}

		t, err := New(opts)
		if err != nil {
			return nil, err
		}

		m.trackers = append(m.trackers, t)
	}

	return m, nil
}

// queryFor builds the remote online query for a server. Each call opens a
// fresh short-lived RCON session, keeping the call idempotent.
func queryFor(srv config.ServerConfig, opts config.RCON) QueryFunc {
	if srv.RCONAddress == "" {
		return nil
	}

	return func() ([]models.OnlinePlayer, error) {
		return rcon.FetchPlayers(srv.RCONAddress, srv.RCONPassword, opts)
	}
}

// Notifier exposes the shared event stream for downstream consumers.
func (m *Manager) Notifier() *Notifier {
	return m.notifier
}

// Start launches all trackers and, when retention is enabled, the daily
// session purge. It returns immediately; use Wait after cancelling the
// context to let in-flight polls finish.
func (m *Manager) Start(ctx context.Context) {
	for _, t := range m.trackers {
		m.wg.Add(1)
		go func(t *Tracker) {
			defer m.wg.Done()
			t.Run(ctx)
		}(t)
	}

	if m.tracking.RetentionDays > 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.retentionLoop(ctx)
		}()
	}

	log.Info().Int("servers", len(m.trackers)).Msg("Player tracking started")
}

// Wait blocks until every tracker has finished, then closes the notifier.
func (m *Manager) Wait() {
	m.wg.Wait()
	m.notifier.Close()
}

// retentionLoop purges closed sessions older than the retention window once
// a day. Player rows are never purged.
func (m *Manager) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -m.tracking.RetentionDays)
			deleted, err := m.store.PruneSessions(cutoff)
			if err != nil {
				log.Error().Err(err).Msg("Session retention purge failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Purged old sessions")
			}
		}
	}
}
