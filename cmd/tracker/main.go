// main is the entry point of the player tracking service. It initializes the
// configuration, logger, database and GeoIP provider, then starts one tracker
// per configured game server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dayztools/tracker/internal/config"
	"github.com/dayztools/tracker/internal/fake"
	"github.com/dayztools/tracker/internal/geoip"
	"github.com/dayztools/tracker/internal/logger"
	"github.com/dayztools/tracker/internal/maintenance"
	"github.com/dayztools/tracker/internal/storage"
	"github.com/dayztools/tracker/internal/tracker"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Msg("Starting player tracker...")

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Data generation or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(store, "fake", cfg.Storage.GenerateCount)
		return
	} else if maintenance.Run(cfg, store) {
		return
	}

	servers, err := cfg.ParseServers()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid server configuration")
	}
	if len(servers) == 0 {
		log.Fatal().Msg("No servers configured, pass at least one --server spec")
	}

	// GeoIP (optional, country annotation on address history)
	var geoProvider *geoip.Provider
	if !cfg.GeoIP.Disable {
		if err := geoip.EnsureDB(cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		geoProvider, err = geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
			geoProvider = nil
		} else {
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
		}
	}

	manager, err := tracker.NewManager(cfg, servers, store, geoProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize trackers")
	}

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)

	// Downstream consumers (dashboard, webhooks) attach here; until then the
	// event stream is surfaced at debug level.
	go func() {
		for note := range manager.Notifier().Subscribe(256) {
			log.Debug().
				Str("server", note.ServerID).
				Str("kind", note.Kind).
				Str("reason", note.Reason).
				Int64("player_id", note.PlayerID).
				Msg("Player event")
		}
	}()

	// Graceful shutdown: let in-flight polls finish
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down trackers...")
	cancel()
	manager.Wait()

	log.Info().Msg("Tracker exited")
}
