// Package maintenance provides one-shot database housekeeping commands.
package maintenance

import (
	"strconv"
	"time"

	"github.com/dayztools/tracker/internal/config"
	"github.com/dayztools/tracker/internal/storage"
	"github.com/rs/zerolog/log"
)

// Run checks if any maintenance flags are set and executes the corresponding
// tasks. Returns true if a task was executed (indicating the program should
// exit instead of starting the trackers).
func Run(cfg *config.Config, store *storage.Repository) bool {
	if cfg.Storage.PruneSessions != "" {
		days, err := strconv.Atoi(cfg.Storage.PruneSessions)
		if err != nil || days < 1 {
			log.Error().Str("value", cfg.Storage.PruneSessions).Msg("Invalid prune-sessions days")
			return true
		}

		cutoff := time.Now().AddDate(0, 0, -days)
		log.Info().Int("days", days).Msg("Pruning old sessions...")

		count, err := store.PruneSessions(cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune sessions")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true
	}

	if cfg.Storage.CloseStale {
		log.Info().Msg("Closing stale open sessions...")

		count, err := store.CloseStaleSessions(time.Now())
		if err != nil {
			log.Error().Err(err).Msg("Failed to close stale sessions")
		} else {
			log.Info().Int64("closed", count).Msg("Stale sessions closed")
		}

		return true
	}

	return false
}
