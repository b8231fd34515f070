// Package fake provides utilities for generating random player data for
// testing and development purposes.
package fake

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"time"

	"github.com/dayztools/tracker/internal/models"
	"github.com/dayztools/tracker/internal/storage"
	"github.com/rs/zerolog/log"
)

// GenerateData populates the storage with a specified number of randomized
// players, each with a plausible session, name and address history.
func GenerateData(store *storage.Repository, serverID string, count int) {
	names := []string{
		"BrandyMandy", "Survivor", "NightWolf", "Kuzmich", "Bandit",
		"FreshSpawn", "Chernarussian", "LoneWanderer", "TopoZelen", "Medved",
	}

	created := 0

	for i := 0; i < count; i++ {
		guid := randomGUID()
		name := fmt.Sprintf("%s_%03d", names[rand.Intn(len(names))], rand.Intn(1000))
		ip := fmt.Sprintf("%d.%d.%d.%d", 10+rand.Intn(200), rand.Intn(256), rand.Intn(256), 1+rand.Intn(254))
		port := 1024 + rand.Intn(64000)
		steamID := fmt.Sprintf("7656119%010d", rand.Int63n(10000000000))

		// Sessions spread over the last 30 days, oldest first
		sessions := 1 + rand.Intn(5)
		joinAt := time.Now().Add(-time.Duration(rand.Intn(30*24)) * time.Hour)

		for s := 0; s < sessions; s++ {
			rec := storage.JoinRecord{
				ServerID: serverID,
				GUID:     guid,
				Name:     name,
				IP:       ip,
				Port:     port,
				SteamID:  steamID,
				Time:     joinAt,
			}

			playerID, _, err := store.ApplyJoin(rec)
			if err != nil {
				log.Error().Err(err).Str("guid", guid).Msg("Failed to generate fake join")
				break
			}

			leaveAt := joinAt.Add(time.Duration(5+rand.Intn(180)) * time.Minute)
			if _, err := store.ApplyLeaveByPlayerID(playerID, leaveAt, models.CloseDisconnect); err != nil {
				log.Error().Err(err).Str("guid", guid).Msg("Failed to generate fake leave")
				break
			}

			joinAt = leaveAt.Add(time.Duration(1+rand.Intn(48)) * time.Hour)
		}

		created++
	}

	log.Info().Int("players", created).Str("server", serverID).Msg("Fake data generated")
}

// randomGUID returns a random 32-character lowercase hex string shaped like a
// BattlEye GUID.
func randomGUID() string {
	buf := make([]byte, 16)
	rand.Read(buf) //nolint:errcheck,gosec

	return hex.EncodeToString(buf)
}
