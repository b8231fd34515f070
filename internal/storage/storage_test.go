package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayztools/tracker/internal/models"
)

var baseTime = time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func testJoin(t time.Time) JoinRecord {
	return JoinRecord{
		Time:     t,
		ServerID: "test",
		GUID:     "d2c1e1708ac2a40dea825a1fe7556a6b",
		Name:     "BrandyMandy",
		IP:       "93.217.26.147",
		Port:     54444,
		SteamID:  "76561198081741282",
	}
}

func TestApplyJoinCreatesPlayerAndSession(t *testing.T) {
	repo := newTestRepo(t)

	playerID, opened, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)
	assert.True(t, opened)

	player, err := repo.FindPlayerByGUID("test", "d2c1e1708ac2a40dea825a1fe7556a6b")
	require.NoError(t, err)
	require.NotNil(t, player)

	assert.Equal(t, playerID, player.ID)
	assert.Equal(t, "BrandyMandy", player.CurrentName)
	assert.Equal(t, "76561198081741282", player.SteamID)
	assert.True(t, player.IsOnline)
	assert.Equal(t, int64(1), player.SessionCount)
	assert.Len(t, player.PublicID, 16)

	session, err := repo.OpenSession(playerID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Nil(t, session.LeaveTime)
	assert.Equal(t, "BrandyMandy", session.NameAtJoin)
	assert.WithinDuration(t, baseTime, session.JoinTime, time.Second)
}

func TestApplyJoinIdempotent(t *testing.T) {
	repo := newTestRepo(t)

	playerID, opened, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)
	require.True(t, opened)

	// Same player joining again while still online keeps the open session
	again := testJoin(baseTime.Add(time.Minute))
	againID, opened, err := repo.ApplyJoin(again)
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, playerID, againID)

	player, err := repo.FindPlayerByGUID("test", again.GUID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), player.SessionCount)

	sessions, err := repo.PlayerSessions(playerID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestApplyLeaveClosesSession(t *testing.T) {
	repo := newTestRepo(t)

	playerID, _, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)

	leaveAt := baseTime.Add(90 * time.Minute)
	result, err := repo.ApplyLeave("test", "BrandyMandy", leaveAt, models.CloseDisconnect)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, playerID, result.PlayerID)
	assert.Equal(t, int64(5400), result.Duration)

	player, err := repo.FindPlayerByGUID("test", "d2c1e1708ac2a40dea825a1fe7556a6b")
	require.NoError(t, err)
	assert.False(t, player.IsOnline)
	assert.Equal(t, int64(5400), player.TotalPlaytime)

	sessions, err := repo.PlayerSessions(playerID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].LeaveTime)
	assert.Equal(t, models.CloseDisconnect, sessions[0].CloseReason)

	open, err := repo.OpenSession(playerID)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestApplyLeaveOrphan(t *testing.T) {
	repo := newTestRepo(t)

	result, err := repo.ApplyLeave("test", "NeverSeen", baseTime, models.CloseDisconnect)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestApplyLeaveNegativeDurationClamped(t *testing.T) {
	repo := newTestRepo(t)

	playerID, _, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)

	// Clock skew: leave timestamp before the join
	result, err := repo.ApplyLeaveByPlayerID(playerID, baseTime.Add(-time.Minute), models.CloseDisconnect)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(0), result.Duration)
}

func TestPlaytimeAccumulatesAcrossSessions(t *testing.T) {
	repo := newTestRepo(t)

	playerID, _, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)
	_, err = repo.ApplyLeaveByPlayerID(playerID, baseTime.Add(10*time.Minute), models.CloseDisconnect)
	require.NoError(t, err)

	_, opened, err := repo.ApplyJoin(testJoin(baseTime.Add(time.Hour)))
	require.NoError(t, err)
	require.True(t, opened, "a new session opens after the previous one closed")
	_, err = repo.ApplyLeaveByPlayerID(playerID, baseTime.Add(time.Hour+5*time.Minute), models.CloseCrash)
	require.NoError(t, err)

	player, err := repo.FindPlayerByGUID("test", "d2c1e1708ac2a40dea825a1fe7556a6b")
	require.NoError(t, err)
	assert.Equal(t, int64(900), player.TotalPlaytime)
	assert.Equal(t, int64(2), player.SessionCount)

	sessions, err := repo.PlayerSessions(playerID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, models.CloseCrash, sessions[0].CloseReason, "newest first")
}

func TestNameAndAddressHistory(t *testing.T) {
	repo := newTestRepo(t)

	playerID, _, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)
	_, err = repo.ApplyLeaveByPlayerID(playerID, baseTime.Add(time.Minute), models.CloseDisconnect)
	require.NoError(t, err)

	// Rejoin under a new name from a new address
	rec := testJoin(baseTime.Add(time.Hour))
	rec.Name = "MandyBrandy"
	rec.IP = "10.20.30.40"
	rec.Port = 2302
	rec.Country = "DE"
	_, _, err = repo.ApplyJoin(rec)
	require.NoError(t, err)

	names, err := repo.PlayerNames(playerID)
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "MandyBrandy", names[0].Name)
	assert.Equal(t, int64(1), names[0].UsageCount)
	assert.Equal(t, "BrandyMandy", names[1].Name)

	addrs, err := repo.PlayerAddresses(playerID)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, "10.20.30.40", addrs[0].IP)
	assert.Equal(t, "DE", addrs[0].CountryCode)

	player, err := repo.FindPlayerByGUID("test", rec.GUID)
	require.NoError(t, err)
	assert.Equal(t, "MandyBrandy", player.CurrentName)
	assert.Equal(t, "10.20.30.40", player.CurrentIP)
}

func TestNameUsageCountAccumulates(t *testing.T) {
	repo := newTestRepo(t)

	playerID, _, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		_, err = repo.ApplyLeaveByPlayerID(playerID, baseTime.Add(time.Duration(i)*time.Hour), models.CloseDisconnect)
		require.NoError(t, err)
		_, _, err = repo.ApplyJoin(testJoin(baseTime.Add(time.Duration(i)*time.Hour + time.Minute)))
		require.NoError(t, err)
	}

	names, err := repo.PlayerNames(playerID)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, int64(3), names[0].UsageCount)
}

func TestFindPlayerByPublicID(t *testing.T) {
	repo := newTestRepo(t)

	playerID, _, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)

	byGUID, err := repo.FindPlayerByGUID("test", "d2c1e1708ac2a40dea825a1fe7556a6b")
	require.NoError(t, err)

	player, err := repo.FindPlayerByPublicID(byGUID.PublicID)
	require.NoError(t, err)
	require.NotNil(t, player)
	assert.Equal(t, playerID, player.ID)

	missing, err := repo.FindPlayerByPublicID("0000000000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdatePlayerIdentityFillsOnce(t *testing.T) {
	repo := newTestRepo(t)

	rec := testJoin(baseTime)
	rec.SteamID = ""
	_, _, err := repo.ApplyJoin(rec)
	require.NoError(t, err)

	matched, err := repo.UpdatePlayerIdentity("test", "BrandyMandy", "76561198000000001", "", baseTime.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, matched)

	// A later, different value never overwrites the recorded one
	matched, err = repo.UpdatePlayerIdentity("test", "BrandyMandy", "76561198999999999", "bohemia-id-value=", baseTime.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, matched)

	player, err := repo.FindPlayerByGUID("test", rec.GUID)
	require.NoError(t, err)
	assert.Equal(t, "76561198000000001", player.SteamID)
	assert.Equal(t, "bohemia-id-value=", player.BohemiaID)

	matched, err = repo.UpdatePlayerIdentity("test", "NobodyOnline", "123", "", baseTime)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEnsurePlayerWithoutSession(t *testing.T) {
	repo := newTestRepo(t)

	playerID, err := repo.EnsurePlayer(testJoin(baseTime))
	require.NoError(t, err)

	player, err := repo.FindPlayerByGUID("test", "d2c1e1708ac2a40dea825a1fe7556a6b")
	require.NoError(t, err)
	require.NotNil(t, player)
	assert.False(t, player.IsOnline)
	assert.Equal(t, int64(0), player.SessionCount)

	open, err := repo.OpenSession(playerID)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestOnlinePlayers(t *testing.T) {
	repo := newTestRepo(t)

	first := testJoin(baseTime)
	_, _, err := repo.ApplyJoin(first)
	require.NoError(t, err)

	second := testJoin(baseTime.Add(time.Minute))
	second.GUID = "0123456789abcdef0123456789abcdef"
	second.Name = "FreshSpawn"
	secondID, _, err := repo.ApplyJoin(second)
	require.NoError(t, err)

	online, err := repo.OnlinePlayers("test")
	require.NoError(t, err)
	assert.Len(t, online, 2)

	_, err = repo.ApplyLeaveByPlayerID(secondID, baseTime.Add(time.Hour), models.CloseDisconnect)
	require.NoError(t, err)

	online, err = repo.OnlinePlayers("test")
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "BrandyMandy", online[0].CurrentName)
}

func TestOffsetsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	offset, err := repo.Offset("test")
	require.NoError(t, err)
	assert.Equal(t, int64(0), offset, "unknown server starts at zero")

	require.NoError(t, repo.SaveOffset("test", "/var/log/console.log", 1024))

	offset, err = repo.Offset("test")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), offset)

	// Upsert replaces the stored position
	require.NoError(t, repo.SaveOffset("test", "/var/log/console.log", 2048))

	offset, err = repo.Offset("test")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), offset)
}

func TestPruneSessions(t *testing.T) {
	repo := newTestRepo(t)

	playerID, _, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)
	_, err = repo.ApplyLeaveByPlayerID(playerID, baseTime.Add(time.Hour), models.CloseDisconnect)
	require.NoError(t, err)

	// A recent session that is still open must survive any cutoff
	_, _, err = repo.ApplyJoin(testJoin(baseTime.Add(48 * time.Hour)))
	require.NoError(t, err)

	deleted, err := repo.PruneSessions(baseTime.Add(24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	sessions, err := repo.PlayerSessions(playerID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Nil(t, sessions[0].LeaveTime)

	player, err := repo.FindPlayerByGUID("test", "d2c1e1708ac2a40dea825a1fe7556a6b")
	require.NoError(t, err)
	assert.NotNil(t, player, "retention never deletes player rows")
}

func TestCloseStaleSessions(t *testing.T) {
	repo := newTestRepo(t)

	firstID, _, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)

	second := testJoin(baseTime)
	second.GUID = "0123456789abcdef0123456789abcdef"
	second.Name = "FreshSpawn"
	_, _, err = repo.ApplyJoin(second)
	require.NoError(t, err)

	closed, err := repo.CloseStaleSessions(baseTime.Add(30 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), closed)

	online, err := repo.OnlinePlayers("test")
	require.NoError(t, err)
	assert.Empty(t, online)

	sessions, err := repo.PlayerSessions(firstID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.CloseCrash, sessions[0].CloseReason)
	assert.Equal(t, int64(1800), sessions[0].Duration)
}

func TestTouchOnline(t *testing.T) {
	repo := newTestRepo(t)

	_, _, err := repo.ApplyJoin(testJoin(baseTime))
	require.NoError(t, err)

	later := baseTime.Add(30 * time.Minute)
	touched, err := repo.TouchOnline("test", later)
	require.NoError(t, err)
	assert.Equal(t, int64(1), touched)

	player, err := repo.FindPlayerByGUID("test", "d2c1e1708ac2a40dea825a1fe7556a6b")
	require.NoError(t, err)
	assert.WithinDuration(t, later, player.LastSeen, time.Second)
}

func TestNewPublicIDShape(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		id, err := newPublicID()
		require.NoError(t, err)
		require.Len(t, id, publicIDLength)

		for _, ch := range id {
			assert.Contains(t, publicIDAlphabet, string(ch))
		}

		seen[id] = struct{}{}
	}

	assert.Len(t, seen, 100)
}
