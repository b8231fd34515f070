package rcon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	packet := BuildPacket(packetLogin, []byte("password"))

	assert.Equal(t, byte('B'), packet[0])
	assert.Equal(t, byte('E'), packet[1])

	typ, payload, err := ParsePacket(packet)
	require.NoError(t, err)
	assert.Equal(t, byte(packetLogin), typ)
	assert.Equal(t, []byte("password"), payload)
}

func TestPacketRoundTripEmptyBody(t *testing.T) {
	packet := BuildPacket(packetCommand, nil)

	typ, payload, err := ParsePacket(packet)
	require.NoError(t, err)
	assert.Equal(t, byte(packetCommand), typ)
	assert.Empty(t, payload)
}

func TestParsePacketRejectsCorruption(t *testing.T) {
	packet := BuildPacket(packetCommand, []byte{0x01, 'p', 'l', 'a', 'y', 'e', 'r', 's'})
	packet[len(packet)-1] ^= 0xFF

	_, _, err := ParsePacket(packet)
	assert.ErrorContains(t, err, "checksum")
}

func TestParsePacketRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte{'B', 'E', 0, 0}},
		{"wrong magic", []byte{'X', 'Y', 0, 0, 0, 0, 0xFF, 0x00}},
		{"missing marker", []byte{'B', 'E', 0, 0, 0, 0, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParsePacket(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestParsePlayers(t *testing.T) {
	out := "Players on server:\n" +
		"[#] [IP Address]:[Port] [Ping] [GUID] [Name]\n" +
		"--------------------------------------------------\n" +
		"0   93.217.26.147:54444   32   d2c1e1708ac2a40dea825a1fe7556a6b(OK) BrandyMandy\n" +
		"1   10.11.12.13:2304      78   0123456789abcdef0123456789abcdef(?) The Lone Wanderer\n" +
		"(2 players in total)\n"

	players := ParsePlayers(out)
	require.Len(t, players, 2)

	assert.Equal(t, "d2c1e1708ac2a40dea825a1fe7556a6b", players[0].GUID)
	assert.Equal(t, "BrandyMandy", players[0].Name)
	assert.Equal(t, "93.217.26.147", players[0].IP)
	assert.Equal(t, 54444, players[0].Port)

	assert.Equal(t, "0123456789abcdef0123456789abcdef", players[1].GUID, "unverified suffix stripped")
	assert.Equal(t, "The Lone Wanderer", players[1].Name, "name spaces preserved")
}

func TestParsePlayersEmptyTable(t *testing.T) {
	out := "Players on server:\n" +
		"[#] [IP Address]:[Port] [Ping] [GUID] [Name]\n" +
		"--------------------------------------------------\n" +
		"(0 players in total)\n"

	assert.Empty(t, ParsePlayers(out))
}

func TestParsePlayersPendingGUID(t *testing.T) {
	// A player still negotiating shows "-" in the GUID column; the caller
	// decides whether to skip it, the parser reports what the server said.
	out := "0   1.2.3.4:2304   15   - FreshSpawn\n"

	players := ParsePlayers(out)
	require.Len(t, players, 1)
	assert.Equal(t, "-", players[0].GUID)
}
