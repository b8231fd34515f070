// Package rcon implements a minimal BattlEye RCON client over UDP, enough to
// authenticate and run the "players" command against a DayZ server.
//
// Packet framing: 'B' 'E' | CRC32 (IEEE, little-endian) | 0xFF | type | body.
// The checksum covers everything from the 0xFF marker onward.
package rcon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dayztools/tracker/internal/config"
	"github.com/dayztools/tracker/internal/models"
)

// BattlEye packet types.
const (
	packetLogin   = 0x00
	packetCommand = 0x01
	packetMessage = 0x02
)

// ErrLoginFailed is returned when the server rejects the RCON password.
var ErrLoginFailed = errors.New("rcon login rejected")

// Client is a single authenticated BattlEye RCON session.
// It is not safe for concurrent use.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	bufSize int
	seq     byte
}

// Dial connects to the RCON endpoint and authenticates.
func Dial(address, password string, opts config.RCON) (*Client, error) {
	conn, err := net.DialTimeout("udp", address, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("dial rcon %s: %w", address, err)
	}

	c := &Client{
		conn:    conn,
		timeout: opts.Timeout,
		bufSize: opts.BufferSize,
	}

	if err := c.login(password); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return c, nil
}

// Close terminates the session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// login sends the password and waits for the server verdict.
func (c *Client) login(password string) error {
	if err := c.send(packetLogin, []byte(password)); err != nil {
		return err
	}

	typ, payload, err := c.receive()
	if err != nil {
		return fmt.Errorf("rcon login: %w", err)
	}

	if typ != packetLogin || len(payload) < 1 {
		return fmt.Errorf("rcon login: unexpected response type 0x%02x", typ)
	}
	if payload[0] != 0x01 {
		return ErrLoginFailed
	}

	return nil
}

// Command executes a console command and returns its textual response,
// reassembling multi-part replies.
func (c *Client) Command(cmd string) (string, error) {
	c.seq++
	seq := c.seq

	body := append([]byte{seq}, cmd...)
	if err := c.send(packetCommand, body); err != nil {
		return "", err
	}

	var (
		parts    []string
		expected = 1
	)

	for len(parts) < expected {
		typ, payload, err := c.receive()
		if err != nil {
			return "", fmt.Errorf("rcon command %q: %w", cmd, err)
		}

		// Server chat/status messages may interleave; acknowledge and skip.
		if typ == packetMessage {
			if len(payload) >= 1 {
				_ = c.send(packetMessage, payload[:1])
			}
			continue
		}

		if typ != packetCommand || len(payload) < 1 || payload[0] != seq {
			continue
		}

		data := payload[1:]
		if len(data) >= 3 && data[0] == 0x00 {
			// Multi-part header: 0x00, total count, part index.
			expected = int(data[1])
			parts = append(parts, string(data[3:]))
			continue
		}

		parts = append(parts, string(data))
	}

	return strings.Join(parts, ""), nil
}

// Players runs the "players" command and parses the resulting table.
func (c *Client) Players() ([]models.OnlinePlayer, error) {
	out, err := c.Command("players")
	if err != nil {
		return nil, err
	}

	return ParsePlayers(out), nil
}

// ParsePlayers extracts player records from the "players" command output:
//
//	Players on server:
//	[#] [IP Address]:[Port] [Ping] [GUID] [Name]
//	--------------------------------------------------
//	0   93.217.26.147:54444   32   d2c1e1708ac2a40dea825a1fe7556a6b(OK) BrandyMandy
//	(1 players in total)
//
// Header, separator and summary lines are skipped. The GUID verification
// suffix "(OK)" or "(?)" is stripped.
func ParsePlayers(out string) []models.OnlinePlayer {
	var players []models.OnlinePlayer

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue // header, separator or summary line
		}

		guid := fields[3]
		guid = strings.TrimSuffix(guid, "(OK)")
		guid = strings.TrimSuffix(guid, "(?)")

		p := models.OnlinePlayer{
			GUID: guid,
			Name: strings.Join(fields[4:], " "),
		}

		if host, portStr, ok := strings.Cut(fields[1], ":"); ok {
			p.IP = host
			if port, err := strconv.Atoi(portStr); err == nil {
				p.Port = port
			}
		}

		players = append(players, p)
	}

	return players
}

// FetchPlayers opens a session, retrieves the online player list and closes
// the connection. Safe to call repeatedly; every call is a fresh session.
func FetchPlayers(address, password string, opts config.RCON) ([]models.OnlinePlayer, error) {
	client, err := Dial(address, password, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	return client.Players()
}

// send frames and transmits one packet.
func (c *Client) send(typ byte, body []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}

	_, err := c.conn.Write(BuildPacket(typ, body))
	return err
}

// receive reads and validates one packet, returning its type and payload.
func (c *Client) receive() (byte, []byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, nil, err
	}

	buf := make([]byte, c.bufSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return 0, nil, err
	}

	return ParsePacket(buf[:n])
}

// BuildPacket frames a BattlEye packet of the given type around body.
func BuildPacket(typ byte, body []byte) []byte {
	inner := make([]byte, 0, len(body)+2)
	inner = append(inner, 0xFF, typ)
	inner = append(inner, body...)

	packet := make([]byte, 0, len(inner)+6)
	packet = append(packet, 'B', 'E')
	packet = binary.LittleEndian.AppendUint32(packet, crc32.ChecksumIEEE(inner))
	packet = append(packet, inner...)

	return packet
}

// ParsePacket validates framing and checksum, returning type and payload.
func ParsePacket(data []byte) (byte, []byte, error) {
	if len(data) < 8 || data[0] != 'B' || data[1] != 'E' {
		return 0, nil, errors.New("malformed battleye packet")
	}

	inner := data[6:]
	if inner[0] != 0xFF {
		return 0, nil, errors.New("malformed battleye packet: missing marker")
	}

	sum := binary.LittleEndian.Uint32(data[2:6])
	if crc32.ChecksumIEEE(inner) != sum {
		return 0, nil, errors.New("battleye packet checksum mismatch")
	}

	return inner[1], inner[2:], nil
}
