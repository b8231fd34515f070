// Package parser extracts player connection events from DayZ server console
// log lines. Extraction is pure and stateless: a line either matches one of
// the five known shapes or is discarded.
package parser

import (
	"regexp"
	"strconv"
	"time"
)

// Kind identifies one of the recognized log line shapes.
type Kind int

// The closed set of event kinds. Every shape carries the player's current
// display name, the only key available to correlate them.
const (
	KindConnect Kind = iota + 1
	KindGUID
	KindSteamID
	KindBohemiaID
	KindDisconnect
)

// String returns a short label for logging.
func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindGUID:
		return "guid"
	case KindSteamID:
		return "steam_id"
	case KindBohemiaID:
		return "bohemia_id"
	case KindDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is a single typed player event extracted from one log line.
// Only the fields relevant to its Kind are populated.
type Event struct {
	Time      time.Time
	Name      string
	IP        string
	GUID      string
	SteamID   string
	BohemiaID string
	Kind      Kind
	Port      int
}

var (
	// BattlEye Server: Player #1 BrandyMandy (93.217.26.147:54444) connected
	reConnect = regexp.MustCompile(`Player #\d+ (.+?) \((\d{1,3}(?:\.\d{1,3}){3}):(\d+)\) connected`)

	// BattlEye Server: Player #1 BrandyMandy - BE GUID: d2c1e1708ac2a40dea825a1fe7556a6b
	reGUID = regexp.MustCompile(`Player #\d+ (.+?) - BE GUID: ([a-f0-9]{32})`)

	// Player "BrandyMandy"(steamID=76561198081741282) is connected
	reSteamID = regexp.MustCompile(`Player "(.+?)"\(steamID=(\d+)\) is connected`)

	// Player BrandyMandy (id=96GpuDNvQHuVu5HGi-i2u5uPBUbW6wVeyBkZc6Gi298=) has connected.
	reBohemiaID = regexp.MustCompile(`Player (.+?) \(id=([A-Za-z0-9+/=_-]+)\) has connected\.`)

	// Player BrandyMandy disconnected.
	reDisconnect = regexp.MustCompile(`Player (.+?) disconnected\.`)

	// Wall-clock prefix some lines carry: 12:13:01
	reTimestamp = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})`)
)

// Parse matches a single log line against the five known shapes.
// The second return value is false for lines that match none of them.
// now supplies the date for lines whose prefix carries only a time of day and
// the timestamp for lines without a prefix.
func Parse(line string, now time.Time) (Event, bool) {
	ts := parseTimestamp(line, now)

	if m := reConnect.FindStringSubmatch(line); m != nil {
		port, _ := strconv.Atoi(m[3])
		return Event{Kind: KindConnect, Time: ts, Name: m[1], IP: m[2], Port: port}, true
	}

	if m := reGUID.FindStringSubmatch(line); m != nil {
		return Event{Kind: KindGUID, Time: ts, Name: m[1], GUID: m[2]}, true
	}

	if m := reSteamID.FindStringSubmatch(line); m != nil {
		return Event{Kind: KindSteamID, Time: ts, Name: m[1], SteamID: m[2]}, true
	}

	if m := reBohemiaID.FindStringSubmatch(line); m != nil {
		return Event{Kind: KindBohemiaID, Time: ts, Name: m[1], BohemiaID: m[2]}, true
	}

	if m := reDisconnect.FindStringSubmatch(line); m != nil {
		return Event{Kind: KindDisconnect, Time: ts, Name: m[1]}, true
	}

	return Event{}, false
}

// parseTimestamp resolves the optional HH:MM:SS line prefix against the date
// of now. Lines without the prefix get now itself.
func parseTimestamp(line string, now time.Time) time.Time {
	m := reTimestamp.FindStringSubmatch(line)
	if m == nil {
		return now
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])

	if hour > 23 || minute > 59 || second > 59 {
		return now
	}

	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, second, 0, now.Location())
}
