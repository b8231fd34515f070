// Package models defines the data structures persisted by the tracker and
// exchanged between its components.
package models

import "time"

// Session close reasons. The underlying log cannot distinguish a clean
// disconnect from a crash, so reconciliation-detected closures are tagged.
const (
	CloseDisconnect = "disconnect"
	CloseCrash      = "crash"
)

// Player represents a unique identity per (server, GUID) stored in the database.
type Player struct {
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	ServerID      string    `json:"server_id"`
	PublicID      string    `json:"public_id"`
	GUID          string    `json:"guid"`
	SteamID       string    `json:"steam_id,omitempty"`
	BohemiaID     string    `json:"bohemia_id,omitempty"`
	CurrentName   string    `json:"current_name"`
	CurrentIP     string    `json:"current_ip,omitempty"`
	ID            int64     `json:"id"`
	TotalPlaytime int64     `json:"total_playtime"`
	SessionCount  int64     `json:"session_count"`
	CurrentPort   int       `json:"current_port,omitempty"`
	IsOnline      bool      `json:"is_online"`
}

// Session is a single visit of a Player: open while LeaveTime is nil.
type Session struct {
	JoinTime    time.Time  `json:"join_time"`
	LeaveTime   *time.Time `json:"leave_time,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
	NameAtJoin  string     `json:"name_at_join"`
	IPAtJoin    string     `json:"ip_at_join,omitempty"`
	ID          int64      `json:"id"`
	PlayerID    int64      `json:"player_id"`
	Duration    int64      `json:"duration"`
	PortAtJoin  int        `json:"port_at_join,omitempty"`
}

// NameRecord tracks every display name a Player was ever seen with.
type NameRecord struct {
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Name       string    `json:"name"`
	ID         int64     `json:"id"`
	PlayerID   int64     `json:"player_id"`
	UsageCount int64     `json:"usage_count"`
}

// AddressRecord tracks every (IP, port) a Player was ever seen from.
type AddressRecord struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	IP          string    `json:"ip"`
	CountryCode string    `json:"country_code,omitempty"`
	ID          int64     `json:"id"`
	PlayerID    int64     `json:"player_id"`
	UsageCount  int64     `json:"usage_count"`
	Port        int       `json:"port"`
}

// OnlinePlayer is a record returned by the remote "who is online" query.
type OnlinePlayer struct {
	Name string `json:"name"`
	GUID string `json:"guid"`
	IP   string `json:"ip,omitempty"`
	Port int    `json:"port,omitempty"`
}
