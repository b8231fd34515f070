// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dayztools/tracker/internal/logger"
	"github.com/dayztools/tracker/internal/vars"
	"github.com/jessevdk/go-flags"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Tracking Tracking      `group:"Tracking Options" namespace:"track" env-namespace:"TRACKER_TRACK"`
	Storage  Storage       `group:"Storage Options" namespace:"db" env-namespace:"TRACKER_DB"`
	GeoIP    GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"TRACKER_GEOIP"`
	RCON     RCON          `group:"BattlEye RCON Options" namespace:"rcon" env-namespace:"TRACKER_RCON"`
	A2S      A2S           `group:"A2S Options" namespace:"a2s" env-namespace:"TRACKER_A2S"`
	Logger   logger.Config `group:"Logger Options" namespace:"log" env-namespace:"TRACKER_LOG"`

	Servers []string `short:"s" long:"server" env:"TRACKER_SERVERS" env-delim:";" description:"Tracked server spec: name|logpath|rcon_host:port|rcon_password[|query_host:port]"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Tracking holds scheduling and identity-resolution configuration.
type Tracking struct {
	// betteralign:ignore

	PollInterval      time.Duration `long:"poll-interval" env:"POLL_INTERVAL" description:"Log tail polling interval" default:"10s"`
	HeartbeatInterval time.Duration `long:"heartbeat-interval" env:"HEARTBEAT_INTERVAL" description:"Online player last-seen refresh interval" default:"30m"`
	PendingWindow     time.Duration `long:"pending-window" env:"PENDING_WINDOW" description:"How long a connect without a GUID is buffered" default:"30s"`
	RetentionDays     int           `long:"retention-days" env:"RETENTION_DAYS" description:"Purge sessions older than N days during tracking, 0 disables" default:"0"`
}

// Storage holds database configuration and one-shot maintenance flags.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"tracker.db"`
	PruneSessions string `long:"prune-sessions" description:"Delete sessions older than N days and exit. Optional arg: days." optional:"true" optional-value:"90"`
	CloseStale    bool   `long:"close-stale" description:"Close all open sessions as crash-detected and exit"`
	GenerateCount int    `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"tracker.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
	Disable  bool          `long:"disable" env:"DISABLE" description:"Disable country resolution for player addresses"`
}

// RCON holds BattlEye RCON client configuration.
type RCON struct {
	// betteralign:ignore

	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout" default:"5s"`
	BufferSize int           `long:"buffer-size" env:"BUFFER_SIZE" description:"Response datagram buffer size" default:"4096"`
}

// A2S holds Source Query protocol configuration.
type A2S struct {
	// betteralign:ignore

	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout" default:"3s"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Response body buffer size" default:"1400"`
}

// ServerConfig describes a single tracked game server.
type ServerConfig struct {
	// Name is the stable identifier used as server_id in the database.
	Name string

	// LogPath is the server console log to tail (contains BattlEye output).
	LogPath string

	// RCONAddress is the BattlEye RCON endpoint (host:port).
	RCONAddress string

	// RCONPassword authenticates the RCON session.
	RCONPassword string

	// QueryAddress is the optional A2S endpoint used as a liveness probe
	// before the reconciliation sync. Empty disables the probe.
	QueryAddress string
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	return &cfg
}

// ParseServers converts the raw --server specs into ServerConfig values.
func (c *Config) ParseServers() ([]ServerConfig, error) {
	servers := make([]ServerConfig, 0, len(c.Servers))
	seen := make(map[string]struct{}, len(c.Servers))

	for _, spec := range c.Servers {
		srv, err := ParseServerSpec(spec)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[srv.Name]; dup {
			return nil, fmt.Errorf("duplicate server name %q", srv.Name)
		}
		seen[srv.Name] = struct{}{}

		servers = append(servers, srv)
	}

	return servers, nil
}

// ParseServerSpec parses a single pipe-separated server definition of the form
// "name|logpath|rcon_host:port|rcon_password[|query_host:port]".
func ParseServerSpec(spec string) (ServerConfig, error) {
	parts := strings.Split(spec, "|")
	if len(parts) < 4 || len(parts) > 5 {
		return ServerConfig{}, fmt.Errorf("invalid server spec %q: want name|logpath|rcon_addr|rcon_password[|query_addr]", spec)
	}

	srv := ServerConfig{
		Name:         strings.TrimSpace(parts[0]),
		LogPath:      strings.TrimSpace(parts[1]),
		RCONAddress:  strings.TrimSpace(parts[2]),
		RCONPassword: parts[3],
	}
	if len(parts) == 5 {
		srv.QueryAddress = strings.TrimSpace(parts[4])
	}

	if srv.Name == "" {
		return ServerConfig{}, fmt.Errorf("invalid server spec %q: empty name", spec)
	}
	if srv.LogPath == "" {
		return ServerConfig{}, fmt.Errorf("invalid server spec %q: empty log path", spec)
	}
	if err := validateHostPort(srv.RCONAddress); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid server spec %q: %w", spec, err)
	}
	if srv.QueryAddress != "" {
		if err := validateHostPort(srv.QueryAddress); err != nil {
			return ServerConfig{}, fmt.Errorf("invalid server spec %q: %w", spec, err)
		}
	}

	return srv, nil
}

// validateHostPort checks a host:port endpoint with a sane port range.
func validateHostPort(addr string) error {
	host, portStr, found := strings.Cut(addr, ":")
	if !found || host == "" {
		return fmt.Errorf("address %q is not host:port", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("address %q has invalid port", addr)
	}

	return nil
}
