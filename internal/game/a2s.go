// Package game provides functionality to query game servers using the Source
// Engine Query (A2S) protocol.
package game

import (
	"fmt"
	"net"
	"strconv"

	"github.com/dayztools/tracker/internal/config"
	"github.com/woozymasta/a2s/pkg/a2s"
)

// Ping checks whether a game server answers A2S_INFO on the given host:port.
// Used as a cheap liveness probe before the reconciliation sync: a server
// that does not answer is treated as down and the sync is skipped.
func Ping(address string, options config.A2S) error {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid query address %s: %w", address, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid query port in %s: %w", address, err)
	}

	_, err = QueryServer(host, port, options)
	return err
}

// QueryServer connects to a game server via UDP and requests A2S_INFO.
// It returns server details (such as name, map, players) or an error if the
// server is unreachable.
func QueryServer(ip string, port int, options config.A2S) (*a2s.Info, error) {
	client, err := a2s.New(ip, port)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	client.BufferSize = options.BufferSize
	client.Timeout = options.Timeout

	return client.GetInfo()
}
