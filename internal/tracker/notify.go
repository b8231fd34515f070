package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notification kinds.
const (
	EventJoin  = "join"
	EventLeave = "leave"
)

// Notification is the record handed to downstream consumers (dashboards,
// webhooks) for every resolved join or leave. The tracker only produces
// notifications; delivery is the consumer's concern.
type Notification struct {
	Time     time.Time `json:"time"`
	ID       uuid.UUID `json:"id"`
	ServerID string    `json:"server_id"`
	Kind     string    `json:"kind"`
	Reason   string    `json:"reason,omitempty"`
	PlayerID int64     `json:"player_id"`
}

// Notifier fans resolved events out to subscribers. Publishing never blocks:
// a subscriber that falls behind loses notifications rather than stalling the
// poll loop.
type Notifier struct {
	mu     sync.Mutex
	subs   []chan Notification
	closed bool
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers a new consumer and returns its channel. The buffer
// bounds how far the consumer may lag before notifications are dropped.
func (n *Notifier) Subscribe(buffer int) <-chan Notification {
	ch := make(chan Notification, buffer)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		close(ch)
		return ch
	}
	n.subs = append(n.subs, ch)

	return ch
}

// Publish delivers a notification to all subscribers without blocking.
func (n *Notifier) Publish(serverID string, playerID int64, kind, reason string, t time.Time) {
	note := Notification{
		ID:       uuid.New(),
		ServerID: serverID,
		PlayerID: playerID,
		Kind:     kind,
		Reason:   reason,
		Time:     t,
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	for _, ch := range n.subs {
		select {
		case ch <- note:
		default:
			log.Warn().
				Str("server", serverID).
				Str("kind", kind).
				Msg("Notification subscriber lagging, event dropped")
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true

	for _, ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
