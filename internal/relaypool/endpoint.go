// Package relaypool manages outbound websocket connections to upstream
// relays: one connection task per endpoint, each a state machine over
// {Disconnected, Connecting, Connected, Backoff, Unhealthy, Removed},
// forwarding every event it reads into the pool's bounded output channel
// tagged with the source URL. Grounded on the teacher relay's
// pkg/protocol/ws/client.go (connection lifecycle, ping loop, write
// queue) and pkg/protocol/ws/pool.go (the connection-map-plus-backoff
// pattern, reconnect loop shape).
package relaypool

import (
	"sync"
	"time"

	"novarelay.dev/internal/context"
)

// Status is a RelayEndpoint's position in its connection state machine.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Backoff
	Unhealthy
	Removed
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	case Unhealthy:
		return "unhealthy"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Endpoint is a RelayEndpoint: a URL plus its dynamic connection state.
// The status table is read-mostly (per the concurrency model, readers
// use RLock, the owning connection task, the pool's health check and
// admin operations are the only writers).
type Endpoint struct {
	mu sync.RWMutex

	URL                string
	status             Status
	lastHeartbeat      time.Time
	consecutiveFailure int
	nextTryAt          time.Time

	cancel context.F
	done   chan struct{}
}

func newEndpoint(url string) *Endpoint {
	return &Endpoint{URL: url, status: Disconnected, done: make(chan struct{})}
}

// Status reports the endpoint's current connection status.
func (e *Endpoint) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Snapshot is an immutable view of an endpoint's state, safe to hand to
// the HTTP status surface.
type Snapshot struct {
	URL                string    `json:"url"`
	Status             string    `json:"status"`
	LastHeartbeat      time.Time `json:"last_heartbeat"`
	ConsecutiveFailure int       `json:"consecutive_failures"`
	NextTryAt          time.Time `json:"next_try_at,omitempty"`
}

// Snapshot returns a point-in-time copy of the endpoint's state.
func (e *Endpoint) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		URL:                e.URL,
		Status:             e.status.String(),
		LastHeartbeat:      e.lastHeartbeat,
		ConsecutiveFailure: e.consecutiveFailure,
		NextTryAt:          e.nextTryAt,
	}
}

func (e *Endpoint) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

func (e *Endpoint) heartbeat() {
	e.mu.Lock()
	e.lastHeartbeat = time.Now()
	e.mu.Unlock()
}

func (e *Endpoint) recordFailure(nextTryAt time.Time) {
	e.mu.Lock()
	e.consecutiveFailure++
	e.status = Backoff
	e.nextTryAt = nextTryAt
	e.mu.Unlock()
}

func (e *Endpoint) resetFailures() {
	e.mu.Lock()
	e.consecutiveFailure = 0
	e.mu.Unlock()
}
