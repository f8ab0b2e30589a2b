package relaypool

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"novarelay.dev/internal/context"
	"novarelay.dev/internal/log"
	"novarelay.dev/internal/relayerr"
)

// Config holds the relay section of the config file.
type Config struct {
	HealthCheckInterval time.Duration
	MaxConnections      int
	BootstrapRelays     []string
}

// Pool is the Relay Pool: it owns one connection task per endpoint and
// exposes a single bounded Output channel the Event Router reads from.
// The endpoint table is read-mostly (xsync.MapOf, lock-free reads) with
// admin add/remove as the only writers, matching the concurrency model's
// "single writer at a time" policy.
type Pool struct {
	ctx        context.T
	cancel     context.F
	endpoints  *xsync.MapOf[string, *Endpoint]
	Output     chan Message
	maxConns   int
	healthTick time.Duration
	drainWait  time.Duration

	invalidSignatures atomic.Int64
}

// New creates a Pool bound to ctx; cancelling ctx tears down every
// connection task.
func New(ctx context.T, cfg Config) *Pool {
	ctx, cancel := context.Cancel(ctx)
	interval := cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 64
	}
	p := &Pool{
		ctx:        ctx,
		cancel:     cancel,
		endpoints:  xsync.NewMapOf[string, *Endpoint](),
		Output:     make(chan Message, 1024),
		maxConns:   maxConns,
		healthTick: interval,
		drainWait:  5 * time.Second,
	}
	for _, url := range cfg.BootstrapRelays {
		if err := p.Add(url); err != nil {
			log.W.F("relay pool: bootstrap relay %s: %v", url, err)
		}
	}
	go p.healthCheckLoop()
	return p
}

// Add connects to url if it isn't already present; adding an
// already-present relay is a no-op success, per the spec's idempotency
// requirement for control operations.
func (p *Pool) Add(url string) error {
	if _, loaded := p.endpoints.Load(url); loaded {
		return nil
	}
	if p.endpoints.Size() >= p.maxConns {
		return fmt.Errorf("relay pool at capacity (%d connections): %w", p.maxConns, relayerr.CapacityExhausted)
	}
	ep := newEndpoint(url)
	epCtx, cancel := context.Cancel(p.ctx)
	ep.cancel = cancel
	if _, loaded := p.endpoints.LoadOrStore(url, ep); loaded {
		cancel()
		return nil
	}
	go p.drive(epCtx, ep)
	return nil
}

// Remove cancels the owning connection task and awaits its drain with a
// timeout; on timeout the task is abandoned. Removing an absent relay is
// a no-op success.
func (p *Pool) Remove(url string) error {
	ep, ok := p.endpoints.LoadAndDelete(url)
	if !ok {
		return nil
	}
	ep.setStatus(Removed)
	ep.cancel()
	select {
	case <-ep.done:
	case <-time.After(p.drainWait):
		log.W.F("relay pool: %s did not drain within %s, abandoning", url, p.drainWait)
	}
	return nil
}

// InvalidSignatures returns the running count of events dropped because
// their signature failed to verify, summed across every connection.
func (p *Pool) InvalidSignatures() int64 {
	return p.invalidSignatures.Load()
}

// List returns a snapshot of every endpoint's state.
func (p *Pool) List() []Snapshot {
	out := make([]Snapshot, 0, p.endpoints.Size())
	p.endpoints.Range(func(_ string, ep *Endpoint) bool {
		out = append(out, ep.Snapshot())
		return true
	})
	return out
}

// drive is the reconnect-with-backoff loop for one endpoint: connect,
// run until error or cancellation, then back off and retry.
func (p *Pool) drive(ctx context.T, ep *Endpoint) {
	defer close(ep.done)
	for {
		select {
		case <-ctx.Done():
			ep.setStatus(Disconnected)
			return
		default:
		}

		err := runConnection(ctx, ep, p.Output, &p.invalidSignatures)
		if ctx.Err() != nil {
			ep.setStatus(Disconnected)
			return
		}
		if err != nil {
			log.D.F("relay pool: %s disconnected: %v", ep.URL, err)
		}

		delay := nextBackoff(ep.Snapshot().ConsecutiveFailure)
		ep.recordFailure(time.Now().Add(delay))
		select {
		case <-ctx.Done():
			ep.setStatus(Disconnected)
			return
		case <-time.After(delay):
		}
	}
}

// Close tears down every connection task.
func (p *Pool) Close() {
	p.cancel()
}

func (p *Pool) healthCheckLoop() {
	ticker := time.NewTicker(p.healthTick)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			p.endpoints.Range(func(_ string, ep *Endpoint) bool {
				if ep.Status() == Connected && now.Sub(ep.Snapshot().LastHeartbeat) > 2*p.healthTick {
					ep.setStatus(Unhealthy)
					log.W.F("relay pool: %s missed heartbeats, marking unhealthy", ep.URL)
				}
				return true
			})
		}
	}
}
