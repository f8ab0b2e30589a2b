// Package router is the Event Router: per received event it applies the
// routing policy, probes the Dedup Store, and appends survivors to a
// sequenced batch which is sealed by size or latency and handed to the
// Fanout Bus. Grounded on the teacher relay's subMany worker-per-source
// fan-in shape (pkg/protocol/ws/pool.go), generalized here to a fixed
// worker pool sharded by the low byte of event_id - matching the Dedup
// Store's own lock sharding (internal/dedup/store.go) so a worker is never
// blocked behind another shard's commit - with each worker owning one open
// Batch and its own flush timer.
package router

import (
	"time"

	"go.uber.org/atomic"

	"novarelay.dev/internal/context"
	"novarelay.dev/internal/dedup"
	"novarelay.dev/internal/log"
	"novarelay.dev/internal/metrics"
	"novarelay.dev/internal/relaypool"
	"novarelay.dev/pkg/event"
	"novarelay.dev/pkg/filter"
)

// Config holds the output/filters sections of the config file.
type Config struct {
	Workers      int
	BatchSize    int
	MaxLatency   time.Duration
	AllowedKinds []uint16
}

// Counters are the Router's metric counts, exposed to the monitoring
// surface.
type Counters struct {
	PolicyRejected uint64
	Duplicates     uint64
	StoreErrors    uint64
	Admitted       uint64
}

// shard is one worker's exclusive slice of the Router: its own inbound
// channel and its own batchAssembler. Routing an event to the shard whose
// index matches the event id's low byte - the same partitioning the Dedup
// Store uses for its per-shard locks - means the worker that calls
// CheckAndCommit for a given id is always the same worker, so two
// deliveries of the same event_id can never race each other into the
// store from two different goroutines.
type shard struct {
	in        chan relaypool.Message
	assembler *batchAssembler
}

// Router is the Event Router.
type Router struct {
	policy *filter.Policy
	store  *dedup.Store
	shards []*shard

	counters struct {
		policyRejected atomicCounter
		duplicates     atomicCounter
		storeErrors    atomicCounter
		admitted       atomicCounter
	}
}

// New builds a Router. publish is called once per sealed batch, from
// whichever shard's worker goroutine happens to seal it; the Fanout Bus
// must not block inside publish (see Bus.Publish).
func New(store *dedup.Store, cfg Config, publish func(Batch)) *Router {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	r := &Router{
		policy: filter.NewPolicy(cfg.AllowedKinds...),
		store:  store,
		shards: make([]*shard, workers),
	}
	seq := atomic.NewUint64(0)
	for i := range r.shards {
		r.shards[i] = &shard{
			in:        make(chan relaypool.Message, 256),
			assembler: newBatchAssembler(cfg.BatchSize, cfg.MaxLatency, seq, publish),
		}
	}
	return r
}

// Run starts the dispatcher and one worker per shard, and blocks until ctx
// is cancelled.
func (r *Router) Run(ctx context.T, in <-chan relaypool.Message) {
	for _, sh := range r.shards {
		go r.worker(ctx, sh)
	}
	r.dispatch(ctx, in)
}

// dispatch reads the Relay Pool's single output channel and routes each
// message to the shard owning its event id's low byte, blocking on that
// shard's channel if it is behind - never on any other shard.
func (r *Router) dispatch(ctx context.T, in <-chan relaypool.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			idx := 0
			if len(msg.Event.Id) > 0 {
				idx = int(msg.Event.Id[0]) % len(r.shards)
			}
			select {
			case r.shards[idx].in <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// worker is the sole goroutine that ever touches sh.assembler: it handles
// every event routed to this shard and seals sh's batch on its own timer,
// so the assembler needs no internal locking.
func (r *Router) worker(ctx context.T, sh *shard) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sh.assembler.FlushIfStale()
		case msg, ok := <-sh.in:
			if !ok {
				return
			}
			r.handle(sh, msg.Event)
		}
	}
}

func (r *Router) handle(sh *shard, ev *event.E) {
	if !r.policy.Allow(ev) {
		r.counters.policyRejected.add(1)
		metrics.PolicyRejected.Inc()
		return
	}

	var id [32]byte
	copy(id[:], ev.Id)
	duplicate, err := r.store.CheckAndCommit(id, ev.CreatedAt)
	if err != nil {
		r.counters.storeErrors.add(1)
		metrics.DedupStoreErrors.Inc()
		log.W.F("router: dedup store error, dropping event %s: %v", ev.IdHex(), err)
		return
	}
	if duplicate {
		r.counters.duplicates.add(1)
		metrics.DedupDuplicates.Inc()
		return
	}

	r.counters.admitted.add(1)
	metrics.DedupAdmitted.Inc()
	sh.assembler.Append(ev)
}

// Counters returns a point-in-time copy of the Router's metrics.
func (r *Router) Counters() Counters {
	return Counters{
		PolicyRejected: r.counters.policyRejected.load(),
		Duplicates:     r.counters.duplicates.load(),
		StoreErrors:    r.counters.storeErrors.load(),
		Admitted:       r.counters.admitted.load(),
	}
}
