package router

import (
	"time"

	"go.uber.org/atomic"

	"novarelay.dev/pkg/event"
)

// Batch is a bounded, totally ordered group of post-dedup events
// published atomically to the Fanout Bus.
type Batch struct {
	Seq      uint64
	Events   []*event.E
	SealedAt time.Time
}

// batchAssembler holds one shard's single open batch and seals it either
// when it reaches batchSize or when its oldest member has been open longer
// than maxLatency. A batchAssembler is owned exclusively by one shard's
// worker goroutine - Append and FlushIfStale are only ever called from
// that one goroutine - so the open batch itself needs no lock. seq points
// at a counter shared by every shard so batch_seq stays strictly monotonic
// and totally ordered across the whole Router, even though batches are
// sealed independently per shard.
type batchAssembler struct {
	batchSize  int
	maxLatency time.Duration
	seq        *atomic.Uint64
	open       []*event.E
	openSince  time.Time
	publish    func(Batch)
}

func newBatchAssembler(batchSize int, maxLatency time.Duration, seq *atomic.Uint64, publish func(Batch)) *batchAssembler {
	return &batchAssembler{
		batchSize:  batchSize,
		maxLatency: maxLatency,
		seq:        seq,
		publish:    publish,
	}
}

// Append adds ev to the open batch, then seals and publishes the batch if
// ev brought it to batchSize.
func (a *batchAssembler) Append(ev *event.E) {
	if len(a.open) == 0 {
		a.openSince = time.Now()
	}
	a.open = append(a.open, ev)
	if len(a.open) >= a.batchSize {
		a.seal()
	}
}

// FlushIfStale seals the open batch if its oldest member has aged past
// maxLatency. Called by the owning shard's flush timer.
func (a *batchAssembler) FlushIfStale() {
	if len(a.open) == 0 {
		return
	}
	if time.Since(a.openSince) >= a.maxLatency {
		a.seal()
	}
}

func (a *batchAssembler) seal() {
	b := Batch{Seq: a.seq.Inc(), Events: a.open, SealedAt: time.Now()}
	a.open = nil
	a.publish(b)
}
