package router

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novarelay.dev/internal/context"
	"novarelay.dev/internal/dedup"
	"novarelay.dev/internal/relaypool"
	"novarelay.dev/pkg/event"
)

func openTestStore(t *testing.T) *dedup.Store {
	t.Helper()
	s, err := dedup.Open(dedup.Config{
		DataDir:        t.TempDir(),
		HotsetSize:     1000,
		BloomCapacity:  10000,
		LRUSize:        1000,
		RetentionHours: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeEvent(id byte, kind uint16) *event.E {
	ev := event.New()
	ev.Id = make([]byte, 32)
	ev.Id[0] = id
	ev.Pubkey = make([]byte, 32)
	ev.Kind = kind
	ev.CreatedAt = time.Now().Unix()
	return ev
}

func TestRouterSealsBatchBySize(t *testing.T) {
	store := openTestStore(t)
	sealed := make(chan Batch, 10)
	// Workers: 1 pins every event to the same shard so the three events
	// below land in one batch; batching itself is per-shard (see
	// TestRouterShardsByEventIDLowByte), the worker pool size is
	// independent of this test's concern.
	r := New(store, Config{Workers: 1, BatchSize: 3, MaxLatency: time.Hour}, func(b Batch) { sealed <- b })

	in := make(chan relaypool.Message, 10)
	ctx, cancel := context.Cancel(context.Bg())
	defer cancel()
	go r.Run(ctx, in)

	for i := 0; i < 3; i++ {
		in <- relaypool.Message{Event: makeEvent(byte(i+1), 1)}
	}

	select {
	case b := <-sealed:
		assert.Len(t, b.Events, 3)
		assert.EqualValues(t, 1, b.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not sealed by size")
	}
}

func TestRouterSealsBatchByLatency(t *testing.T) {
	store := openTestStore(t)
	sealed := make(chan Batch, 10)
	r := New(store, Config{Workers: 1, BatchSize: 1000, MaxLatency: 20 * time.Millisecond}, func(b Batch) { sealed <- b })

	in := make(chan relaypool.Message, 10)
	ctx, cancel := context.Cancel(context.Bg())
	defer cancel()
	go r.Run(ctx, in)

	in <- relaypool.Message{Event: makeEvent(9, 1)}

	select {
	case b := <-sealed:
		assert.Len(t, b.Events, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not sealed by latency")
	}
}

func TestRouterDropsDuplicates(t *testing.T) {
	store := openTestStore(t)
	sealed := make(chan Batch, 10)
	r := New(store, Config{BatchSize: 2, MaxLatency: 10 * time.Millisecond}, func(b Batch) { sealed <- b })

	in := make(chan relaypool.Message, 10)
	ctx, cancel := context.Cancel(context.Bg())
	defer cancel()
	go r.Run(ctx, in)

	ev := makeEvent(3, 1)
	in <- relaypool.Message{Event: ev}
	in <- relaypool.Message{Event: ev}

	select {
	case b := <-sealed:
		assert.Len(t, b.Events, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not sealed")
	}

	assert.Eventually(t, func() bool {
		return r.Counters().Duplicates == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRouterRejectsDisallowedKind(t *testing.T) {
	store := openTestStore(t)
	sealed := make(chan Batch, 10)
	r := New(store, Config{BatchSize: 1, MaxLatency: time.Hour, AllowedKinds: []uint16{1}}, func(b Batch) { sealed <- b })

	in := make(chan relaypool.Message, 10)
	ctx, cancel := context.Cancel(context.Bg())
	defer cancel()
	go r.Run(ctx, in)

	in <- relaypool.Message{Event: makeEvent(4, 9)}

	select {
	case <-sealed:
		t.Fatal("disallowed kind should not have produced a batch")
	case <-time.After(100 * time.Millisecond):
	}
	assert.EqualValues(t, 1, r.Counters().PolicyRejected)
}

// TestRouterNoDoubleDeliveryUnderConcurrentSameID reproduces the ordinary
// case of the same event arriving from two upstream relays at once: both
// copies are enqueued back-to-back before either worker has had a chance
// to commit it. The Router must route both to the same shard and emit
// exactly one admitted batch entry, never two.
func TestRouterNoDoubleDeliveryUnderConcurrentSameID(t *testing.T) {
	store := openTestStore(t)
	var sealedMu sealedCollector
	r := New(store, Config{BatchSize: 1, MaxLatency: 50 * time.Millisecond}, sealedMu.collect)

	in := make(chan relaypool.Message, 64)
	ctx, cancel := context.Cancel(context.Bg())
	defer cancel()
	go r.Run(ctx, in)

	ev := makeEvent(77, 1)
	for i := 0; i < 2; i++ {
		in <- relaypool.Message{Event: ev}
	}

	assert.Eventually(t, func() bool {
		return r.Counters().Admitted+r.Counters().Duplicates == 2
	}, time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 1, r.Counters().Admitted)
	assert.EqualValues(t, 1, r.Counters().Duplicates)
	assert.Equal(t, 1, sealedMu.totalEvents(), "event_id must never be delivered twice")
}

// TestRouterShardsByEventIDLowByte confirms events are independently
// batched per shard: two events whose ids hash to different shards each
// seal their own single-member batch instead of waiting on each other.
func TestRouterShardsByEventIDLowByte(t *testing.T) {
	store := openTestStore(t)
	sealed := make(chan Batch, 10)
	r := New(store, Config{Workers: 4, BatchSize: 1, MaxLatency: time.Hour}, func(b Batch) { sealed <- b })

	in := make(chan relaypool.Message, 10)
	ctx, cancel := context.Cancel(context.Bg())
	defer cancel()
	go r.Run(ctx, in)

	in <- relaypool.Message{Event: makeEvent(0, 1)}
	in <- relaypool.Message{Event: makeEvent(1, 1)}

	seen := map[uint64]int{}
	for i := 0; i < 2; i++ {
		select {
		case b := <-sealed:
			require.Len(t, b.Events, 1)
			seen[b.Seq]++
		case <-time.After(2 * time.Second):
			t.Fatal("expected both shards to seal independently")
		}
	}
	assert.Len(t, seen, 2, "batch_seq must be globally unique across shards")
}

// sealedCollector gathers every sealed batch's events under a mutex so
// tests can assert on total event count across shards without a race.
type sealedCollector struct {
	mu     sync.Mutex
	events []*event.E
}

func (c *sealedCollector) collect(b Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, b.Events...)
}

func (c *sealedCollector) totalEvents() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
