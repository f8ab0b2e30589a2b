package fanout

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"novarelay.dev/internal/context"
	"novarelay.dev/internal/log"
	"novarelay.dev/internal/router"
)

// StreamSink is the public /ws sink: every admitted event, unencrypted,
// in arrival order. Grounded on the teacher's socketapi.S.Deliver, which
// writes the same raw envelope to every matching listener; unlike the
// teacher this sink has no filter map, since the public stream carries
// everything the Dedup Store has already admitted.
type StreamSink struct {
	id   string
	conn *websocket.Conn
	ctx  context.T

	mu     sync.Mutex
	closed bool
}

// NewStreamSink wraps an already-accepted websocket connection.
func NewStreamSink(ctx context.T, conn *websocket.Conn) *StreamSink {
	return &StreamSink{id: "ws-" + uuid.NewString(), conn: conn, ctx: ctx}
}

func (s *StreamSink) ID() string { return s.id }

// Deliver writes every event in batch as its own "EVENT" frame, matching
// the wire shape relay clients already expect from upstream relays.
func (s *StreamSink) Deliver(b router.Batch) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	for _, ev := range b.Events {
		j := ev.ToJ()
		frame, err := json.Marshal([3]any{"EVENT", "novarelay", j})
		if err != nil {
			log.W.F("fanout: stream sink %s: marshal event %s: %v", s.id, ev.IdHex(), err)
			continue
		}
		wctx, cancel := context.Timeout(s.ctx, 5*time.Second)
		err = s.conn.Write(wctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			log.D.F("fanout: stream sink %s write failed, closing: %v", s.id, err)
			s.Close()
			return
		}
	}
}

// Close closes the underlying connection; safe to call more than once.
func (s *StreamSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	_ = s.conn.Close(websocket.StatusNormalClosure, "bye")
}
