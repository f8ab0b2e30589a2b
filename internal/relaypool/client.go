package relaypool

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"

	"novarelay.dev/internal/context"
	"novarelay.dev/internal/log"
	"novarelay.dev/pkg/event"
)

// Message is an event read from an upstream relay, tagged with the URL
// it came from so the Router (and its policy/metrics) can attribute it.
type Message struct {
	Event *event.E
	URL   string
}

var dialer = websocket.Dialer{HandshakeTimeout: 7 * time.Second}

// runConnection is the connection task for one endpoint: it dials,
// subscribes to everything, forwards decoded events to out, sends
// heartbeats, and on any transport error or read failure returns so the
// caller can apply backoff and retry. It never blocks past ctx
// cancellation.
func runConnection(ctx context.T, ep *Endpoint, out chan<- Message, invalidSig *atomic.Int64) (err error) {
	ep.setStatus(Connecting)

	var conn *websocket.Conn
	if conn, _, err = dialer.Dial(ep.URL, nil); err != nil {
		return err
	}
	defer conn.Close()

	ep.setStatus(Connected)
	ep.heartbeat()
	log.I.F("relay pool connected to %s", ep.URL)

	// NIP-01 style subscribe-to-everything request; upstream relays this
	// simple are expected to stream all events matching an empty filter.
	req := []any{"REQ", "novarelay", map[string]any{}}
	var reqBytes []byte
	if reqBytes, err = json.Marshal(req); err != nil {
		return err
	}
	if err = conn.WriteMessage(websocket.TextMessage, reqBytes); err != nil {
		return err
	}

	pingTicker := time.NewTicker(29 * time.Second)
	defer pingTicker.Stop()

	readErr := make(chan error, 1)
	msgs := make(chan []byte)
	go func() {
		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				readErr <- rerr
				return
			}
			select {
			case msgs <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return context.GetCause(ctx)
		case rerr := <-readErr:
			return rerr
		case <-pingTicker.C:
			if err = conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case data := <-msgs:
			ep.heartbeat()
			ep.resetFailures()
			ev, ok := decodeEventMessage(data)
			if !ok {
				continue
			}
			if valid, verr := ev.Verify(); verr != nil || !valid {
				invalidSig.Add(1)
				log.W.F("relay pool: %s sent event %s with invalid signature, dropping", ep.URL, ev.IdHex())
				continue
			}
			select {
			case out <- Message{Event: ev, URL: ep.URL}:
			case <-ctx.Done():
				return context.GetCause(ctx)
			}
		}
	}
}

// decodeEventMessage parses a NIP-01 style ["EVENT", subID, {...}] frame,
// returning the decoded event and whether decoding succeeded.
func decodeEventMessage(data []byte) (*event.E, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 3 {
		return nil, false
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil || label != "EVENT" {
		return nil, false
	}
	j := &event.J{}
	if err := json.Unmarshal(frame[len(frame)-1], j); err != nil {
		return nil, false
	}
	ev, err := j.ToEvent()
	if err != nil {
		return nil, false
	}
	return ev, true
}
