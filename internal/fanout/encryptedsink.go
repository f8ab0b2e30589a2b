package fanout

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"novarelay.dev/internal/context"
	"novarelay.dev/internal/log"
	"novarelay.dev/internal/router"
)

const hkdfInfo = "novarelay/fanout/secretbox/v1"

// deriveKey expands a pre-shared secret into a secretbox key, scoped to
// this sink's subscriber id so two subscribers sharing an upstream
// secret still get distinct keys.
func deriveKey(sharedSecret []byte, subscriberID string) (key [32]byte, err error) {
	r := hkdf.New(sha256.New, sharedSecret, []byte(subscriberID), []byte(hkdfInfo))
	if _, err = io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("hkdf expand: %w", err)
	}
	return key, nil
}

// EncryptedSink is the /fanout sink: every admitted batch, sealed with
// NaCl secretbox under a key derived via HKDF from the subscriber's
// shared secret. Grounded on the teacher's socketapi.S.Deliver
// per-listener write loop, adapted from plaintext to an authenticated
// ciphertext envelope since /fanout is the settlement-gated surface.
type EncryptedSink struct {
	id           string
	subscriberID string
	conn         *websocket.Conn
	ctx          context.T
	key          [32]byte

	mu     sync.Mutex
	closed bool
}

// NewEncryptedSink derives the subscriber's key and wraps an
// already-accepted websocket connection.
func NewEncryptedSink(ctx context.T, conn *websocket.Conn, subscriberID string, sharedSecret []byte) (*EncryptedSink, error) {
	key, err := deriveKey(sharedSecret, subscriberID)
	if err != nil {
		return nil, err
	}
	return &EncryptedSink{
		id:           "fanout-" + uuid.NewString(),
		subscriberID: subscriberID,
		conn:         conn,
		ctx:          ctx,
		key:          key,
	}, nil
}

func (s *EncryptedSink) ID() string { return s.id }

// envelope is the plaintext sealed inside each secretbox before it is
// written to the wire.
type envelope struct {
	Seq    uint64          `json:"seq"`
	Events []eventEnvelope `json:"events"`
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Kind    int    `json:"kind"`
	Pubkey  string `json:"pubkey"`
	Content string `json:"content"`
}

// Deliver seals batch into a single secretbox frame per batch, rather
// than per event, so the nonce and box overhead is paid once per batch.
func (s *EncryptedSink) Deliver(b router.Batch) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	env := envelope{Seq: b.Seq, Events: make([]eventEnvelope, 0, len(b.Events))}
	for _, ev := range b.Events {
		env.Events = append(env.Events, eventEnvelope{
			ID:      ev.IdHex(),
			Kind:    int(ev.Kind),
			Pubkey:  ev.PubkeyHex(),
			Content: string(ev.Content),
		})
	}
	plain, err := json.Marshal(env)
	if err != nil {
		log.W.F("fanout: encrypted sink %s: marshal batch %d: %v", s.id, b.Seq, err)
		return
	}

	var nonce [24]byte
	if _, err = rand.Read(nonce[:]); err != nil {
		log.E.F("fanout: encrypted sink %s: nonce: %v", s.id, err)
		return
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &s.key)

	wctx, cancel := context.Timeout(s.ctx, 5*time.Second)
	err = s.conn.Write(wctx, websocket.MessageBinary, sealed)
	cancel()
	if err != nil {
		log.D.F("fanout: encrypted sink %s write failed, closing: %v", s.id, err)
		s.Close()
	}
}

// Close closes the underlying connection; safe to call more than once.
func (s *EncryptedSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	_ = s.conn.Close(websocket.StatusNormalClosure, "bye")
}
