// Package event is novarelay's event codec: the wire/native struct, its
// canonical hashing and signing, and the dedup key it reduces to. The
// teacher relay spreads this across event/kind/tag/tags/timestamp/hex
// packages; novarelay's domain is narrower (ingest, dedup, route, fan
// out — not full nostr query semantics) so it is kept as one dense
// package instead.
package event

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	sha256simd "github.com/minio/sha256-simd"

	"novarelay.dev/pkg/crypto"
)

// Tag is a single nostr-style tag: an ordered list of strings, first
// element conventionally the tag name ("e", "p", "d", ...).
type Tag []string

// Tags is an ordered list of Tag.
type Tags []Tag

// Find returns the first tag whose name (element 0) matches name, or nil.
func (t Tags) Find(name string) Tag {
	for _, tg := range t {
		if len(tg) > 0 && tg[0] == name {
			return tg
		}
	}
	return nil
}

// Values returns element 1 of every tag named name, in order.
func (t Tags) Values(name string) (vals []string) {
	for _, tg := range t {
		if len(tg) > 1 && tg[0] == name {
			vals = append(vals, tg[1])
		}
	}
	return
}

// E is the in-memory representation of an event: binary id/pubkey/sig,
// decoded tags, raw content bytes.
type E struct {
	Id        []byte
	Pubkey    []byte
	CreatedAt int64
	Kind      uint16
	Tags      Tags
	Content   []byte
	Sig       []byte
}

// New returns an empty event, ready for field population and Sign.
func New() *E { return &E{} }

// DedupKey returns the event's identity for the dedup store: event_id
// plus a recency hint used to prune the persistent tier.
func (ev *E) DedupKey() (id [32]byte, createdAt int64) {
	copy(id[:], ev.Id)
	return id, ev.CreatedAt
}

// IdHex returns the event id as a lowercase hex string.
func (ev *E) IdHex() string { return hex.EncodeToString(ev.Id) }

// PubkeyHex returns the pubkey as a lowercase hex string.
func (ev *E) PubkeyHex() string { return hex.EncodeToString(ev.Pubkey) }

// SigHex returns the signature as a lowercase hex string.
func (ev *E) SigHex() string { return hex.EncodeToString(ev.Sig) }

// canonical renders the NIP-01 canonical serialization used to derive the
// event id: the JSON array [0, pubkey, created_at, kind, tags, content]
// with no insignificant whitespace and control characters escaped.
func (ev *E) canonical() []byte {
	var buf bytes.Buffer
	buf.WriteString(`[0,"`)
	buf.WriteString(ev.PubkeyHex())
	buf.WriteString(`",`)
	fmt.Fprintf(&buf, "%d", ev.CreatedAt)
	buf.WriteByte(',')
	fmt.Fprintf(&buf, "%d", ev.Kind)
	buf.WriteByte(',')
	writeTagsJSON(&buf, ev.Tags)
	buf.WriteByte(',')
	writeEscapedString(&buf, string(ev.Content))
	buf.WriteByte(']')
	return buf.Bytes()
}

func writeTagsJSON(buf *bytes.Buffer, tags Tags) {
	buf.WriteByte('[')
	for i, tg := range tags {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for j, v := range tg {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeEscapedString(buf, v)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
}

// writeEscapedString writes s as a JSON string using encoding/json's
// escaping rules, which NIP-01 canonicalization relies on.
func writeEscapedString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// Hash computes the event id: sha256 of the canonical serialization.
func (ev *E) Hash() []byte {
	h := sha256simd.Sum256(ev.canonical())
	return h[:]
}

// Sign computes Id from the current fields and signs it with signer,
// filling in Pubkey, Id and Sig.
func (ev *E) Sign(signer crypto.I) (err error) {
	ev.Pubkey = signer.Pub()
	ev.Id = ev.Hash()
	if ev.Sig, err = signer.Sign(ev.Id); err != nil {
		return err
	}
	return nil
}

// Verify recomputes Id from the current fields and checks Sig against it
// using the embedded Pubkey.
func (ev *E) Verify() (valid bool, err error) {
	want := ev.Hash()
	if !bytes.Equal(want, ev.Id) {
		return false, fmt.Errorf("event id mismatch: got %x want %x", ev.Id, want)
	}
	s := crypto.NewSigner()
	if err = s.InitPub(ev.Pubkey); err != nil {
		return false, err
	}
	return s.Verify(ev.Id, ev.Sig)
}

// SortByCreatedAt is a sort.Interface over []*E, newest first.
type SortByCreatedAt []*E

func (s SortByCreatedAt) Len() int      { return len(s) }
func (s SortByCreatedAt) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s SortByCreatedAt) Less(i, j int) bool {
	return s[i].CreatedAt > s[j].CreatedAt
}

var _ sort.Interface = SortByCreatedAt(nil)
