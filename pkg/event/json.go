package event

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// J is the wire-format event: the JSON object a nostr client or upstream
// relay actually sends, using plain strings/ints rather than E's binary
// fields.
type J struct {
	Id        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// ToEvent converts the wire format into the native E, decoding every hex
// field.
func (j *J) ToEvent() (ev *E, err error) {
	ev = &E{
		CreatedAt: j.CreatedAt,
		Kind:      uint16(j.Kind),
		Content:   []byte(j.Content),
	}
	if ev.Id, err = hex.DecodeString(j.Id); err != nil {
		return nil, fmt.Errorf("decoding id: %w", err)
	}
	if ev.Pubkey, err = hex.DecodeString(j.Pubkey); err != nil {
		return nil, fmt.Errorf("decoding pubkey: %w", err)
	}
	if ev.Sig, err = hex.DecodeString(j.Sig); err != nil {
		return nil, fmt.Errorf("decoding sig: %w", err)
	}
	ev.Tags = make(Tags, len(j.Tags))
	for i, t := range j.Tags {
		ev.Tags[i] = Tag(t)
	}
	return ev, nil
}

// ToJ converts the native E into the wire format.
func (ev *E) ToJ() (j *J) {
	j = &J{
		Id:        ev.IdHex(),
		Pubkey:    ev.PubkeyHex(),
		CreatedAt: ev.CreatedAt,
		Kind:      int(ev.Kind),
		Content:   string(ev.Content),
		Sig:       ev.SigHex(),
	}
	j.Tags = make([][]string, len(ev.Tags))
	for i, t := range ev.Tags {
		j.Tags[i] = []string(t)
	}
	return
}

// Marshal renders ev as minified wire-format JSON.
func (ev *E) Marshal() ([]byte, error) {
	return json.Marshal(ev.ToJ())
}

// Unmarshal parses wire-format JSON into ev.
func (ev *E) Unmarshal(b []byte) (err error) {
	j := &J{}
	if err = json.Unmarshal(b, j); err != nil {
		return err
	}
	var decoded *E
	if decoded, err = j.ToEvent(); err != nil {
		return err
	}
	*ev = *decoded
	return nil
}
