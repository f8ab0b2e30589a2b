package relaypool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventMessageAcceptsValidFrame(t *testing.T) {
	frame := []any{"EVENT", "novarelay", map[string]any{
		"id":         "1111111111111111111111111111111111111111111111111111111111111111",
		"pubkey":     "2222222222222222222222222222222222222222222222222222222222222222",
		"created_at": 1700000000,
		"kind":       1,
		"tags":       [][]string{{"e", "abc"}},
		"content":    "hello",
		"sig":        "33333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333333",
	}}
	b, err := json.Marshal(frame)
	require.NoError(t, err)

	ev, ok := decodeEventMessage(b)
	require.True(t, ok)
	assert.Equal(t, "hello", string(ev.Content))
	assert.EqualValues(t, 1, ev.Kind)
}

func TestDecodeEventMessageRejectsNonEventFrame(t *testing.T) {
	b, _ := json.Marshal([]any{"EOSE", "novarelay"})
	_, ok := decodeEventMessage(b)
	assert.False(t, ok)
}

func TestDecodeEventMessageRejectsMalformedEvent(t *testing.T) {
	frame := []any{"EVENT", "novarelay", map[string]any{"id": "not-hex"}}
	b, _ := json.Marshal(frame)
	_, ok := decodeEventMessage(b)
	assert.False(t, ok)
}

func TestDecodeEventMessageRejectsGarbage(t *testing.T) {
	_, ok := decodeEventMessage([]byte("not json"))
	assert.False(t, ok)
}
