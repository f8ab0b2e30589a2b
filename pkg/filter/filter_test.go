package filter

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novarelay.dev/pkg/event"
)

func eventWithAuthor(t *testing.T, kind uint16, pubkeyHex string) *event.E {
	t.Helper()
	b, err := hex.DecodeString(pubkeyHex)
	require.NoError(t, err)
	ev := event.New()
	ev.Kind = kind
	ev.Pubkey = b
	return ev
}

func TestNilPolicyAllowsEverything(t *testing.T) {
	var p *Policy
	assert.True(t, p.Allow(eventWithAuthor(t, 1, "aa")))
}

func TestZeroValuePolicyAllowsEverything(t *testing.T) {
	p := &Policy{}
	assert.True(t, p.Allow(eventWithAuthor(t, 99, "aa")))
}

func TestPolicyAllowedKindsRestricts(t *testing.T) {
	p := NewPolicy(1, 3)
	assert.True(t, p.Allow(eventWithAuthor(t, 1, "aa")))
	assert.True(t, p.Allow(eventWithAuthor(t, 3, "aa")))
	assert.False(t, p.Allow(eventWithAuthor(t, 9, "aa")))
}

func TestPolicyDeniedAuthorsAlwaysChecked(t *testing.T) {
	p := NewPolicy(1)
	p.DeniedAuthors = map[string]struct{}{"aabb": {}}
	assert.False(t, p.Allow(eventWithAuthor(t, 1, "aabb")))
}

func TestPolicyAllowedAuthorsRestricts(t *testing.T) {
	p := &Policy{AllowedAuthors: map[string]struct{}{"aabb": {}}}
	assert.True(t, p.Allow(eventWithAuthor(t, 1, "aabb")))
	assert.False(t, p.Allow(eventWithAuthor(t, 1, "ccdd")))
}

func TestPolicyDeniedTakesPrecedenceOverAllowed(t *testing.T) {
	p := &Policy{
		AllowedAuthors: map[string]struct{}{"aabb": {}},
		DeniedAuthors:  map[string]struct{}{"aabb": {}},
	}
	assert.False(t, p.Allow(eventWithAuthor(t, 1, "aabb")))
}
