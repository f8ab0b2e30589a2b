package event

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novarelay.dev/pkg/crypto"
)

func TestSignThenVerify(t *testing.T) {
	signer := crypto.NewSigner()
	require.NoError(t, signer.Generate())

	ev := New()
	ev.Kind = 1
	ev.CreatedAt = 1700000000
	ev.Tags = Tags{{"e", "abc"}}
	ev.Content = []byte("hello novarelay")

	require.NoError(t, ev.Sign(signer))
	assert.Len(t, ev.Id, 32)
	assert.Len(t, ev.Sig, 64)

	valid, err := ev.Verify()
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	signer := crypto.NewSigner()
	require.NoError(t, signer.Generate())

	ev := New()
	ev.Kind = 1
	ev.CreatedAt = 1700000000
	ev.Content = []byte("original")
	require.NoError(t, ev.Sign(signer))

	ev.Content = []byte("tampered")
	_, err := ev.Verify()
	assert.Error(t, err)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	signer := crypto.NewSigner()
	require.NoError(t, signer.Generate())

	ev := New()
	ev.Kind = 3
	ev.CreatedAt = 42
	ev.Tags = Tags{{"p", "deadbeef"}}
	ev.Content = []byte("round trip")
	require.NoError(t, ev.Sign(signer))

	b, err := ev.Marshal()
	require.NoError(t, err)

	var decoded E
	require.NoError(t, decoded.Unmarshal(b))
	assert.Equal(t, ev.IdHex(), decoded.IdHex())
	assert.Equal(t, ev.PubkeyHex(), decoded.PubkeyHex())
	assert.Equal(t, ev.Content, decoded.Content)
	assert.Equal(t, ev.Tags, decoded.Tags)
}

func TestTagsFindAndValues(t *testing.T) {
	tags := Tags{{"e", "id1"}, {"p", "pk1"}, {"p", "pk2"}}
	assert.Equal(t, Tag{"e", "id1"}, tags.Find("e"))
	assert.Nil(t, tags.Find("missing"))
	assert.Equal(t, []string{"pk1", "pk2"}, tags.Values("p"))
}

func TestSortByCreatedAtNewestFirst(t *testing.T) {
	evs := []*E{
		{CreatedAt: 10},
		{CreatedAt: 30},
		{CreatedAt: 20},
	}
	sort.Sort(SortByCreatedAt(evs))
	assert.Equal(t, []int64{30, 20, 10}, []int64{evs[0].CreatedAt, evs[1].CreatedAt, evs[2].CreatedAt})
}

func TestDedupKey(t *testing.T) {
	ev := New()
	ev.Id = make([]byte, 32)
	ev.Id[0] = 0xAB
	ev.CreatedAt = 99

	id, createdAt := ev.DedupKey()
	assert.EqualValues(t, 0xAB, id[0])
	assert.EqualValues(t, 99, createdAt)
}
