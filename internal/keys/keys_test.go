package keys

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNpubOrHexAcceptsBech32(t *testing.T) {
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	encoded := encodeBech32(t, npubHRP, payload)

	pk, err := DecodeNpubOrHex(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, pk)
}

func TestDecodeNpubOrHexAcceptsHex(t *testing.T) {
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	pk, err := DecodeNpubOrHex(hex.EncodeToString(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, pk)
}

func TestDecodeNpubOrHexRejectsMismatchedHRP(t *testing.T) {
	payload := make([]byte, 32)
	encoded := encodeBech32(t, nsecHRP, payload)

	_, err := DecodeNpubOrHex(encoded)
	assert.Error(t, err)
}

func TestDecodeNsecOrHexAcceptsBech32(t *testing.T) {
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(32 - i)
	}
	encoded := encodeBech32(t, nsecHRP, payload)

	sk, err := DecodeNsecOrHex(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, sk)
}

func TestDecodeNsecOrHexRejectsGarbage(t *testing.T) {
	_, err := DecodeNsecOrHex("not a key at all")
	assert.Error(t, err)
}
