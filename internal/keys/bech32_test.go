package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeBech32 is the inverse of decode, built only for these tests: it
// regroups 8-bit data into the 5-bit alphabet, appends a checksum, and
// maps through charset.
func encodeBech32(t *testing.T, hrp string, data8 []byte) string {
	t.Helper()
	data5, err := convertBits(data8, 8, 5, true)
	require.NoError(t, err)

	values := append(hrpExpand(hrp), data5...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := polymod(values) ^ 1

	checksum := make([]byte, 6)
	for i := 0; i < 6; i++ {
		checksum[i] = byte((mod >> uint(5*(5-i))) & 31)
	}

	out := make([]byte, 0, len(data5)+len(checksum))
	out = append(out, data5...)
	out = append(out, checksum...)

	s := hrp + "1"
	for _, v := range out {
		s += string(charset[v])
	}
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i)
	}
	encoded := encodeBech32(t, "npub", payload)

	hrp, data5, err := decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "npub", hrp)

	decoded, err := convertBits(data5, 5, 8, false)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	payload := make([]byte, 32)
	encoded := encodeBech32(t, "npub", payload)
	tampered := encoded[:len(encoded)-1] + flipChar(encoded[len(encoded)-1])

	_, _, err := decode(tampered)
	assert.Error(t, err)
}

func flipChar(c byte) string {
	for _, r := range charset {
		if byte(r) != c {
			return string(r)
		}
	}
	return "q"
}

func TestDecodeRejectsMissingSeparator(t *testing.T) {
	_, _, err := decode("nosuchseparatorhere")
	assert.Error(t, err)
}
