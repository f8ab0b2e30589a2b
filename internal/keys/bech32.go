package keys

import "strings"

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var charsetRev = func() [128]int8 {
	var rev [128]int8
	for i := range rev {
		rev[i] = -1
	}
	for i, c := range charset {
		rev[c] = int8(i)
	}
	return rev
}()

func polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		b := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (b>>uint(i))&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for _, c := range hrp {
		out = append(out, byte(c)>>5)
	}
	out = append(out, 0)
	for _, c := range hrp {
		out = append(out, byte(c)&31)
	}
	return out
}

func verifyChecksum(hrp string, data []byte) bool {
	return polymod(append(hrpExpand(hrp), data...)) == 1
}

// decode splits a bech32 string into its human-readable prefix and raw
// 5-bit groups, verifying the checksum.
func decode(s string) (hrp string, data []byte, err error) {
	s = strings.ToLower(s)
	pos := strings.LastIndexByte(s, '1')
	if pos < 1 || pos+7 > len(s) {
		err = errInvalidBech32("malformed separator")
		return
	}
	hrp = s[:pos]
	data = make([]byte, len(s)-pos-1)
	for i, c := range s[pos+1:] {
		if c > 127 || charsetRev[c] == -1 {
			err = errInvalidBech32("invalid character")
			return
		}
		data[i] = byte(charsetRev[c])
	}
	if !verifyChecksum(hrp, data) {
		err = errInvalidBech32("checksum mismatch")
		return
	}
	data = data[:len(data)-6]
	return
}

// convertBits regroups a slice of fromBits-wide values into a slice of
// toBits-wide values, as used to move between the 5-bit bech32 alphabet
// and 8-bit byte values.
func convertBits(data []byte, fromBits, toBits uint, pad bool) (out []byte, err error) {
	var acc uint32
	var bits uint
	maxv := uint32(1)<<toBits - 1
	for _, value := range data {
		acc = acc<<fromBits | uint32(value)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte(acc>>bits)&byte(maxv))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte(acc<<(toBits-bits))&byte(maxv))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxv != 0 {
		err = errInvalidBech32("invalid padding")
	}
	return
}

type errInvalidBech32 string

func (e errInvalidBech32) Error() string { return "bech32: " + string(e) }
