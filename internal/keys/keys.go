// Package keys decodes relay identity key material supplied as either a
// bech32-encoded npub/nsec or a raw hex string, following the dual-format
// convention identities and config files use throughout novarelay.
package keys

import (
	"encoding/hex"

	"novarelay.dev/internal/log"
)

const (
	npubHRP = "npub"
	nsecHRP = "nsec"
)

// DecodeNpubOrHex decodes a public key given as bech32 npub or as a raw
// hex string.
func DecodeNpubOrHex(v string) (pk []byte, err error) {
	return decodeKeyOrHex(v, npubHRP)
}

// DecodeNsecOrHex decodes a private key given as bech32 nsec or as a raw
// hex string.
func DecodeNsecOrHex(v string) (sk []byte, err error) {
	return decodeKeyOrHex(v, nsecHRP)
}

func decodeKeyOrHex(v, wantHRP string) (out []byte, err error) {
	var hrp string
	var bits5 []byte
	if hrp, bits5, err = decode(v); err != nil {
		if out, err = hex.DecodeString(v); err != nil {
			log.W.F("key %s is neither bech32 %s nor hex", v, wantHRP)
			return
		}
		return
	}
	if hrp != wantHRP {
		log.W.F("key %s is neither bech32 %s nor hex", v, wantHRP)
		err = errInvalidBech32("unexpected human readable part " + hrp)
		return
	}
	if out, err = convertBits(bits5, 5, 8, false); err != nil {
		return
	}
	return
}
