// Package identity loads or generates the relay's signing keypair at
// startup, following the teacher's "config file as a typed document the
// process may rewrite" pattern: a missing or unparseable secret key
// triggers generation, the public half is logged, and the secret half is
// written back to the config file with an atomic replace so it survives
// restarts.
package identity

import (
	"encoding/hex"

	novatomic "novarelay.dev/internal/atomic"
	"novarelay.dev/internal/keys"
	"novarelay.dev/internal/log"
	"novarelay.dev/pkg/crypto"
)

// Identity is the relay's own keypair. main logs its public key at
// startup; it is not passed to the Fanout Bus or the HTTP surface, and no
// outbound envelope is signed with it. The persisted flag is a lock-free
// field, so Persisted may be read from any goroutine.
type Identity struct {
	Signer *crypto.Signer
	persisted novatomic.Bool
}

// Persisted reports whether the secret key came from (or was written to)
// a known config path, versus held in memory only.
func (id *Identity) Persisted() bool { return id.persisted.Load() }

// PersistFunc writes a newly generated secret key back to durable
// config. Supplied by the caller so this package doesn't depend on the
// config package's on-disk format.
type PersistFunc func(secretHex string) error

// Load resolves the relay identity from a configured secret key string
// (bech32 nsec or hex, possibly empty), generating and persisting a new
// one when necessary.
func Load(configuredSecret string, persist PersistFunc) (id *Identity, err error) {
	id = &Identity{Signer: crypto.NewSigner()}

	if configuredSecret != "" {
		var sec []byte
		if sec, err = keys.DecodeNsecOrHex(configuredSecret); err == nil {
			if err = id.Signer.InitSec(sec); err == nil {
				id.persisted.Store(true)
				log.I.F("loaded relay identity, pubkey %x", id.Signer.Pub())
				return id, nil
			}
		}
		log.W.F("configured secret key is invalid, generating a new identity")
	}

	if err = id.Signer.Generate(); err != nil {
		return nil, err
	}
	log.I.F("generated new relay identity, pubkey %x", id.Signer.Pub())

	if persist == nil {
		log.W.F("no config path known, generated identity held in memory only")
		return id, nil
	}
	secretHex := hex.EncodeToString(id.Signer.Sec())
	if err = persist(secretHex); err != nil {
		log.W.F("failed to persist generated identity: %v", err)
		return id, nil
	}
	id.persisted.Store(true)
	return id, nil
}
