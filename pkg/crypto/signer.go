// Package crypto wraps BIP-340 Schnorr signatures over secp256k1 behind
// the small I surface the event package signs and verifies
// through, so the curve library used can change without touching event
// code.
package crypto

import (
	"crypto/rand"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// I is the minimal signer surface an identity or event needs: access to
// its own public key and the ability to sign and verify 32-byte message
// digests.
type I interface {
	Generate() error
	Sec() []byte
	Pub() []byte
	Sign(msg []byte) (sig []byte, err error)
	Verify(msg, sig []byte) (valid bool, err error)
	InitSec(sec []byte) error
	InitPub(pub []byte) error
}

// Signer is the default I implementation, holding an optional private key
// alongside the public key required to verify.
type Signer struct {
	sec *secp256k1.PrivateKey
	pub *secp256k1.PublicKey
}

// NewSigner returns an empty Signer; call Generate or InitSec/InitPub to
// populate key material.
func NewSigner() *Signer { return &Signer{} }

// Generate creates a fresh random keypair.
func (s *Signer) Generate() (err error) {
	sec, err := secp256k1.GeneratePrivateKeyFromRand(rand.Reader)
	if err != nil {
		return err
	}
	s.sec = sec
	s.pub = sec.PubKey()
	return nil
}

// InitSec loads a 32-byte private key and derives its public key.
func (s *Signer) InitSec(sec []byte) (err error) {
	priv := secp256k1.PrivKeyFromBytes(sec)
	s.sec = priv
	s.pub = priv.PubKey()
	return nil
}

// InitPub loads a 32-byte x-only public key, for verify-only use.
func (s *Signer) InitPub(pub []byte) (err error) {
	p, err := schnorr.ParsePubKey(pub)
	if err != nil {
		return err
	}
	s.pub = p
	return nil
}

// Sec returns the 32-byte private key, or nil if none is loaded.
func (s *Signer) Sec() []byte {
	if s.sec == nil {
		return nil
	}
	return s.sec.Serialize()
}

// Pub returns the 32-byte x-only serialized public key.
func (s *Signer) Pub() []byte {
	if s.pub == nil {
		return nil
	}
	return schnorr.SerializePubKey(s.pub)
}

// Sign produces a BIP-340 Schnorr signature over a 32-byte digest.
func (s *Signer) Sign(msg []byte) (sig []byte, err error) {
	signature, err := schnorr.Sign(s.sec, msg)
	if err != nil {
		return nil, err
	}
	return signature.Serialize(), nil
}

// Verify checks a BIP-340 Schnorr signature over a 32-byte digest against
// the loaded public key.
func (s *Signer) Verify(msg, sig []byte) (valid bool, err error) {
	signature, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false, err
	}
	return signature.Verify(msg, s.pub), nil
}
