package tlsengine

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeyExchange is the (EC)DHE half of the "crypto primitive interface
// (consumed)" (§6): generating an ephemeral key share and computing the
// shared secret from the peer's share. X25519 is the only named group
// this engine offers or accepts; SECP256R1/SECP384R1 are valid transcript
// codepoints but have no implementation here.
type KeyExchange interface {
	Generate() (private, public []byte, err error)
	Shared(private, peerPublic []byte) ([]byte, error)
}

// X25519 implements KeyExchange over Curve25519, matching the named
// group this engine negotiates.
type X25519 struct{}

func (X25519) Generate() (private, public []byte, err error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return nil, nil, fmt.Errorf("tlsengine: generate x25519 key: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("tlsengine: derive x25519 public key: %w", err)
	}
	return priv, pub, nil
}

func (X25519) Shared(private, peerPublic []byte) ([]byte, error) {
	shared, err := curve25519.X25519(private, peerPublic)
	if err != nil {
		return nil, fmt.Errorf("tlsengine: x25519 shared secret: %w", err)
	}
	return shared, nil
}
