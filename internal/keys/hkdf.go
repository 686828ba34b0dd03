// Package keys implements the TLS 1.3 / QUIC secret schedule: HKDF-Extract,
// HKDF-Expand-Label, the "quic key"/"quic iv"/"quic hp" derivations, and the
// per-direction header-protection and packet-protection key material for
// each encryption level.
package keys

import (
	"crypto"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

// ExpandLabel implements the TLS 1.3 HKDF-Expand-Label (RFC 8446 §7.1) used
// both for the bare TLS labels ("c hs traffic", "s hs traffic", ...) and the
// "quic "-prefixed labels of RFC 9001 §5.
//
// HkdfLabel = length(2) || "tls13 "+label (1-byte len prefixed) || context (1-byte len prefixed)
func ExpandLabel(hash crypto.Hash, secret []byte, label string, context []byte, length int) ([]byte, error) {
	if !hash.Available() {
		return nil, fmt.Errorf("keys: hash %v not linked into binary", hash)
	}
	fullLabel := "tls13 " + label
	if len(fullLabel) > 255 || len(context) > 255 {
		return nil, fmt.Errorf("keys: label or context too long")
	}

	hkdfLabel := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	hkdfLabel = binary.BigEndian.AppendUint16(hkdfLabel, uint16(length))
	hkdfLabel = append(hkdfLabel, byte(len(fullLabel)))
	hkdfLabel = append(hkdfLabel, fullLabel...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)

	out := make([]byte, length)
	r := hkdf.Expand(hash.New, secret, hkdfLabel)
	if _, err := r.Read(out); err != nil {
		return nil, fmt.Errorf("keys: hkdf expand: %w", err)
	}
	return out, nil
}

// Extract runs HKDF-Extract(salt, ikm) with the given hash.
func Extract(hash crypto.Hash, salt, ikm []byte) []byte {
	return hkdf.Extract(hash.New, ikm, salt)
}
