package tlsengine

import (
	"crypto"
	"hash"
)

// Transcript is the running hash over every handshake message in wire
// order (§4.6). Go's hash.Hash.Sum does not reset the running state, so
// snapshots can be taken at any point without disturbing subsequent
// writes.
type Transcript struct {
	hash crypto.Hash
	h    hash.Hash
}

// NewTranscript starts an empty transcript under the given hash
// algorithm (SHA-256 or SHA-384, per the negotiated cipher suite).
func NewTranscript(hash crypto.Hash) *Transcript {
	return &Transcript{hash: hash, h: hash.New()}
}

// Write feeds a complete framed handshake message into the transcript.
func (t *Transcript) Write(framedMessage []byte) {
	t.h.Write(framedMessage)
}

// Sum returns the current transcript hash without disturbing it.
func (t *Transcript) Sum() []byte {
	return t.h.Sum(nil)
}
