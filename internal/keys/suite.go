package keys

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha384" //nolint:staticcheck // SHA-384 registration side effect
	"fmt"
)

// SuiteID identifies a negotiated TLS 1.3 cipher suite. Values follow the
// IANA TLS CipherSuite registry, mirroring how the teacher's kex package
// keys its CipherSuiteID registry off the COSE/IANA algorithm numbers
// rather than inventing local constants.
type SuiteID uint16

const (
	TLS_AES_128_GCM_SHA256       SuiteID = 0x1301
	TLS_AES_256_GCM_SHA384       SuiteID = 0x1302
	TLS_CHACHA20_POLY1305_SHA256 SuiteID = 0x1303
)

// AEAD identifies the packet-protection algorithm for a Suite.
type AEAD int

const (
	AES128GCM AEAD = iota
	AES256GCM
	ChaCha20Poly1305
)

// Suite combines the AEAD, the header-protection cipher key length, and the
// PRF hash used throughout a cipher suite's key schedule — the Go analogue
// of the teacher's CipherSuite{EncryptAlg, MacAlg, PRFHash} struct.
type Suite struct {
	ID     SuiteID
	AEAD   AEAD
	KeyLen int // AEAD and HP key length in bytes
	Hash   crypto.Hash
}

func (s Suite) String() string {
	switch s.ID {
	case TLS_AES_128_GCM_SHA256:
		return "TLS_AES_128_GCM_SHA256"
	case TLS_AES_256_GCM_SHA384:
		return "TLS_AES_256_GCM_SHA384"
	case TLS_CHACHA20_POLY1305_SHA256:
		return "TLS_CHACHA20_POLY1305_SHA256"
	default:
		return fmt.Sprintf("Suite(%#04x)", uint16(s.ID))
	}
}

var suites = make(map[SuiteID]Suite)

// RegisterSuite installs a cipher suite descriptor. Called from init(), the
// same no-global-mutation-after-startup shape as the teacher's
// kex.RegisterCipherSuite / quic_digest_methods registry.
func RegisterSuite(s Suite) { suites[s.ID] = s }

// SuiteByID looks up a registered cipher suite.
func SuiteByID(id SuiteID) (Suite, bool) {
	s, ok := suites[id]
	return s, ok
}

// InitialSuite is the fixed AEAD_AES_128_GCM/SHA-256 suite used for the
// Initial encryption level regardless of what the handshake negotiates
// (RFC 9001 §5.2).
var InitialSuite = Suite{ID: TLS_AES_128_GCM_SHA256, AEAD: AES128GCM, KeyLen: 16, Hash: crypto.SHA256}

func init() {
	RegisterSuite(InitialSuite)
	RegisterSuite(Suite{ID: TLS_AES_256_GCM_SHA384, AEAD: AES256GCM, KeyLen: 32, Hash: crypto.SHA384})
	RegisterSuite(Suite{ID: TLS_CHACHA20_POLY1305_SHA256, AEAD: ChaCha20Poly1305, KeyLen: 32, Hash: crypto.SHA256})
}
