package keys

import "crypto"

// InitialSaltV1 is the RFC 9001 §5.2 salt for QUIC version 1.
var InitialSaltV1 = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17,
	0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a,
}

// InitialSecrets holds the client and server initial traffic secrets
// derived from the client's first Destination Connection ID (§4.1).
type InitialSecrets struct {
	Client []byte
	Server []byte
}

// DeriveInitial computes the client_in/server_in secrets from dcid, per
// RFC 9001 §5.2 (mirrors QuicDeriveInitialSecrets in the original C core).
func DeriveInitial(dcid []byte) InitialSecrets {
	initialSecret := Extract(crypto.SHA256, InitialSaltV1, dcid)
	client, err := ExpandLabel(crypto.SHA256, initialSecret, "client in", nil, 32)
	if err != nil {
		panic(err) // SHA-256 is always linked in; this cannot fail
	}
	server, err := ExpandLabel(crypto.SHA256, initialSecret, "server in", nil, 32)
	if err != nil {
		panic(err)
	}
	return InitialSecrets{Client: client, Server: server}
}

// FinishedKey derives the Finished MAC key from a traffic secret, per TLS
// 1.3 §4.4.4: HKDF-Expand-Label(secret, "finished", "", Hash.len).
func FinishedKey(hash crypto.Hash, secret []byte) ([]byte, error) {
	return ExpandLabel(hash, secret, "finished", nil, hash.Size())
}

// DeriveResumptionMasterSecret derives the "res master" secret from the
// application-traffic master secret and the transcript hash at the point
// the client receives the server's Finished, per RFC 8446 §7.1 and §4.1
// of SPEC_FULL.
func DeriveResumptionMasterSecret(hash crypto.Hash, masterSecret, transcriptHash []byte) ([]byte, error) {
	return ExpandLabel(hash, masterSecret, "res master", transcriptHash, hash.Size())
}
