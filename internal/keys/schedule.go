package keys

import "crypto"

// emptyHash returns the hash of the zero-length string, used as the
// context for the "derived" secret at each stage of the TLS 1.3 key
// schedule (RFC 8446 §7.1).
func emptyHash(hash crypto.Hash) []byte {
	h := hash.New()
	return h.Sum(nil)
}

func deriveSecret(hash crypto.Hash, secret []byte, label string, transcript []byte) ([]byte, error) {
	return ExpandLabel(hash, secret, label, transcript, hash.Size())
}

// HandshakeSecrets holds the client/server handshake traffic secrets and
// the handshake secret itself (needed to derive the master secret later).
type HandshakeSecrets struct {
	Client           []byte
	Server           []byte
	HandshakeSecret  []byte
}

// DeriveHandshakeSecrets runs the TLS 1.3 secret schedule from the
// zero early secret through the handshake traffic secrets, given the
// (EC)DHE shared secret and the transcript hash over
// ClientHello..ServerHello.
func DeriveHandshakeSecrets(hash crypto.Hash, dheSecret, transcriptCHtoSH []byte) (*HandshakeSecrets, error) {
	zero := make([]byte, hash.Size())
	earlySecret := Extract(hash, nil, zero)
	derivedEarly, err := deriveSecret(hash, earlySecret, "derived", emptyHash(hash))
	if err != nil {
		return nil, err
	}
	handshakeSecret := Extract(hash, derivedEarly, dheSecret)
	clientHS, err := deriveSecret(hash, handshakeSecret, "c hs traffic", transcriptCHtoSH)
	if err != nil {
		return nil, err
	}
	serverHS, err := deriveSecret(hash, handshakeSecret, "s hs traffic", transcriptCHtoSH)
	if err != nil {
		return nil, err
	}
	return &HandshakeSecrets{Client: clientHS, Server: serverHS, HandshakeSecret: handshakeSecret}, nil
}

// ApplicationSecrets holds the 1-RTT traffic secrets derived once the
// server Finished has been transcribed.
type ApplicationSecrets struct {
	Client []byte
	Server []byte
	Master []byte
}

// DeriveApplicationSecrets continues the schedule from a handshake
// secret to the application traffic secrets, given the transcript hash
// over ClientHello..ServerFinished.
func DeriveApplicationSecrets(hash crypto.Hash, handshakeSecret, transcriptCHtoSF []byte) (*ApplicationSecrets, error) {
	derivedHS, err := deriveSecret(hash, handshakeSecret, "derived", emptyHash(hash))
	if err != nil {
		return nil, err
	}
	zero := make([]byte, hash.Size())
	masterSecret := Extract(hash, derivedHS, zero)
	clientAP, err := deriveSecret(hash, masterSecret, "c ap traffic", transcriptCHtoSF)
	if err != nil {
		return nil, err
	}
	serverAP, err := deriveSecret(hash, masterSecret, "s ap traffic", transcriptCHtoSF)
	if err != nil {
		return nil, err
	}
	return &ApplicationSecrets{Client: clientAP, Server: serverAP, Master: masterSecret}, nil
}
