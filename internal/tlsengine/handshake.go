package tlsengine

import "github.com/zhangjinde/go-fdo-quic/internal/protoerr"

const legacyVersion = 0x0303

// ClientHello is the subset of RFC 8446 §4.1.2 fields this engine needs;
// compression methods are fixed at the single legal "null" value and not
// modeled as a field.
type ClientHello struct {
	Random        [32]byte
	SessionID     []byte
	CipherSuites  []uint16
	Extensions    []Extension
}

func (ch ClientHello) marshal() []byte {
	w := &lenWriter{}
	w.writeUint16(legacyVersion)
	w.writeRaw(ch.Random[:])
	w.writeVec8(ch.SessionID)
	cs := &lenWriter{}
	for _, s := range ch.CipherSuites {
		cs.writeUint16(s)
	}
	w.writeVec16(cs.bytes())
	w.writeVec8([]byte{0x00}) // legacy_compression_methods: null only
	w.writeRaw(buildExtensionList(ch.Extensions))
	return w.bytes()
}

func parseClientHello(body []byte) (ClientHello, error) {
	var ch ClientHello
	l := newLenBuf(body)
	if _, err := l.readUint16(); err != nil {
		return ch, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseClientHello: version", err)
	}
	random, err := l.readN(32)
	if err != nil {
		return ch, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseClientHello: random", err)
	}
	copy(ch.Random[:], random)
	sid, err := l.readVec8()
	if err != nil {
		return ch, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseClientHello: session_id", err)
	}
	ch.SessionID = sid
	csRaw, err := l.readVec16()
	if err != nil {
		return ch, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseClientHello: cipher_suites", err)
	}
	csBuf := newLenBuf(csRaw)
	for csBuf.remaining() > 0 {
		s, err := csBuf.readUint16()
		if err != nil {
			return ch, protoerr.Wrap(protoerr.Malformed, "tlsengine.parseClientHello: cipher_suite", err)
		}
		ch.CipherSuites = append(ch.CipherSuites, s)
	}
	if _, err := l.readVec8(); err != nil {
		return ch, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseClientHello: compression_methods", err)
	}
	exts, err := parseExtensionList(l)
	if err != nil {
		return ch, err
	}
	ch.Extensions = exts
	return ch, nil
}

// ServerHello is RFC 8446 §4.1.3's fields, minus the TLS 1.2-compatibility
// downgrade sentinels this engine never emits or checks for.
type ServerHello struct {
	Random            [32]byte
	SessionIDEcho     []byte
	CipherSuite       uint16
	Extensions        []Extension
}

func (sh ServerHello) marshal() []byte {
	w := &lenWriter{}
	w.writeUint16(legacyVersion)
	w.writeRaw(sh.Random[:])
	w.writeVec8(sh.SessionIDEcho)
	w.writeUint16(sh.CipherSuite)
	w.writeUint8(0x00) // legacy_compression_method
	w.writeRaw(buildExtensionList(sh.Extensions))
	return w.bytes()
}

func parseServerHello(body []byte) (ServerHello, error) {
	var sh ServerHello
	l := newLenBuf(body)
	if _, err := l.readUint16(); err != nil {
		return sh, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseServerHello: version", err)
	}
	random, err := l.readN(32)
	if err != nil {
		return sh, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseServerHello: random", err)
	}
	copy(sh.Random[:], random)
	sid, err := l.readVec8()
	if err != nil {
		return sh, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseServerHello: session_id_echo", err)
	}
	sh.SessionIDEcho = sid
	cs, err := l.readUint16()
	if err != nil {
		return sh, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseServerHello: cipher_suite", err)
	}
	sh.CipherSuite = cs
	if _, err := l.readUint8(); err != nil {
		return sh, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseServerHello: compression_method", err)
	}
	exts, err := parseExtensionList(l)
	if err != nil {
		return sh, err
	}
	sh.Extensions = exts
	return sh, nil
}

// EncryptedExtensions carries the remainder of the ServerHello's
// extensions once the handshake keys are available (RFC 8446 §4.3.1).
type EncryptedExtensions struct {
	Extensions []Extension
}

func (ee EncryptedExtensions) marshal() []byte { return buildExtensionList(ee.Extensions) }

func parseEncryptedExtensions(body []byte) (EncryptedExtensions, error) {
	exts, err := parseExtensionList(newLenBuf(body))
	if err != nil {
		return EncryptedExtensions{}, err
	}
	return EncryptedExtensions{Extensions: exts}, nil
}

// CertificateEntry is one entry of a Certificate message's cert chain.
// Certificate parsing/construction is carried here only to keep the TLS
// transcript correct; X.509 verification is out of scope (§1) and is not
// performed by this engine.
type CertificateEntry struct {
	Data       []byte
	Extensions []Extension
}

type Certificate struct {
	RequestContext []byte
	Entries        []CertificateEntry
}

func (c Certificate) marshal() []byte {
	w := &lenWriter{}
	w.writeVec8(c.RequestContext)
	list := &lenWriter{}
	for _, e := range c.Entries {
		list.writeVec24(e.Data)
		list.writeRaw(buildExtensionList(e.Extensions))
	}
	w.writeVec24(list.bytes())
	return w.bytes()
}

func parseCertificate(body []byte) (Certificate, error) {
	var c Certificate
	l := newLenBuf(body)
	ctx, err := l.readVec8()
	if err != nil {
		return c, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseCertificate: context", err)
	}
	c.RequestContext = ctx
	listRaw, err := l.readVec24()
	if err != nil {
		return c, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseCertificate: list", err)
	}
	sub := newLenBuf(listRaw)
	for sub.remaining() > 0 {
		data, err := sub.readVec24()
		if err != nil {
			return c, protoerr.Wrap(protoerr.Malformed, "tlsengine.parseCertificate: entry data", err)
		}
		exts, err := parseExtensionList(sub)
		if err != nil {
			return c, err
		}
		c.Entries = append(c.Entries, CertificateEntry{Data: data, Extensions: exts})
	}
	return c, nil
}

// CertificateVerify carries a signature over the transcript; this engine
// transcribes it but, per the X.509/signature verification being an
// external concern (§1, §6), never checks the signature itself.
type CertificateVerify struct {
	Algorithm uint16
	Signature []byte
}

func (cv CertificateVerify) marshal() []byte {
	w := &lenWriter{}
	w.writeUint16(cv.Algorithm)
	w.writeVec16(cv.Signature)
	return w.bytes()
}

func parseCertificateVerify(body []byte) (CertificateVerify, error) {
	var cv CertificateVerify
	l := newLenBuf(body)
	alg, err := l.readUint16()
	if err != nil {
		return cv, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseCertificateVerify: algorithm", err)
	}
	cv.Algorithm = alg
	sig, err := l.readVec16()
	if err != nil {
		return cv, protoerr.Wrap(protoerr.Truncated, "tlsengine.parseCertificateVerify: signature", err)
	}
	cv.Signature = sig
	return cv, nil
}

// Finished carries the Finished MAC (RFC 8446 §4.4.4); the body *is* the
// verify_data, no further framing.
type Finished struct {
	VerifyData []byte
}

func (f Finished) marshal() []byte { return f.VerifyData }

func parseFinished(body []byte) Finished { return Finished{VerifyData: body} }

// NewSessionTicket is sent by the server after the handshake completes;
// this engine emits a structurally valid but inert stub (no resumption
// support, per the Non-goals around 0-RTT).
type NewSessionTicket struct {
	LifetimeSeconds uint32
	AgeAdd          uint32
	Nonce           []byte
	Ticket          []byte
}

func (t NewSessionTicket) marshal() []byte {
	w := &lenWriter{}
	var life [4]byte
	life[0], life[1], life[2], life[3] = byte(t.LifetimeSeconds>>24), byte(t.LifetimeSeconds>>16), byte(t.LifetimeSeconds>>8), byte(t.LifetimeSeconds)
	w.writeRaw(life[:])
	var age [4]byte
	age[0], age[1], age[2], age[3] = byte(t.AgeAdd>>24), byte(t.AgeAdd>>16), byte(t.AgeAdd>>8), byte(t.AgeAdd)
	w.writeRaw(age[:])
	w.writeVec8(t.Nonce)
	w.writeVec16(t.Ticket)
	w.writeRaw(buildExtensionList(nil))
	return w.bytes()
}
