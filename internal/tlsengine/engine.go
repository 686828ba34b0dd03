// Package tlsengine implements the embedded TLS 1.3 handshake (RFC 8446,
// as profiled for QUIC by RFC 9001): a pair of hard-coded state tables,
// message framing and transcript hashing, the quic_transport_parameters
// extension, and the Finished MAC (§4.6).
//
// Certificate chain and CertificateVerify signature validation are
// explicitly out of scope (§1): this engine transcribes both messages
// for the handshake transcript but never checks the signature or chain,
// leaving that to an external verifier the caller may run out-of-band.
package tlsengine

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"

	"github.com/zhangjinde/go-fdo-quic/internal/flow"
	"github.com/zhangjinde/go-fdo-quic/internal/keys"
	"github.com/zhangjinde/go-fdo-quic/internal/packet"
	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
)

// Role distinguishes the client and server state tables.
type Role int

const (
	Client Role = iota
	Server
)

// CertificateProvider supplies the server's certificate chain and a
// CertificateVerify signature. The default used by NewServerEngine when
// none is given emits a structurally valid but empty stub chain, since
// this engine never validates it (§1).
type CertificateProvider interface {
	Certificate() Certificate
	Sign(transcriptHash []byte) CertificateVerify
}

type stubCertificateProvider struct{}

func (stubCertificateProvider) Certificate() Certificate { return Certificate{} }
func (stubCertificateProvider) Sign([]byte) CertificateVerify {
	return CertificateVerify{Algorithm: 0x0804, Signature: make([]byte, 64)}
}

// Engine drives one side of the embedded TLS handshake. It is not safe
// for concurrent use, matching the connection driver's single-threaded
// cooperative model (§5).
type Engine struct {
	role  Role
	state int
	table []stateEntry

	hash  crypto.Hash
	suite keys.Suite

	transcript *Transcript

	kex        KeyExchange
	localPriv  []byte
	localPub   []byte
	peerPub    []byte

	ownParams TransportParameters
	PeerParams TransportParameters

	certs CertificateProvider

	inbuf map[packet.Level][]byte

	traversed map[MessageType]bool

	handshakeSecrets *keys.HandshakeSecrets
	appSecrets       *keys.ApplicationSecrets
	peerFinishedMAC  []byte

	pending []PendingMessage
}

// PendingMessage is one handshake message the engine has produced and
// that the caller must wrap in a CRYPTO frame (or frames, if split) at
// the given encryption level.
type PendingMessage struct {
	Level packet.Level
	Data  []byte
}

// NewClientEngine constructs an Engine that will drive the client side
// of a handshake, offering ownParams as its transport parameters.
func NewClientEngine(ownParams TransportParameters, kex KeyExchange) *Engine {
	return &Engine{
		role:      Client,
		table:     clientTable,
		hash:      crypto.SHA256,
		suite:     keys.InitialSuite,
		kex:       kex,
		ownParams: ownParams,
		inbuf:     make(map[packet.Level][]byte),
		traversed: make(map[MessageType]bool),
	}
}

// NewServerEngine constructs an Engine that will drive the server side.
// A nil certs uses a stub provider (§1: certificate loading is out of
// scope for this library).
func NewServerEngine(ownParams TransportParameters, kex KeyExchange, certs CertificateProvider) *Engine {
	if certs == nil {
		certs = stubCertificateProvider{}
	}
	return &Engine{
		role:       Server,
		table:      serverTable,
		hash:       crypto.SHA256,
		suite:      keys.InitialSuite,
		kex:        kex,
		ownParams:  ownParams,
		certs:      certs,
		transcript: NewTranscript(crypto.SHA256),
		inbuf:      make(map[packet.Level][]byte),
		traversed:  make(map[MessageType]bool),
	}
}

// Done reports whether the handshake has reached its terminal state.
func (e *Engine) Done() bool { return e.table[e.state].flow == dirFinished }

// NegotiatedSuite returns the cipher suite this handshake settled on.
func (e *Engine) NegotiatedSuite() keys.Suite { return e.suite }

// HandshakeTrafficSecrets returns the client/server handshake traffic
// secrets, available once the peer's first handshake-level message has
// been processed (ServerHello on the client, ClientHello+ServerHello
// built on the server).
func (e *Engine) HandshakeTrafficSecrets() *keys.HandshakeSecrets { return e.handshakeSecrets }

// ApplicationTrafficSecrets returns the 1-RTT traffic secrets, available
// once the transcript reaches the server's Finished message.
func (e *Engine) ApplicationTrafficSecrets() *keys.ApplicationSecrets { return e.appSecrets }

// Feed appends newly available, already-contiguous handshake bytes at
// level to that level's input buffer (the connection driver hands this
// the output of the CRYPTO-frame reassembler).
func (e *Engine) Feed(level packet.Level, data []byte) {
	e.inbuf[level] = append(e.inbuf[level], data...)
}

// TakePending returns and clears the handshake messages built since the
// last call.
func (e *Engine) TakePending() []PendingMessage {
	out := e.pending
	e.pending = nil
	return out
}

// Advance runs the state machine as far as it can go without more input:
// it writes every message the current states call for and reads every
// complete message already buffered for the states that expect one,
// returning WantRead when input runs out, Drop when a duplicate message
// is discarded, or Finish at the terminal state.
func (e *Engine) Advance() (flow.Result, error) {
	for {
		entry := e.table[e.state]
		switch entry.flow {
		case dirNothing:
			e.state = entry.next
		case dirFinished:
			return flow.Finish, nil
		case dirWriting:
			if err := e.writeState(entry); err != nil {
				return flow.Error, err
			}
			e.state = entry.next
		case dirReading:
			res, err := e.readState(entry)
			if err != nil {
				return flow.Error, err
			}
			if res == flow.WantRead {
				return flow.WantRead, nil
			}
			if res == flow.Drop {
				return flow.Drop, nil
			}
			e.state = entry.next
		default:
			return flow.Error, protoerr.New(protoerr.Internal, "tlsengine.Advance: bad state")
		}
	}
}

func (e *Engine) writeState(entry stateEntry) error {
	body, err := e.buildOutgoing(entry.msgType)
	if err != nil {
		return err
	}
	framed := FrameMessage(entry.msgType, body)
	e.transcript.Write(framed)
	e.pending = append(e.pending, PendingMessage{Level: entry.level, Data: framed})
	e.traversed[entry.msgType] = true

	if e.role == Server && entry.msgType == MsgServerHello {
		// Transcript now covers exactly ClientHello..ServerHello, the
		// same point at which the client derives these secrets from
		// its read path (onServerHello).
		shared, err := e.kex.Shared(e.localPriv, e.peerPub)
		if err != nil {
			return protoerr.Wrap(protoerr.Internal, "tlsengine.writeState: shared secret", err)
		}
		hs, err := keys.DeriveHandshakeSecrets(e.hash, shared, e.transcript.Sum())
		if err != nil {
			return protoerr.Wrap(protoerr.Internal, "tlsengine.writeState: handshake secrets", err)
		}
		e.handshakeSecrets = hs
	}
	if e.role == Server && entry.msgType == MsgFinished {
		// Transcript now covers ClientHello..ServerFinished, exactly
		// what the application traffic secrets are derived over.
		app, err := keys.DeriveApplicationSecrets(e.hash, e.handshakeSecrets.HandshakeSecret, e.transcript.Sum())
		if err != nil {
			return protoerr.Wrap(protoerr.Internal, "tlsengine.writeState: application secrets", err)
		}
		e.appSecrets = app
	}
	return nil
}

func (e *Engine) readState(entry stateEntry) (flow.Result, error) {
	buf := e.inbuf[entry.level]
	if len(buf) < 4 {
		return flow.WantRead, nil
	}
	t, body, consumed, err := ParseMessage(buf)
	if err != nil {
		return flow.WantRead, nil
	}

	if t != entry.msgType {
		if e.traversed[t] {
			e.inbuf[entry.level] = buf[consumed:]
			return flow.Drop, nil
		}
		return flow.Error, protoerr.New(protoerr.UnexpectedMessage, "tlsengine.readState")
	}

	framed := buf[:consumed]

	if t == MsgFinished {
		if err := e.verifyPeerFinished(body); err != nil {
			return flow.Error, err
		}
	}

	e.transcript.Write(framed)
	e.inbuf[entry.level] = buf[consumed:]
	e.traversed[t] = true

	if err := e.handleIncoming(t, body); err != nil {
		return flow.Error, err
	}
	return flow.Continue, nil
}

func (e *Engine) buildOutgoing(t MessageType) ([]byte, error) {
	switch e.role {
	case Client:
		switch t {
		case MsgClientHello:
			return e.buildClientHello()
		case MsgFinished:
			return e.buildClientFinished()
		}
	case Server:
		switch t {
		case MsgServerHello:
			return e.buildServerHello()
		case MsgEncryptedExtensions:
			return e.buildEncryptedExtensions(), nil
		case MsgCertificate:
			return e.certs.Certificate().marshal(), nil
		case MsgCertificateVerify:
			return e.certs.Sign(e.transcript.Sum()).marshal(), nil
		case MsgFinished:
			return e.buildServerFinished()
		case MsgNewSessionTicket:
			return NewSessionTicket{Ticket: []byte{}, Nonce: []byte{0}}.marshal(), nil
		}
	}
	return nil, protoerr.New(protoerr.Internal, "tlsengine.buildOutgoing: unhandled message type")
}

func (e *Engine) handleIncoming(t MessageType, body []byte) error {
	switch e.role {
	case Client:
		switch t {
		case MsgServerHello:
			return e.onServerHello(body)
		case MsgEncryptedExtensions:
			return e.onEncryptedExtensions(body)
		case MsgCertificate, MsgCertificateVerify:
			return nil
		case MsgFinished:
			return e.onServerFinished()
		}
	case Server:
		switch t {
		case MsgClientHello:
			return e.onClientHello(body)
		case MsgFinished:
			return nil
		}
	}
	return nil
}

func (e *Engine) buildClientHello() ([]byte, error) {
	priv, pub, err := e.kex.Generate()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Internal, "tlsengine.buildClientHello", err)
	}
	e.localPriv, e.localPub = priv, pub

	var random [32]byte
	if _, err := rand.Read(random[:]); err != nil {
		return nil, protoerr.Wrap(protoerr.Internal, "tlsengine.buildClientHello: random", err)
	}

	ch := ClientHello{
		Random:       random,
		CipherSuites: []uint16{uint16(keys.TLS_AES_128_GCM_SHA256)},
		Extensions: []Extension{
			buildKeyShareClientExtension([]KeyShareEntry{{Group: NamedGroupX25519, KeyExchange: pub}}),
			{Type: ExtensionType(TransportParametersExtensionType), Data: e.ownParams.Build()},
		},
	}
	e.transcript = NewTranscript(e.hash)
	return ch.marshal(), nil
}

func (e *Engine) onServerHello(body []byte) error {
	sh, err := parseServerHello(body)
	if err != nil {
		return err
	}
	ksExt, ok := findExtension(sh.Extensions, ExtKeyShare)
	if !ok {
		return protoerr.New(protoerr.MissingExtension, "tlsengine.onServerHello: key_share")
	}
	entry, err := parseKeyShareServerExtension(ksExt.Data)
	if err != nil {
		return err
	}
	e.peerPub = entry.KeyExchange

	shared, err := e.kex.Shared(e.localPriv, e.peerPub)
	if err != nil {
		return protoerr.Wrap(protoerr.Internal, "tlsengine.onServerHello: shared secret", err)
	}
	hs, err := keys.DeriveHandshakeSecrets(e.hash, shared, e.transcript.Sum())
	if err != nil {
		return protoerr.Wrap(protoerr.Internal, "tlsengine.onServerHello: handshake secrets", err)
	}
	e.handshakeSecrets = hs
	return nil
}

func (e *Engine) onEncryptedExtensions(body []byte) error {
	ee, err := parseEncryptedExtensions(body)
	if err != nil {
		return err
	}
	tpExt, err := requireExtension(ee.Extensions, ExtQUICTransportParams, CtxEncryptedExtensions)
	if err != nil {
		return err
	}
	tp, err := ParseTransportParameters(tpExt.Data)
	if err != nil {
		return err
	}
	e.PeerParams = tp
	return nil
}

func (e *Engine) onServerFinished() error {
	app, err := keys.DeriveApplicationSecrets(e.hash, e.handshakeSecrets.HandshakeSecret, e.transcript.Sum())
	if err != nil {
		return protoerr.Wrap(protoerr.Internal, "tlsengine.onServerFinished: application secrets", err)
	}
	e.appSecrets = app
	return nil
}

func (e *Engine) buildClientFinished() ([]byte, error) {
	fk, err := keys.FinishedKey(e.hash, e.handshakeSecrets.Client)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Internal, "tlsengine.buildClientFinished", err)
	}
	mac := computeFinishedMAC(e.hash, fk, e.transcript.Sum())
	return Finished{VerifyData: mac}.marshal(), nil
}

func (e *Engine) onClientHello(body []byte) error {
	ch, err := parseClientHello(body)
	if err != nil {
		return err
	}
	ksExt, ok := findExtension(ch.Extensions, ExtKeyShare)
	if !ok {
		return protoerr.New(protoerr.MissingExtension, "tlsengine.onClientHello: key_share")
	}
	entries, err := parseKeyShareClientExtension(ksExt.Data)
	if err != nil {
		return err
	}
	var clientPub []byte
	for _, en := range entries {
		if en.Group == NamedGroupX25519 {
			clientPub = en.KeyExchange
			break
		}
	}
	if clientPub == nil {
		return protoerr.New(protoerr.MissingExtension, "tlsengine.onClientHello: no x25519 share")
	}
	e.peerPub = clientPub

	tpExt, err := requireExtension(ch.Extensions, ExtQUICTransportParams, CtxClientHello)
	if err != nil {
		return err
	}
	tp, err := ParseTransportParameters(tpExt.Data)
	if err != nil {
		return err
	}
	e.PeerParams = tp

	priv, pub, err := e.kex.Generate()
	if err != nil {
		return protoerr.Wrap(protoerr.Internal, "tlsengine.onClientHello: key gen", err)
	}
	e.localPriv, e.localPub = priv, pub

	// The generic read path (readState) already wrote the raw ClientHello
	// bytes into the transcript before calling this handler, so nothing
	// further is needed here.
	return nil
}

func (e *Engine) buildServerHello() ([]byte, error) {
	var random [32]byte
	if _, err := rand.Read(random[:]); err != nil {
		return nil, protoerr.Wrap(protoerr.Internal, "tlsengine.buildServerHello: random", err)
	}
	sh := ServerHello{
		Random:      random,
		CipherSuite: uint16(keys.TLS_AES_128_GCM_SHA256),
		Extensions: []Extension{
			buildKeyShareServerExtension(KeyShareEntry{Group: NamedGroupX25519, KeyExchange: e.localPub}),
		},
	}
	return sh.marshal(), nil
}

func (e *Engine) buildEncryptedExtensions() []byte {
	return EncryptedExtensions{
		Extensions: []Extension{
			{Type: ExtensionType(TransportParametersExtensionType), Data: e.ownParams.Build()},
		},
	}.marshal()
}

func (e *Engine) buildServerFinished() ([]byte, error) {
	fk, err := keys.FinishedKey(e.hash, e.handshakeSecrets.Server)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Internal, "tlsengine.buildServerFinished", err)
	}
	mac := computeFinishedMAC(e.hash, fk, e.transcript.Sum())
	return Finished{VerifyData: mac}.marshal(), nil
}

func (e *Engine) verifyPeerFinished(body []byte) error {
	f := parseFinished(body)
	var base []byte
	if e.role == Client {
		base = e.handshakeSecrets.Server
	} else {
		base = e.handshakeSecrets.Client
	}
	fk, err := keys.FinishedKey(e.hash, base)
	if err != nil {
		return protoerr.Wrap(protoerr.Internal, "tlsengine.verifyPeerFinished", err)
	}
	expect := computeFinishedMAC(e.hash, fk, e.transcript.Sum())
	if !hmac.Equal(expect, f.VerifyData) {
		return protoerr.New(protoerr.UnexpectedMessage, "tlsengine.verifyPeerFinished: MAC mismatch")
	}
	e.peerFinishedMAC = f.VerifyData
	return nil
}

func computeFinishedMAC(hash crypto.Hash, finishedKey, transcriptHash []byte) []byte {
	mac := hmac.New(hash.New, finishedKey)
	mac.Write(transcriptHash)
	return mac.Sum(nil)
}
