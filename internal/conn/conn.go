// Package conn implements the connection state machine (§4.8): the
// do-while driver loop that demultiplexes datagrams by encryption level,
// decrypts and parses them, feeds CRYPTO data to the TLS engine, arms and
// builds ACKs, packs and sends outbound packets, and exposes application
// stream I/O once the handshake completes. It is the glue between
// internal/tlsengine, internal/frame, internal/stream, internal/packet and
// internal/keys, grounded on original_source/quic/statem.c's outer driver
// loop and the per-connection accept loops in the teacher's own command
// tree (cmd/rendezvous.go, cmd/owner.go).
package conn

import (
	"crypto/rand"

	"github.com/zhangjinde/go-fdo-quic/internal/flow"
	"github.com/zhangjinde/go-fdo-quic/internal/frame"
	"github.com/zhangjinde/go-fdo-quic/internal/keys"
	"github.com/zhangjinde/go-fdo-quic/internal/pacer"
	"github.com/zhangjinde/go-fdo-quic/internal/packet"
	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
	"github.com/zhangjinde/go-fdo-quic/internal/stream"
	"github.com/zhangjinde/go-fdo-quic/internal/tlsengine"
	"github.com/zhangjinde/go-fdo-quic/internal/wire"
)

// State is the connection's coarse lifecycle state (§4.8).
type State int

const (
	Initial State = iota
	Handshake
	HandshakeDone
	Closing
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case Handshake:
		return "handshake"
	case HandshakeDone:
		return "handshake_done"
	case Closing:
		return "closing"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Port is the datagram transport this connection drives (§6): byte
// oriented and datagram preserving. Recv returns wouldBlock when no
// datagram is currently available; Send returns wouldBlock when the
// caller should retry later. Neither ever blocks the calling goroutine.
type Port interface {
	Recv(buf []byte) (n int, wouldBlock bool, err error)
	Send(datagram []byte) (wouldBlock bool, err error)
}

// recvBufSize is comfortably above any QUIC v1 datagram this
// implementation sends and above the config package's default
// max_udp_payload_size of 1452.
const recvBufSize = 2048

// defaultMaxChunk is the frame-payload budget used to size CRYPTO/STREAM
// splitting (§4.5): MSS minus this implementation's worst-case per-frame
// fixed overhead, deliberately conservative rather than tracking the
// path MTU precisely.
const defaultMaxChunk = 1024

type levelState struct {
	sendKeys, recvKeys *keys.DirectionalKeys
	ready              bool

	nextSendPN uint64

	haveLargestRecvPN bool
	largestRecvPN     uint64

	ack frame.AckState

	cryptoRecv       stream.Reassembler
	cryptoSendOffset uint64
}

// Connection is one QUIC connection, driven cooperatively by repeated
// calls to Act (§5: single-threaded cooperative, no internal scheduler).
type Connection struct {
	isServer bool
	state    State

	localCID []byte
	peerCID  []byte

	ownParams tlsengine.TransportParameters

	engine  *tlsengine.Engine
	streams *stream.Manager

	levels [int(packet.Application) + 1]*levelState

	port Port

	pacer *pacer.Pacer

	outbound [][]byte

	pendingSends map[uint64]*pendingSend

	handshakeDoneSent bool

	closeErr error

	// statelessResetTokens accumulates the tokens this connection has
	// handed its peer via NEW_CONNECTION_ID (issueNewConnectionID), any of
	// which the peer may echo back verbatim in place of a real packet once
	// this connection state is gone (§4.3, §7, §10.3). A 1-RTT datagram
	// that fails to decrypt has its trailing 16 bytes compared against the
	// set (matchesStatelessReset), and a match moves the connection to
	// Draining. Matching across several connections sharing one port is
	// not done here (one Connection owns one Port).
	statelessResetTokens [][16]byte

	// nextCIDSequence is the sequence number this connection will assign
	// the next NEW_CONNECTION_ID frame it issues (§5.1.1).
	nextCIDSequence uint64
}

func newConnection(isServer bool, localCID []byte, ownParams tlsengine.TransportParameters, port Port) *Connection {
	c := &Connection{
		isServer:  isServer,
		state:     Initial,
		localCID:  localCID,
		ownParams: ownParams,
		port:      port,
		pacer:     pacer.Default(),
		streams:   stream.NewManager(isServer, ownParams.InitialMaxStreamsBidi, ownParams.InitialMaxStreamsUni),
	}
	for i := range c.levels {
		c.levels[i] = &levelState{}
	}
	return c
}

// NewClient constructs a client connection (new_client(ctx) in §3),
// generating a random initial destination connection ID and deriving its
// Initial-level keys immediately, since the client (unlike the server)
// chooses that DCID itself.
func NewClient(localCID []byte, ownParams tlsengine.TransportParameters, port Port) (*Connection, error) {
	c := newConnection(false, localCID, ownParams, port)
	c.engine = tlsengine.NewClientEngine(ownParams, tlsengine.X25519{})

	dcid := make([]byte, 8)
	if _, err := rand.Read(dcid); err != nil {
		return nil, protoerr.Wrap(protoerr.Internal, "conn.NewClient: dcid", err)
	}
	c.peerCID = dcid

	secrets := keys.DeriveInitial(dcid)
	if err := c.installLevelKeys(packet.Initial, keys.InitialSuite, secrets.Client, secrets.Server); err != nil {
		return nil, err
	}
	return c, nil
}

// NewServer constructs a server connection (new_server(ctx) in §3). Its
// Initial-level keys are not known yet: they are derived from the
// client's chosen DCID the first time an Initial packet is decoded
// (onFirstInitial).
func NewServer(localCID []byte, ownParams tlsengine.TransportParameters, certs tlsengine.CertificateProvider, port Port) *Connection {
	c := newConnection(true, localCID, ownParams, port)
	c.engine = tlsengine.NewServerEngine(ownParams, tlsengine.X25519{}, certs)
	return c
}

// State reports the connection's current lifecycle state.
func (c *Connection) State() State { return c.state }

// CloseError reports the error that drove the connection into Closing or
// Draining, if any.
func (c *Connection) CloseError() error { return c.closeErr }

// SetPacer replaces this connection's outbound pacer. Passing nil disables
// pacing entirely (every send is allowed immediately).
func (c *Connection) SetPacer(p *pacer.Pacer) { c.pacer = p }

// NegotiatedSuite reports the AEAD suite negotiated during the handshake.
// Only meaningful once the connection has reached at least Handshake.
func (c *Connection) NegotiatedSuite() keys.Suite { return c.engine.NegotiatedSuite() }

// StatelessResetTokens reports every token this connection has handed its
// peer so far (one per NEW_CONNECTION_ID issued). An outer demultiplexer
// matching an unrecognized datagram's trailing 16 bytes against these is
// the stateless-reset hook named in §9's Open Question; this library
// exposes the tokens but does not implement that demultiplexer itself.
func (c *Connection) StatelessResetTokens() [][16]byte { return c.statelessResetTokens }

func (c *Connection) installLevelKeys(level packet.Level, suite keys.Suite, clientSecret, serverSecret []byte) error {
	sendSecret, recvSecret := clientSecret, serverSecret
	if c.isServer {
		sendSecret, recvSecret = serverSecret, clientSecret
	}
	sendKeys, err := keys.DeriveDirectional(suite, sendSecret)
	if err != nil {
		return protoerr.Wrap(protoerr.Internal, "conn.installLevelKeys: send", err)
	}
	recvKeys, err := keys.DeriveDirectional(suite, recvSecret)
	if err != nil {
		return protoerr.Wrap(protoerr.Internal, "conn.installLevelKeys: recv", err)
	}
	ls := c.levels[level]
	ls.sendKeys = sendKeys
	ls.recvKeys = recvKeys
	ls.ready = true
	return nil
}

// Act runs one iteration of the driver loop described in §4.8: flush
// pending output, read and process at most one datagram, advance the TLS
// engine with any CRYPTO data that arrived, and arm/build ACKs. The
// caller loops on Next until receiving End (HandshakeDone reached),
// WantRead/WantWrite (retry once the port is ready), or Error/Stop.
func (c *Connection) Act() (flow.Result, error) {
	if c.state == Closed {
		return flow.Stop, nil
	}

	if res, err := c.flushOutbound(); err != nil || res == flow.WantWrite {
		return res, err
	}

	buf := make([]byte, recvBufSize)
	n, wouldBlock, err := c.port.Recv(buf)
	if err != nil {
		return flow.Error, err
	}

	if !wouldBlock {
		if procErr := c.processDatagram(buf[:n]); procErr != nil {
			c.fail(procErr)
			if _, ferr := c.flushOutbound(); ferr != nil {
				return flow.Error, ferr
			}
			return flow.Error, procErr
		}
	}

	// driveHandshake runs every iteration, not just after a successful
	// recv: the side that speaks first (the client's ClientHello) has
	// nothing to read yet, and either side may have TLS output queued up
	// from the datagram just processed.
	if c.state != HandshakeDone {
		if err := c.driveHandshake(); err != nil {
			c.fail(err)
			if _, ferr := c.flushOutbound(); ferr != nil {
				return flow.Error, ferr
			}
			return flow.Error, err
		}
	} else if err := c.flushStreamData(); err != nil {
		return flow.Error, err
	}

	if err := c.buildPendingACKs(); err != nil {
		return flow.Error, err
	}

	if res, err := c.flushOutbound(); err != nil || res == flow.WantWrite {
		return res, err
	}

	if wouldBlock {
		if c.state == HandshakeDone {
			return flow.End, nil
		}
		return flow.WantRead, nil
	}
	return flow.Next, nil
}

// Run repeatedly calls Act until the handshake completes (flow.End) or a
// fatal condition (flow.Error, flow.Stop) occurs; it does not retry on
// WantRead itself, since in production that means "yield to the event
// loop", but a loopback-backed connection pair in tests can simply call
// Run on each side in turn until both converge.
func (c *Connection) Run() (flow.Result, error) {
	for {
		res, err := c.Act()
		if err != nil {
			return res, err
		}
		switch res {
		case flow.End, flow.Stop, flow.WantRead, flow.WantWrite:
			return res, nil
		}
	}
}

func (c *Connection) flushOutbound() (flow.Result, error) {
	for len(c.outbound) > 0 {
		if !c.pacer.Allow() {
			return flow.WantWrite, nil
		}
		dg := c.outbound[0]
		wouldBlock, err := c.port.Send(dg)
		if err != nil {
			return flow.Error, err
		}
		if wouldBlock {
			return flow.WantWrite, nil
		}
		c.outbound = c.outbound[1:]
	}
	return flow.Next, nil
}

func (c *Connection) fail(err error) {
	if c.state == Closing || c.state == Draining || c.state == Closed {
		return
	}
	c.closeErr = err
	pe, ok := err.(*protoerr.Error)
	if ok && pe.Kind == protoerr.DecryptFailed {
		c.state = Draining
		return
	}
	c.state = Closing
	c.enqueueConnectionClose(pe)
}

func (c *Connection) enqueueConnectionClose(pe *protoerr.Error) {
	level := packet.Initial
	for l := packet.Application; l >= packet.Initial; l-- {
		if c.levels[l].ready {
			level = l
			break
		}
	}
	ls := c.levels[level]
	if !ls.ready {
		return
	}
	code := uint64(protoerr.Internal)
	reason := "internal error"
	if pe != nil {
		code = uint64(pe.Kind)
		reason = pe.Error()
	}
	w := wire.NewWriter()
	frame.Build(w, frame.ConnectionCloseFrame{ErrorCode: code, IsApp: false, ReasonPhrase: reason})
	if err := c.sendPacket(level, w.Bytes()); err != nil {
		// best effort: a failure to send CONNECTION_CLOSE does not
		// change the fact that the connection is already closing.
		return
	}
}
