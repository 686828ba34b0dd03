package tlsengine

import "github.com/zhangjinde/go-fdo-quic/internal/packet"

// direction is the flow direction a state's hard-coded table entry
// declares (§4.6): whether this side is expected to read a message, write
// one, do neither (Advance moves straight on to the entry's next state),
// or has reached the terminal state.
type direction int

const (
	dirNothing direction = iota
	dirReading
	dirWriting
	dirFinished
)

// stateEntry is one row of the per-role hard-coded state table: the flow
// direction, the handshake message type expected/produced in this state,
// the encryption level the outgoing message (if any) must be emitted
// under, and the next state once this one's work completes.
type stateEntry struct {
	flow    direction
	msgType MessageType
	level   packet.Level
	next    int
}

// Client state indices.
const (
	cInitial = iota
	cWriteClientHello
	cReadServerHello
	cReadEncryptedExtensions
	cReadCertificate
	cReadCertVerify
	cReadFinished
	cWriteFinished
	cHandshakeDone
)

var clientTable = []stateEntry{
	cInitial:                 {flow: dirNothing, next: cWriteClientHello},
	cWriteClientHello:        {flow: dirWriting, msgType: MsgClientHello, level: packet.Initial, next: cReadServerHello},
	cReadServerHello:         {flow: dirReading, msgType: MsgServerHello, level: packet.Initial, next: cReadEncryptedExtensions},
	cReadEncryptedExtensions: {flow: dirReading, msgType: MsgEncryptedExtensions, level: packet.Handshake, next: cReadCertificate},
	cReadCertificate:         {flow: dirReading, msgType: MsgCertificate, level: packet.Handshake, next: cReadCertVerify},
	cReadCertVerify:          {flow: dirReading, msgType: MsgCertificateVerify, level: packet.Handshake, next: cReadFinished},
	cReadFinished:            {flow: dirReading, msgType: MsgFinished, level: packet.Handshake, next: cWriteFinished},
	cWriteFinished:           {flow: dirWriting, msgType: MsgFinished, level: packet.Handshake, next: cHandshakeDone},
	cHandshakeDone:           {flow: dirFinished},
}

// Server state indices.
const (
	sInitial = iota
	sReadClientHello
	sWriteServerHello
	sWriteEncryptedExtensions
	sWriteCertificate
	sWriteCertVerify
	sWriteFinished
	sReadFinished
	sWriteNewSessionTicket
	sHandshakeDone
)

var serverTable = []stateEntry{
	sInitial:                 {flow: dirNothing, next: sReadClientHello},
	sReadClientHello:         {flow: dirReading, msgType: MsgClientHello, level: packet.Initial, next: sWriteServerHello},
	sWriteServerHello:        {flow: dirWriting, msgType: MsgServerHello, level: packet.Initial, next: sWriteEncryptedExtensions},
	sWriteEncryptedExtensions: {flow: dirWriting, msgType: MsgEncryptedExtensions, level: packet.Handshake, next: sWriteCertificate},
	sWriteCertificate:        {flow: dirWriting, msgType: MsgCertificate, level: packet.Handshake, next: sWriteCertVerify},
	sWriteCertVerify:         {flow: dirWriting, msgType: MsgCertificateVerify, level: packet.Handshake, next: sWriteFinished},
	sWriteFinished:           {flow: dirWriting, msgType: MsgFinished, level: packet.Handshake, next: sReadFinished},
	sReadFinished:            {flow: dirReading, msgType: MsgFinished, level: packet.Handshake, next: sWriteNewSessionTicket},
	sWriteNewSessionTicket:   {flow: dirWriting, msgType: MsgNewSessionTicket, level: packet.Application, next: sHandshakeDone},
	sHandshakeDone:           {flow: dirFinished},
}
