package tlsengine

import (
	"encoding/binary"

	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
)

// MessageType is a TLS 1.3 handshake message type (RFC 8446 §4).
type MessageType uint8

const (
	MsgClientHello        MessageType = 1
	MsgServerHello        MessageType = 2
	MsgNewSessionTicket   MessageType = 4
	MsgEncryptedExtensions MessageType = 8
	MsgCertificate        MessageType = 11
	MsgCertificateVerify  MessageType = 15
	MsgFinished           MessageType = 20
)

// FrameMessage wraps a handshake message body in the type(1)|length(3)
// header every TLS 1.3 handshake message carries on the wire (§4.6).
func FrameMessage(t MessageType, body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[0] = byte(t)
	putUint24(out[1:4], len(body))
	copy(out[4:], body)
	return out
}

// ParseMessage reads one framed handshake message from the front of buf.
// It returns the message type, its body, and how many bytes were
// consumed, so a caller holding a larger reassembled buffer can loop.
func ParseMessage(buf []byte) (t MessageType, body []byte, consumed int, err error) {
	if len(buf) < 4 {
		return 0, nil, 0, protoerr.New(protoerr.Truncated, "tlsengine.ParseMessage: header")
	}
	t = MessageType(buf[0])
	length := getUint24(buf[1:4])
	if len(buf) < 4+length {
		return 0, nil, 0, protoerr.New(protoerr.Truncated, "tlsengine.ParseMessage: body")
	}
	return t, buf[4 : 4+length], 4 + length, nil
}

func putUint24(b []byte, v int) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func getUint24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// lenBuf is a tiny cursor over a byte slice using TLS-style fixed-width
// (1/2/3-byte) length prefixes, as distinct from QUIC's varint prefixes
// used elsewhere in this module.
type lenBuf struct {
	b   []byte
	off int
}

func newLenBuf(b []byte) *lenBuf { return &lenBuf{b: b} }

func (l *lenBuf) remaining() int { return len(l.b) - l.off }

func (l *lenBuf) readN(n int) ([]byte, error) {
	if l.remaining() < n {
		return nil, protoerr.New(protoerr.Truncated, "tlsengine.lenBuf.readN")
	}
	v := l.b[l.off : l.off+n]
	l.off += n
	return v, nil
}

func (l *lenBuf) readUint8() (uint8, error) {
	v, err := l.readN(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (l *lenBuf) readUint16() (uint16, error) {
	v, err := l.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(v), nil
}

func (l *lenBuf) readUint24() (int, error) {
	v, err := l.readN(3)
	if err != nil {
		return 0, err
	}
	return getUint24(v), nil
}

// readVec8/16/24 read a length-prefixed (1/2/3-byte length) opaque vector.
func (l *lenBuf) readVec8() ([]byte, error) {
	n, err := l.readUint8()
	if err != nil {
		return nil, err
	}
	return l.readN(int(n))
}

func (l *lenBuf) readVec16() ([]byte, error) {
	n, err := l.readUint16()
	if err != nil {
		return nil, err
	}
	return l.readN(int(n))
}

func (l *lenBuf) readVec24() ([]byte, error) {
	n, err := l.readUint24()
	if err != nil {
		return nil, err
	}
	return l.readN(n)
}

type lenWriter struct{ b []byte }

func (w *lenWriter) bytes() []byte { return w.b }

func (w *lenWriter) writeUint8(v uint8)   { w.b = append(w.b, v) }
func (w *lenWriter) writeUint16(v uint16) { w.b = binary.BigEndian.AppendUint16(w.b, v) }
func (w *lenWriter) writeUint24(v int) {
	var tmp [3]byte
	putUint24(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}
func (w *lenWriter) writeRaw(b []byte) { w.b = append(w.b, b...) }

func (w *lenWriter) writeVec8(b []byte)  { w.writeUint8(uint8(len(b))); w.writeRaw(b) }
func (w *lenWriter) writeVec16(b []byte) { w.writeUint16(uint16(len(b))); w.writeRaw(b) }
func (w *lenWriter) writeVec24(b []byte) { w.writeUint24(len(b)); w.writeRaw(b) }
