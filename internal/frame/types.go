// Package frame implements parsing and building of the QUIC frame types
// this implementation handles (§4.4): PADDING, PING, ACK, RESET_STREAM,
// STOP_SENDING, CRYPTO, NEW_TOKEN, the eight STREAM variants,
// MAX_STREAM_DATA, STREAM_DATA_BLOCKED, NEW_CONNECTION_ID,
// HANDSHAKE_DONE and CONNECTION_CLOSE.
package frame

// Type is a frame's wire type, the variable-length integer that opens
// every frame.
type Type uint64

const (
	TypePadding            Type = 0x00
	TypePing               Type = 0x01
	TypeAck                Type = 0x02
	TypeAckECN             Type = 0x03
	TypeResetStream        Type = 0x04
	TypeStopSending        Type = 0x05
	TypeCrypto             Type = 0x06
	TypeNewToken           Type = 0x07
	TypeStreamBase         Type = 0x08 // 0x08-0x0f, low 3 bits are OFF/LEN/FIN
	TypeStreamMax          Type = 0x0f
	TypeMaxStreamData      Type = 0x11
	TypeStreamDataBlocked  Type = 0x15
	TypeNewConnectionID    Type = 0x18
	TypeConnectionClose    Type = 0x1c
	TypeConnectionCloseApp Type = 0x1d
	TypeHandshakeDone      Type = 0x1e

	// maxKnownType is the highest type value this implementation
	// recognizes; anything at or above it but not individually listed
	// is an unknown type and, per §4.4, a fatal ProtocolViolation.
	maxKnownType Type = 0x1e
)

// Stream frame type low-bit flags (RFC 9000 §19.8).
const (
	streamBitOff = 0x04
	streamBitLen = 0x02
	streamBitFin = 0x01
)

// Frame is implemented by every concrete frame type.
type Frame interface {
	FrameType() Type
}

type PaddingFrame struct{ Length int }

func (PaddingFrame) FrameType() Type { return TypePadding }

type PingFrame struct{}

func (PingFrame) FrameType() Type { return TypePing }

type AckRange struct {
	Gap    uint64
	Length uint64
}

type AckFrame struct {
	LargestAcked  uint64
	AckDelay      uint64
	FirstAckRange uint64
	Ranges        []AckRange
}

func (AckFrame) FrameType() Type { return TypeAck }

type ResetStreamFrame struct {
	StreamID  uint64
	ErrorCode uint64
	FinalSize uint64
}

func (ResetStreamFrame) FrameType() Type { return TypeResetStream }

type StopSendingFrame struct {
	StreamID  uint64
	ErrorCode uint64
}

func (StopSendingFrame) FrameType() Type { return TypeStopSending }

type CryptoFrame struct {
	Offset uint64
	Data   []byte
}

func (CryptoFrame) FrameType() Type { return TypeCrypto }

type NewTokenFrame struct {
	Token []byte
}

func (NewTokenFrame) FrameType() Type { return TypeNewToken }

type StreamFrame struct {
	StreamID uint64
	Offset   uint64
	Data     []byte
	Fin      bool
	HasLen   bool // whether this fragment carried an explicit length (vs. extending to end of packet)
}

func (StreamFrame) FrameType() Type { return TypeStreamBase }

type MaxStreamDataFrame struct {
	StreamID uint64
	MaxData  uint64
}

func (MaxStreamDataFrame) FrameType() Type { return TypeMaxStreamData }

type StreamDataBlockedFrame struct {
	StreamID  uint64
	MaxData   uint64
}

func (StreamDataBlockedFrame) FrameType() Type { return TypeStreamDataBlocked }

type NewConnectionIDFrame struct {
	SequenceNumber      uint64
	RetirePriorTo       uint64
	ConnectionID        []byte
	StatelessResetToken [16]byte
}

func (NewConnectionIDFrame) FrameType() Type { return TypeNewConnectionID }

type HandshakeDoneFrame struct{}

func (HandshakeDoneFrame) FrameType() Type { return TypeHandshakeDone }

type ConnectionCloseFrame struct {
	ErrorCode    uint64
	FrameType_   uint64 // 0 if Application-level (TypeConnectionCloseApp)
	IsApp        bool
	ReasonPhrase string
}

func (ConnectionCloseFrame) FrameType() Type { return TypeConnectionClose }

// IsAckEliciting reports whether a frame of type t requires the receiver
// to send an ACK (§4.4): every frame except PADDING, ACK (both forms) and
// CONNECTION_CLOSE.
func IsAckEliciting(t Type) bool {
	switch t {
	case TypePadding, TypeAck, TypeAckECN, TypeConnectionClose, TypeConnectionCloseApp:
		return false
	default:
		return true
	}
}

// IsStreamType reports whether t is one of the eight STREAM frame
// codepoints (0x08-0x0f).
func IsStreamType(t Type) bool { return t >= TypeStreamBase && t <= TypeStreamMax }
