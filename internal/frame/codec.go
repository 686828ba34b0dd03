package frame

import (
	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
	"github.com/zhangjinde/go-fdo-quic/internal/wire"
)

// handlerFlags mirror the original core's QUIC_FRAME_FLAGS_* bit field.
type handlerFlags int

const (
	flagNoBody handlerFlags = 1 << iota
	flagSplitEnable
)

type parserFunc func(r *wire.Reader, t Type) (Frame, error)

type frameEntry struct {
	flags  handlerFlags
	parser parserFunc
}

// handlers is the static frame dispatch table (§4.4, §9 "static dispatch
// tables"): one entry per known wire type, built once at package init and
// never mutated afterward.
var handlers = make(map[Type]frameEntry)

func register(t Type, flags handlerFlags, p parserFunc) {
	handlers[t] = frameEntry{flags: flags, parser: p}
}

func init() {
	register(TypePadding, flagNoBody, nil)
	register(TypePing, flagNoBody, parsePing)
	register(TypeAck, 0, parseAck)
	register(TypeAckECN, 0, parseAck)
	register(TypeResetStream, 0, parseResetStream)
	register(TypeStopSending, 0, parseStopSending)
	register(TypeCrypto, flagSplitEnable, parseCrypto)
	register(TypeNewToken, 0, parseNewToken)
	for t := TypeStreamBase; t <= TypeStreamMax; t++ {
		register(t, flagSplitEnable, parseStream)
	}
	register(TypeMaxStreamData, 0, parseMaxStreamData)
	register(TypeStreamDataBlocked, 0, parseStreamDataBlocked)
	register(TypeNewConnectionID, 0, parseNewConnectionID)
	register(TypeHandshakeDone, flagNoBody, parseHandshakeDone)
	register(TypeConnectionClose, 0, parseConnectionClose)
	register(TypeConnectionCloseApp, 0, parseConnectionClose)
}

// ParseResult is one parsed frame plus whatever of its side effects the
// connection driver needs without re-inspecting the Frame's concrete type.
type ParseResult struct {
	Frame        Frame
	AckEliciting bool
	IsCrypto     bool
}

// ParseAll parses every frame in a decrypted packet payload, in wire order
// (§5 ordering invariant). It stops at the first parse error, per §7:
// Truncated/Malformed abort the enclosing packet but frames already
// parsed keep whatever side effects their parser applied.
func ParseAll(payload []byte) ([]ParseResult, error) {
	r := wire.NewReader(payload)
	var out []ParseResult
	for r.Remaining() > 0 {
		typeVal, err := r.ReadVarint()
		if err != nil {
			return out, err
		}
		t := Type(typeVal)

		entry, ok := handlers[t]
		if !ok {
			if t > maxKnownType {
				return out, protoerr.New(protoerr.ProtocolViolation, "frame.ParseAll: unknown type")
			}
			return out, protoerr.New(protoerr.Malformed, "frame.ParseAll: unhandled type")
		}

		var f Frame
		if entry.flags&flagNoBody != 0 {
			if t == TypePadding {
				// Padding absorbs the rest of a run of zero bytes; but
				// each zero byte is its own PADDING frame on the wire,
				// so just record one and continue.
				f = PaddingFrame{Length: 1}
			} else {
				f = HandshakeDoneFrame{}
				if t == TypePing {
					f = PingFrame{}
				}
			}
		} else {
			f, err = entry.parser(r, t)
			if err != nil {
				return out, err
			}
		}

		out = append(out, ParseResult{
			Frame:        f,
			AckEliciting: IsAckEliciting(t),
			IsCrypto:     t == TypeCrypto,
		})
	}
	return out, nil
}

func parsePing(r *wire.Reader, _ Type) (Frame, error) { return PingFrame{}, nil }

func parseAck(r *wire.Reader, t Type) (Frame, error) {
	largest, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseAck: largest", err)
	}
	delay, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseAck: delay", err)
	}
	rangeCount, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseAck: range_count", err)
	}
	first, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseAck: first_ack_range", err)
	}
	ranges := make([]AckRange, 0, rangeCount)
	for i := uint64(0); i < rangeCount; i++ {
		gap, err := r.ReadVarint()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseAck: gap", err)
		}
		length, err := r.ReadVarint()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseAck: ack_range_len", err)
		}
		ranges = append(ranges, AckRange{Gap: gap, Length: length})
	}
	if t == TypeAckECN {
		for i := 0; i < 3; i++ {
			if _, err := r.ReadVarint(); err != nil {
				return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseAck: ecn counts", err)
			}
		}
	}
	return AckFrame{LargestAcked: largest, AckDelay: delay, FirstAckRange: first, Ranges: ranges}, nil
}

func parseResetStream(r *wire.Reader, _ Type) (Frame, error) {
	id, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseResetStream: id", err)
	}
	code, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseResetStream: code", err)
	}
	final, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseResetStream: final_size", err)
	}
	return ResetStreamFrame{StreamID: id, ErrorCode: code, FinalSize: final}, nil
}

func parseStopSending(r *wire.Reader, _ Type) (Frame, error) {
	id, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseStopSending: id", err)
	}
	code, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseStopSending: code", err)
	}
	return StopSendingFrame{StreamID: id, ErrorCode: code}, nil
}

func parseCrypto(r *wire.Reader, _ Type) (Frame, error) {
	offset, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseCrypto: offset", err)
	}
	length, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseCrypto: length", err)
	}
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseCrypto: data", err)
	}
	return CryptoFrame{Offset: offset, Data: data}, nil
}

func parseNewToken(r *wire.Reader, _ Type) (Frame, error) {
	length, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseNewToken: length", err)
	}
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseNewToken: data", err)
	}
	return NewTokenFrame{Token: data}, nil
}

func parseStream(r *wire.Reader, t Type) (Frame, error) {
	bits := byte(t - TypeStreamBase)
	id, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseStream: id", err)
	}
	var offset uint64
	if bits&streamBitOff != 0 {
		offset, err = r.ReadVarint()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseStream: offset", err)
		}
	}
	hasLen := bits&streamBitLen != 0
	var length uint64
	if hasLen {
		length, err = r.ReadVarint()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseStream: length", err)
		}
	} else {
		length = uint64(r.Remaining())
	}
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseStream: data", err)
	}
	return StreamFrame{
		StreamID: id,
		Offset:   offset,
		Data:     data,
		Fin:      bits&streamBitFin != 0,
		HasLen:   hasLen,
	}, nil
}

func parseMaxStreamData(r *wire.Reader, _ Type) (Frame, error) {
	id, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseMaxStreamData: id", err)
	}
	max, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseMaxStreamData: max", err)
	}
	return MaxStreamDataFrame{StreamID: id, MaxData: max}, nil
}

func parseStreamDataBlocked(r *wire.Reader, _ Type) (Frame, error) {
	id, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseStreamDataBlocked: id", err)
	}
	max, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseStreamDataBlocked: max", err)
	}
	return StreamDataBlockedFrame{StreamID: id, MaxData: max}, nil
}

func parseNewConnectionID(r *wire.Reader, _ Type) (Frame, error) {
	seq, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseNewConnectionID: seq", err)
	}
	retire, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseNewConnectionID: retire_prior_to", err)
	}
	length, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseNewConnectionID: length", err)
	}
	cid, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseNewConnectionID: cid", err)
	}
	tokenBytes, err := r.ReadBytes(16)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseNewConnectionID: token", err)
	}
	var token [16]byte
	copy(token[:], tokenBytes)
	return NewConnectionIDFrame{SequenceNumber: seq, RetirePriorTo: retire, ConnectionID: cid, StatelessResetToken: token}, nil
}

func parseHandshakeDone(r *wire.Reader, _ Type) (Frame, error) { return HandshakeDoneFrame{}, nil }

func parseConnectionClose(r *wire.Reader, t Type) (Frame, error) {
	code, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseConnectionClose: code", err)
	}
	isApp := t == TypeConnectionCloseApp
	var frameType uint64
	if !isApp {
		frameType, err = r.ReadVarint()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseConnectionClose: frame_type", err)
		}
	}
	reasonLen, err := r.ReadVarint()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseConnectionClose: reason_len", err)
	}
	reason, err := r.ReadBytes(int(reasonLen))
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "frame.parseConnectionClose: reason", err)
	}
	return ConnectionCloseFrame{ErrorCode: code, FrameType_: frameType, IsApp: isApp, ReasonPhrase: string(reason)}, nil
}
