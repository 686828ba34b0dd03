package frame

import "github.com/zhangjinde/go-fdo-quic/internal/wire"

// Build appends the wire encoding of f to w.
func Build(w *wire.Writer, f Frame) {
	switch v := f.(type) {
	case PaddingFrame:
		for i := 0; i < v.Length; i++ {
			w.WriteByte(byte(TypePadding))
		}
	case PingFrame:
		w.WriteVarint(uint64(TypePing))
	case AckFrame:
		buildAck(w, v)
	case ResetStreamFrame:
		w.WriteVarint(uint64(TypeResetStream))
		w.WriteVarint(v.StreamID)
		w.WriteVarint(v.ErrorCode)
		w.WriteVarint(v.FinalSize)
	case StopSendingFrame:
		w.WriteVarint(uint64(TypeStopSending))
		w.WriteVarint(v.StreamID)
		w.WriteVarint(v.ErrorCode)
	case CryptoFrame:
		w.WriteVarint(uint64(TypeCrypto))
		w.WriteVarint(v.Offset)
		w.WriteVarintBytes(v.Data)
	case NewTokenFrame:
		w.WriteVarint(uint64(TypeNewToken))
		w.WriteVarintBytes(v.Token)
	case StreamFrame:
		buildStream(w, v)
	case MaxStreamDataFrame:
		w.WriteVarint(uint64(TypeMaxStreamData))
		w.WriteVarint(v.StreamID)
		w.WriteVarint(v.MaxData)
	case StreamDataBlockedFrame:
		w.WriteVarint(uint64(TypeStreamDataBlocked))
		w.WriteVarint(v.StreamID)
		w.WriteVarint(v.MaxData)
	case NewConnectionIDFrame:
		w.WriteVarint(uint64(TypeNewConnectionID))
		w.WriteVarint(v.SequenceNumber)
		w.WriteVarint(v.RetirePriorTo)
		w.WriteVarintBytes(v.ConnectionID)
		w.WriteBytes(v.StatelessResetToken[:])
	case HandshakeDoneFrame:
		w.WriteVarint(uint64(TypeHandshakeDone))
	case ConnectionCloseFrame:
		buildConnectionClose(w, v)
	}
}

func buildAck(w *wire.Writer, f AckFrame) {
	w.WriteVarint(uint64(TypeAck))
	w.WriteVarint(f.LargestAcked)
	w.WriteVarint(f.AckDelay)
	w.WriteVarint(uint64(len(f.Ranges)))
	w.WriteVarint(f.FirstAckRange)
	for _, r := range f.Ranges {
		w.WriteVarint(r.Gap)
		w.WriteVarint(r.Length)
	}
}

func buildStream(w *wire.Writer, f StreamFrame) {
	t := TypeStreamBase
	if f.Offset != 0 {
		t |= streamBitOff
	}
	if f.HasLen {
		t |= streamBitLen
	}
	if f.Fin {
		t |= streamBitFin
	}
	w.WriteVarint(uint64(t))
	w.WriteVarint(f.StreamID)
	if f.Offset != 0 {
		w.WriteVarint(f.Offset)
	}
	if f.HasLen {
		w.WriteVarint(uint64(len(f.Data)))
	}
	w.WriteBytes(f.Data)
}

func buildConnectionClose(w *wire.Writer, f ConnectionCloseFrame) {
	if f.IsApp {
		w.WriteVarint(uint64(TypeConnectionCloseApp))
	} else {
		w.WriteVarint(uint64(TypeConnectionClose))
	}
	w.WriteVarint(f.ErrorCode)
	if !f.IsApp {
		w.WriteVarint(f.FrameType_)
	}
	w.WriteVarintBytes([]byte(f.ReasonPhrase))
}

// maxVarintLen is the longest encoding of a QUIC variable-length integer,
// i.e. the worst-case byte cost of each varint field (type, stream/crypto
// id, offset, length) in a frame header.
const maxVarintLen = 8

// GetBuffLen mirrors QuicFrameGetBuffLen: given a maximum space budget and
// the frame's fixed-field overhead, returns how many payload bytes can
// still be packed in, or 0 if the budget cannot even hold the fixed
// fields plus one byte of payload.
func GetBuffLen(budget, fixedOverhead int) int {
	avail := budget - fixedOverhead
	if avail <= 0 {
		return 0
	}
	return avail
}

// SplitCrypto mirrors QuicFrameCryptoSplit: splits data starting at offset
// into a sequence of CRYPTO frames each no larger than maxChunk bytes of
// payload (the caller is responsible for checking each fits its packet's
// remaining budget alongside the frame's own type/offset/length overhead).
func SplitCrypto(offset uint64, data []byte, maxChunk int) []CryptoFrame {
	if maxChunk <= 0 {
		maxChunk = len(data)
	}
	var out []CryptoFrame
	for off := 0; off < len(data); off += maxChunk {
		end := off + maxChunk
		if end > len(data) {
			end = len(data)
		}
		out = append(out, CryptoFrame{Offset: offset + uint64(off), Data: data[off:end]})
	}
	if len(data) == 0 {
		out = append(out, CryptoFrame{Offset: offset, Data: nil})
	}
	return out
}

// SplitStream mirrors QuicFrameStreamWrite: splits data into STREAM frames
// of at most maxChunk payload bytes each. fin is only set on the frame
// covering the last byte of data (or the sole, empty, frame when fin is
// requested with no data, per the FIN-with-empty-body design decision).
// HasLen is set on every fragment except (by convention) the very last one
// written into a packet, which the caller may clear to let the frame run
// to the end of the packet; SplitStream itself always sets HasLen so
// fragments remain independently parseable.
func SplitStream(streamID uint64, offset uint64, data []byte, fin bool, maxChunk int) []StreamFrame {
	if maxChunk <= 0 {
		maxChunk = len(data)
		if maxChunk == 0 {
			maxChunk = 1
		}
	}
	if len(data) == 0 {
		return []StreamFrame{{StreamID: streamID, Offset: offset, Data: nil, Fin: fin, HasLen: true}}
	}
	var out []StreamFrame
	for off := 0; off < len(data); off += maxChunk {
		end := off + maxChunk
		if end > len(data) {
			end = len(data)
		}
		isLast := end == len(data)
		out = append(out, StreamFrame{
			StreamID: streamID,
			Offset:   offset + uint64(off),
			Data:     data[off:end],
			Fin:      isLast && fin,
			HasLen:   true,
		})
	}
	return out
}
