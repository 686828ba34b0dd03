// Package stream implements per-connection stream allocation, the
// independent send/recv stream state machines, and offset-based reassembly
// of STREAM frame data (§4.7).
package stream

import "github.com/zhangjinde/go-fdo-quic/internal/protoerr"

// SendState and RecvState are the independent per-direction stream state
// machines (RFC 9000 §3.1/§3.2).
type SendState int

const (
	SendStart SendState = iota
	SendReady
	SendSend
	SendDataSent
	SendResetSent
	SendDataRecvd
	SendResetRecvd
	SendDisabled
)

type RecvState int

const (
	RecvStart RecvState = iota
	RecvRecv
	RecvSizeKnown
	RecvDataRecvd
	RecvDataRead
	RecvResetRecvd
	RecvResetRead
)

// ID bit layout (RFC 9000 §2.1): (index<<2)|(uni?2:0)|(server?1:0).
const (
	bitServer = 0x1
	bitUni    = 0x2
)

// IsServerInitiated, IsUnidirectional and Index decode the three fields
// packed into a stream ID.
func IsServerInitiated(id uint64) bool { return id&bitServer != 0 }
func IsUnidirectional(id uint64) bool  { return id&bitUni != 0 }
func Index(id uint64) uint64           { return id >> 2 }

// MakeID encodes a stream ID from its constituent fields.
func MakeID(index uint64, uni, server bool) uint64 {
	id := index << 2
	if uni {
		id |= bitUni
	}
	if server {
		id |= bitServer
	}
	return id
}

// segment is one reassembly fragment: the bytes received at [Offset,
// Offset+len(Data)).
type segment struct {
	offset uint64
	data   []byte
}

// Reassembler coalesces out-of-order STREAM (or CRYPTO) fragments into a
// contiguous readable prefix, mirroring the original core's per-stream
// data/grow-on-demand buffer.
type Reassembler struct {
	readOffset uint64
	segments   []segment
	finalSize  uint64
	haveFinal  bool
	pending    bool
}

// Insert records a fragment at offset. If fin is true, offset+len(data) is
// recorded as the stream's final size; a mismatching final size on a later
// insert is a protocol violation (RFC 9000 §4.5).
func (r *Reassembler) Insert(offset uint64, data []byte, fin bool) error {
	end := offset + uint64(len(data))
	if fin {
		if r.haveFinal && r.finalSize != end {
			return protoerr.New(protoerr.ProtocolViolation, "stream.Reassembler.Insert: final size mismatch")
		}
		r.finalSize = end
		r.haveFinal = true
	}
	if r.haveFinal && end > r.finalSize {
		return protoerr.New(protoerr.ProtocolViolation, "stream.Reassembler.Insert: data beyond final size")
	}
	if end <= r.readOffset || len(data) == 0 {
		return nil
	}
	if offset < r.readOffset {
		data = data[r.readOffset-offset:]
		offset = r.readOffset
	}
	r.segments = append(r.segments, segment{offset: offset, data: data})
	r.pending = true
	return nil
}

// Read drains as much contiguous data as is available starting at the
// current read offset, returning it along with whether the stream has
// been fully consumed (final size reached with no gaps remaining).
func (r *Reassembler) Read() (data []byte, atEOF bool) {
	for {
		progressed := false
		for i := 0; i < len(r.segments); i++ {
			s := r.segments[i]
			if s.offset > r.readOffset {
				continue
			}
			segEnd := s.offset + uint64(len(s.data))
			if segEnd <= r.readOffset {
				r.segments = append(r.segments[:i], r.segments[i+1:]...)
				i--
				continue
			}
			newBytes := s.data[r.readOffset-s.offset:]
			data = append(data, newBytes...)
			r.readOffset += uint64(len(newBytes))
			r.segments = append(r.segments[:i], r.segments[i+1:]...)
			progressed = true
			break
		}
		if !progressed {
			break
		}
	}
	atEOF = r.haveFinal && r.readOffset == r.finalSize
	return data, atEOF
}

// Complete reports whether every byte through the stream's final size has
// already been buffered (contiguous from the current read offset), without
// consuming any of it. Used to drive the RecvDataRecvd transition (RFC 9000
// §3.2), which must fire on arrival, not on the application's next Read.
func (r *Reassembler) Complete() bool {
	if !r.haveFinal {
		return false
	}
	offset := r.readOffset
	for {
		progressed := false
		for _, s := range r.segments {
			if s.offset > offset {
				continue
			}
			segEnd := s.offset + uint64(len(s.data))
			if segEnd > offset {
				offset = segEnd
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return offset >= r.finalSize
}

// PendingNotify reports and clears whether new data has arrived since the
// last call, matching the original core's sticky notified flag that gates
// a single application wakeup per batch of progress.
func (r *Reassembler) PendingNotify() bool {
	if !r.pending {
		return false
	}
	r.pending = false
	return true
}
