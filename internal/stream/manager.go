package stream

import "github.com/zhangjinde/go-fdo-quic/internal/protoerr"

// Stream is one stream's full state: its ID, independent send/recv state
// machines, and (for receiving streams) a reassembler.
type Stream struct {
	ID    uint64
	Send  SendState
	Recv  RecvState
	Recvd Reassembler

	sendOffset  uint64
	sendFinSent bool
}

func newStream(id uint64, isSender, isReceiver bool) *Stream {
	s := &Stream{ID: id}
	if isSender {
		s.Send = SendReady
	} else {
		s.Send = SendDisabled
	}
	if isReceiver {
		s.Recv = RecvRecv
	} else {
		s.Recv = RecvStart
	}
	return s
}

// Manager owns every stream opened locally or by the peer on one
// connection, held in a map keyed by stream ID.
type Manager struct {
	isServer bool

	nextBidi uint64
	nextUni  uint64

	maxBidi uint64
	maxUni  uint64

	streams map[uint64]*Stream
}

// NewManager constructs a stream manager for one side of a connection.
// maxBidi/maxUni are this connection's locally announced
// initial_max_streams_bidi/initial_max_streams_uni limits on streams the
// peer may open.
func NewManager(isServer bool, maxBidi, maxUni uint64) *Manager {
	return &Manager{
		isServer: isServer,
		maxBidi:  maxBidi,
		maxUni:   maxUni,
		streams:  make(map[uint64]*Stream),
	}
}

// OpenBidi allocates the next locally-initiated bidirectional stream.
func (m *Manager) OpenBidi() *Stream {
	id := MakeID(m.nextBidi, false, m.isServer)
	m.nextBidi++
	s := newStream(id, true, true)
	m.streams[id] = s
	return s
}

// OpenUni allocates the next locally-initiated unidirectional (send-only
// from this side) stream.
func (m *Manager) OpenUni() *Stream {
	id := MakeID(m.nextUni, true, m.isServer)
	m.nextUni++
	s := newStream(id, true, false)
	m.streams[id] = s
	return s
}

// Get returns the stream for id, implicitly opening every lower-numbered
// peer-initiated stream of the same type that does not yet exist (RFC 9000
// §2.1's "implicit stream creation"), or an error if id exceeds this
// connection's announced stream limit for its type.
func (m *Manager) Get(id uint64) (*Stream, error) {
	if s, ok := m.streams[id]; ok {
		return s, nil
	}
	remoteInitiated := IsServerInitiated(id) != m.isServer
	if !remoteInitiated {
		return nil, protoerr.New(protoerr.ProtocolViolation, "stream.Manager.Get: unknown locally-initiated stream")
	}
	uni := IsUnidirectional(id)
	idx := Index(id)
	limit := m.maxBidi
	if uni {
		limit = m.maxUni
	}
	if idx >= limit {
		return nil, protoerr.New(protoerr.ProtocolViolation, "stream.Manager.Get: stream limit exceeded")
	}
	for i := uint64(0); i <= idx; i++ {
		peerID := MakeID(i, uni, !m.isServer)
		if _, ok := m.streams[peerID]; ok {
			continue
		}
		var isSender bool
		if uni {
			isSender = false
		} else {
			isSender = true
		}
		m.streams[peerID] = newStream(peerID, isSender, true)
	}
	return m.streams[id], nil
}

// OnStreamFrame feeds a received STREAM frame's payload into the target
// stream's reassembler, opening the stream implicitly if needed.
func (m *Manager) OnStreamFrame(id, offset uint64, data []byte, fin bool) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if s.Recv == RecvResetRecvd || s.Recv == RecvResetRead {
		return nil
	}
	if err := s.Recvd.Insert(offset, data, fin); err != nil {
		return err
	}
	if fin && s.Recv == RecvRecv {
		s.Recv = RecvSizeKnown
	}
	if s.Recvd.Complete() && s.Recv == RecvSizeKnown {
		s.Recv = RecvDataRecvd
	}
	return nil
}

// OnResetStream applies a RESET_STREAM frame's effect to the receive side
// of the addressed stream.
func (m *Manager) OnResetStream(id uint64) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	switch s.Recv {
	case RecvRecv, RecvSizeKnown, RecvDataRecvd:
		s.Recv = RecvResetRecvd
	}
	return nil
}

// NextSendFragment returns the next unsent bytes (up to maxLen) for a
// stream the local side is sending on, advancing that stream's send
// offset and state; ok is false when there is nothing left to send.
func (s *Stream) NextSendFragment(data []byte, fin bool, maxLen int) (fragment []byte, offset uint64, fragFin bool, ok bool) {
	if s.sendFinSent {
		return nil, 0, false, false
	}
	if s.Send == SendReady {
		s.Send = SendSend
	}
	remaining := data[s.sendOffset:]
	if len(remaining) == 0 && !fin {
		return nil, 0, false, false
	}
	n := len(remaining)
	if maxLen > 0 && n > maxLen {
		n = maxLen
	}
	frag := remaining[:n]
	offset = s.sendOffset
	s.sendOffset += uint64(n)
	isLast := int(s.sendOffset) == len(data)
	fragFin = isLast && fin
	if fragFin {
		s.sendFinSent = true
		s.Send = SendDataSent
	}
	return frag, offset, fragFin, true
}
