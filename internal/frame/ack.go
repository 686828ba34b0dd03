package frame

// AckState is the minimum-viable single-range ACK bookkeeping described in
// §4.4/§9: only the largest packet number seen and the length of the
// contiguous range ending at it are tracked, mirroring the original core's
// largest_pn/largest_ack/first_ack_range fields. Gaps are not recorded, so
// a reordered or lost packet outside that single range is not reflected in
// generated ACKs (acceptable for this implementation's Non-goals: no loss
// recovery beyond dedup).
type AckState struct {
	largestPN       uint64
	haveLargestPN   bool
	largestAck      uint64
	firstAckRange   uint64
	haveAck         bool
	ackElicitingNew bool
}

// OnPacketReceived records receipt of packet number pn in this packet
// number space, extending the single contiguous range when pn is exactly
// one more than the current largestAck, restarting the range at pn when pn
// is further ahead, and leaving the range unchanged when pn is not above
// largestAck (the stub's only responses to a gap or reordering).
func (s *AckState) OnPacketReceived(pn uint64, ackEliciting bool) {
	if !s.haveLargestPN || pn > s.largestPN {
		s.largestPN = pn
		s.haveLargestPN = true
	}
	if ackEliciting {
		s.ackElicitingNew = true
	}
	switch {
	case !s.haveAck:
		s.largestAck = pn
		s.firstAckRange = 0
		s.haveAck = true
	case pn == s.largestAck+1:
		s.largestAck = pn
		s.firstAckRange++
	case pn > s.largestAck:
		s.largestAck = pn
		s.firstAckRange = 0
	case s.largestAck-pn <= s.firstAckRange:
		// already within the known contiguous range, nothing to extend
	default:
		// a packet below the tracked range arrived; the stub cannot
		// represent the resulting gap, so the range is left as is
	}
}

// SendCheck mirrors QuicFrameAckSendCheck: an ACK is due whenever an
// ack-eliciting packet has arrived since the last ACK was generated and
// the largest-seen packet number is part of the tracked contiguous range.
func (s *AckState) SendCheck() bool {
	return s.ackElicitingNew && s.haveAck && s.largestAck == s.largestPN
}

// Generate mirrors QuicFrameAckGen, producing the stub single-range ACK
// frame for the current state and clearing the elicited-since-last-ack
// flag.
func (s *AckState) Generate(ackDelay uint64) AckFrame {
	s.ackElicitingNew = false
	return AckFrame{
		LargestAcked:  s.largestAck,
		AckDelay:      ackDelay,
		FirstAckRange: s.firstAckRange,
	}
}
