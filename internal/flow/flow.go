// Package flow defines the single flow-return enum shared by the TLS
// engine and the connection driver (§4.6, §4.8), so both layers report
// "what should happen next" in the same vocabulary.
package flow

// Result is returned by the TLS engine's Advance and the connection
// driver's per-iteration act() to tell the caller what happened and what
// to do next.
type Result int

const (
	// Error means a fatal condition occurred; the caller inspects the
	// accompanying error value.
	Error Result = iota
	// Stop means the driver should stop iterating without error (e.g.
	// the connection is Closed).
	Stop
	// Next means one iteration completed; the driver should loop again.
	Next
	// WantRead means the caller must supply more input before progress
	// can continue (port recv would block).
	WantRead
	// WantWrite means the caller must drain output before progress can
	// continue (port send would block).
	WantWrite
	// Continue means the TLS engine consumed a message and is ready for
	// the next one in the same state table.
	Continue
	// Finish means the TLS engine reached its terminal state.
	Finish
	// Drop means a retransmitted/duplicate handshake message was read
	// off the wire and discarded without touching transcript or state.
	Drop
	// End means the connection state machine's do-while loop condition
	// (state == HandshakeDone) is satisfied.
	End
)

func (r Result) String() string {
	switch r {
	case Error:
		return "error"
	case Stop:
		return "stop"
	case Next:
		return "next"
	case WantRead:
		return "want_read"
	case WantWrite:
		return "want_write"
	case Continue:
		return "continue"
	case Finish:
		return "finish"
	case Drop:
		return "drop"
	case End:
		return "end"
	default:
		return "unknown"
	}
}
