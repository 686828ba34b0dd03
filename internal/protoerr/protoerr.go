// Package protoerr defines the error kinds shared across the QUIC core
// packages and the propagation rules of the connection driver.
package protoerr

import "fmt"

// Kind classifies a protocol-level failure so the connection driver can
// decide whether to drop a datagram, tear down the connection, or simply
// yield to the caller.
type Kind int

const (
	// WouldBlock means the port has no data ready (or no send room);
	// the driver surfaces this to the caller as WantRead/WantWrite.
	WouldBlock Kind = iota
	// Truncated means a structured item was shorter than its declared
	// length. Aborts the enclosing packet only.
	Truncated
	// Malformed means the bytes violate the wire encoding rules.
	// Aborts the enclosing packet only.
	Malformed
	// ProtocolViolation means the encoding is valid but illegal in
	// context. Fatal: the connection closes.
	ProtocolViolation
	// DecryptFailed means AEAD verification failed.
	DecryptFailed
	// BadCertificate means the peer's certificate chain failed
	// validation. Fatal.
	BadCertificate
	// MissingExtension means a mandatory TLS extension was absent.
	// Fatal.
	MissingExtension
	// UnexpectedMessage means a TLS handshake message arrived in a
	// state that does not expect it. Fatal.
	UnexpectedMessage
	// Internal covers bugs and invariant violations that aren't a
	// property of the wire data.
	Internal
)

func (k Kind) String() string {
	switch k {
	case WouldBlock:
		return "would_block"
	case Truncated:
		return "truncated"
	case Malformed:
		return "malformed"
	case ProtocolViolation:
		return "protocol_violation"
	case DecryptFailed:
		return "decrypt_failed"
	case BadCertificate:
		return "bad_certificate"
	case MissingExtension:
		return "missing_extension"
	case UnexpectedMessage:
		return "unexpected_message"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// errors.As without string matching.
type Error struct {
	Kind Kind
	Op   string // which component raised it, e.g. "frame.ParseAck"
	Err  error  // optional wrapped cause
}

func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err is a protoerr.Error of the given Kind.
func Is(err error, kind Kind) bool {
	pe, ok := err.(*Error)
	if !ok {
		return false
	}
	return pe.Kind == kind
}

// Fatal reports whether the kind terminates the connection per §7:
// ProtocolViolation, UnexpectedMessage, BadCertificate and
// MissingExtension are fatal; Truncated/Malformed abort only the
// enclosing packet, and DecryptFailed/WouldBlock have their own handling
// in the connection driver.
func (k Kind) Fatal() bool {
	switch k {
	case ProtocolViolation, UnexpectedMessage, BadCertificate, MissingExtension:
		return true
	default:
		return false
	}
}
