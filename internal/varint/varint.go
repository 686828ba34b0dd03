// Package varint implements the QUIC variable-length integer encoding
// (RFC 9000 §16): the two high bits of the first byte select a 1, 2, 4 or
// 8 byte form encoding an integer in [0, 2^62).
package varint

import (
	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
)

const (
	Max1 = 1<<6 - 1
	Max2 = 1<<14 - 1
	Max4 = 1<<30 - 1
	Max8 = 1<<62 - 1
)

// Len returns the number of bytes Encode would produce for n.
func Len(n uint64) int {
	switch {
	case n <= Max1:
		return 1
	case n <= Max2:
		return 2
	case n <= Max4:
		return 4
	case n <= Max8:
		return 8
	default:
		panic("varint: value exceeds 62 bits")
	}
}

// Append encodes n in the smallest of the four forms and appends it to buf.
func Append(buf []byte, n uint64) []byte {
	switch {
	case n <= Max1:
		return append(buf, byte(n))
	case n <= Max2:
		return append(buf, byte(n>>8)|0x40, byte(n))
	case n <= Max4:
		return append(buf, byte(n>>24)|0x80, byte(n>>16), byte(n>>8), byte(n))
	case n <= Max8:
		return append(buf,
			byte(n>>56)|0xc0, byte(n>>48), byte(n>>40), byte(n>>32),
			byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		panic("varint: value exceeds 62 bits")
	}
}

// Decode reads one variable-length integer from the front of buf and
// returns its value and the number of bytes consumed.
func Decode(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, protoerr.New(protoerr.Truncated, "varint.Decode")
	}
	ln := 1 << (buf[0] >> 6)
	if len(buf) < ln {
		return 0, 0, protoerr.New(protoerr.Truncated, "varint.Decode")
	}
	v := uint64(buf[0] & 0x3f)
	for i := 1; i < ln; i++ {
		v = v<<8 | uint64(buf[i])
	}
	return v, ln, nil
}
