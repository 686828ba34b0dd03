package packet

import (
	"encoding/binary"

	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
	"github.com/zhangjinde/go-fdo-quic/internal/varint"
)

// QUICVersion1 is the wire version number for QUIC v1 (RFC 9000).
const QUICVersion1 = 0x00000001

const (
	headerFormLong  = 0x80
	fixedBit        = 0x40
	longTypeMask    = 0x30
	longPNLenMask   = 0x03
	shortPNLenMask  = 0x03
	shortSpinBit    = 0x20 // unused by this implementation, preserved as 0
	longTypeShift   = 4
)

// LongHeader is the cleartext content of a long-header packet (RFC 9000
// §17.2), before header protection and before the packet number field is
// appended.
type LongHeader struct {
	Type    LongHeaderType
	Version uint32
	DCID    []byte
	SCID    []byte
	Token   []byte // only meaningful for TypeInitial
}

// BuildLongHeaderPrefix writes the first byte through the token of a long
// header (everything before the Length and Packet Number fields). Only the
// low 4 bits of the first byte are later subject to header protection.
func BuildLongHeaderPrefix(h LongHeader, pnLen int) []byte {
	firstByte := byte(headerFormLong | fixedBit | (byte(h.Type) << longTypeShift) | byte(pnLen-1))
	buf := make([]byte, 0, 32+len(h.DCID)+len(h.SCID)+len(h.Token))
	buf = append(buf, firstByte)
	buf = binary.BigEndian.AppendUint32(buf, h.Version)
	buf = append(buf, byte(len(h.DCID)))
	buf = append(buf, h.DCID...)
	buf = append(buf, byte(len(h.SCID)))
	buf = append(buf, h.SCID...)
	if h.Type == TypeInitial {
		buf = varint.Append(buf, uint64(len(h.Token)))
		buf = append(buf, h.Token...)
	}
	return buf
}

// ParsedLongHeader is the result of parsing the unprotected prefix of a
// long-header packet, plus bookkeeping needed to finish header-protection
// removal.
type ParsedLongHeader struct {
	Header       LongHeader
	LengthOffset int // offset of the Length varint within the datagram
	PacketLen    uint64
	PNOffset     int // offset of the (still-protected) packet number field
}

// ParseLongHeaderPrefix parses everything through the Length field of a
// long header. It does not touch the packet number field, which remains
// protected until header protection is removed (§4.2).
func ParseLongHeaderPrefix(data []byte) (*ParsedLongHeader, error) {
	if len(data) < 7 {
		return nil, protoerr.New(protoerr.Truncated, "packet.ParseLongHeaderPrefix")
	}
	first := data[0]
	if first&headerFormLong == 0 {
		return nil, protoerr.New(protoerr.Malformed, "packet.ParseLongHeaderPrefix: not a long header")
	}
	h := LongHeader{
		Type:    LongHeaderType((first & longTypeMask) >> longTypeShift),
		Version: binary.BigEndian.Uint32(data[1:5]),
	}
	off := 5
	dcidLen := int(data[off])
	off++
	if off+dcidLen > len(data) {
		return nil, protoerr.New(protoerr.Truncated, "packet.ParseLongHeaderPrefix: dcid")
	}
	h.DCID = data[off : off+dcidLen]
	off += dcidLen

	if off >= len(data) {
		return nil, protoerr.New(protoerr.Truncated, "packet.ParseLongHeaderPrefix: scid len")
	}
	scidLen := int(data[off])
	off++
	if off+scidLen > len(data) {
		return nil, protoerr.New(protoerr.Truncated, "packet.ParseLongHeaderPrefix: scid")
	}
	h.SCID = data[off : off+scidLen]
	off += scidLen

	if h.Type == TypeInitial {
		tokenLen, n, err := varint.Decode(data[off:])
		if err != nil {
			return nil, protoerr.Wrap(protoerr.Truncated, "packet.ParseLongHeaderPrefix: token len", err)
		}
		off += n
		if off+int(tokenLen) > len(data) {
			return nil, protoerr.New(protoerr.Truncated, "packet.ParseLongHeaderPrefix: token")
		}
		h.Token = data[off : off+int(tokenLen)]
		off += int(tokenLen)
	}

	lengthOffset := off
	pktLen, n, err := varint.Decode(data[off:])
	if err != nil {
		return nil, protoerr.Wrap(protoerr.Truncated, "packet.ParseLongHeaderPrefix: length", err)
	}
	off += n

	return &ParsedLongHeader{
		Header:       h,
		LengthOffset: lengthOffset,
		PacketLen:    pktLen,
		PNOffset:     off,
	}, nil
}

// ShortHeader is the cleartext content of a 1-RTT short header (RFC 9000
// §17.3): just the DCID, since version and SCID are elided.
type ShortHeader struct {
	DCID []byte
}

// BuildShortHeaderPrefix writes the first byte and DCID of a short header.
func BuildShortHeaderPrefix(h ShortHeader, pnLen int) []byte {
	firstByte := byte(fixedBit | byte(pnLen-1))
	buf := make([]byte, 0, 1+len(h.DCID))
	buf = append(buf, firstByte)
	buf = append(buf, h.DCID...)
	return buf
}

// ParseShortHeaderPrefix parses the first byte and DCID of a short header.
// dcidLen must be known out of band (it is fixed for the connection).
func ParseShortHeaderPrefix(data []byte, dcidLen int) (ShortHeader, int, error) {
	if len(data) < 1+dcidLen {
		return ShortHeader{}, 0, protoerr.New(protoerr.Truncated, "packet.ParseShortHeaderPrefix")
	}
	if data[0]&headerFormLong != 0 {
		return ShortHeader{}, 0, protoerr.New(protoerr.Malformed, "packet.ParseShortHeaderPrefix: not short header")
	}
	return ShortHeader{DCID: data[1 : 1+dcidLen]}, 1 + dcidLen, nil
}

// IsLongHeader reports whether the first byte of a datagram indicates a
// long-header packet.
func IsLongHeader(firstByte byte) bool { return firstByte&headerFormLong != 0 }
