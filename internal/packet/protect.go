package packet

import (
	"github.com/zhangjinde/go-fdo-quic/internal/keys"
	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
	"github.com/zhangjinde/go-fdo-quic/internal/varint"
)

// sampleOffset is the fixed number of bytes after the start of the packet
// number field where the 16-byte header-protection sample begins,
// regardless of the packet number's actual encoded length (§4.2).
const sampleOffset = 4

// hpMaskByte returns the bitmask applied to the first header byte: long
// headers mask the low 4 bits (reserved bits and pn length; the type bits
// are left clear), short headers mask the low 5 bits (reserved bits, key
// phase and pn length; the spin bit is left clear) (§4.2).
func hpMaskByte(isLong bool) byte {
	if isLong {
		return 0x0f
	}
	return 0x1f
}

// ProtectLong builds, AEAD-protects and header-protects a long-header
// packet. payload is the frame bytes to protect; pn is the full (not yet
// truncated) packet number for this packet in its level's space.
func ProtectLong(h LongHeader, pn, largestAcked uint64, payload []byte, pp, hp *keys.DirectionalKeys) ([]byte, error) {
	pnLen := TruncatedLen(pn, largestAcked)
	prefix := BuildLongHeaderPrefix(h, pnLen)

	remainderLen := pnLen + len(payload) + 16 // +tag
	lengthField := varint.Append(nil, uint64(remainderLen))
	header := append(prefix, lengthField...)
	pnOffset := len(header)
	header = append(header, Truncate(pn, pnLen)...)

	ciphertext := pp.Seal(pn, header, payload)
	pkt := append(header, ciphertext...)

	if err := applyHeaderProtection(pkt, pnOffset, pnLen, true, hp); err != nil {
		return nil, err
	}
	return pkt, nil
}

// ProtectShort builds, AEAD-protects and header-protects a 1-RTT packet.
func ProtectShort(h ShortHeader, pn, largestAcked uint64, payload []byte, pp, hp *keys.DirectionalKeys) ([]byte, error) {
	pnLen := TruncatedLen(pn, largestAcked)
	header := BuildShortHeaderPrefix(h, pnLen)
	pnOffset := len(header)
	header = append(header, Truncate(pn, pnLen)...)

	ciphertext := pp.Seal(pn, header, payload)
	pkt := append(header, ciphertext...)

	if err := applyHeaderProtection(pkt, pnOffset, pnLen, false, hp); err != nil {
		return nil, err
	}
	return pkt, nil
}

func applyHeaderProtection(pkt []byte, pnOffset, pnLen int, isLong bool, hp *keys.DirectionalKeys) error {
	sampleStart := pnOffset + sampleOffset
	if sampleStart+16 > len(pkt) {
		return protoerr.New(protoerr.Internal, "packet.applyHeaderProtection: packet too short for sample")
	}
	mask, err := hp.HPMask(pkt[sampleStart : sampleStart+16])
	if err != nil {
		return protoerr.Wrap(protoerr.Internal, "packet.applyHeaderProtection", err)
	}
	pkt[0] ^= mask[0] & hpMaskByte(isLong)
	for i := 0; i < pnLen; i++ {
		pkt[pnOffset+i] ^= mask[1+i]
	}
	return nil
}

// RemoveHeaderProtectionLong reverses header protection on a long-header
// packet in place, given the already-parsed unprotected prefix. It returns
// the packet-number length and the reconstructed full packet number.
func RemoveHeaderProtectionLong(pkt []byte, parsed *ParsedLongHeader, largest uint64, hp *keys.DirectionalKeys) (pnLen int, pn uint64, err error) {
	return removeHeaderProtection(pkt, parsed.PNOffset, largest, true, hp)
}

// RemoveHeaderProtectionShort reverses header protection on a short-header
// packet in place.
func RemoveHeaderProtectionShort(pkt []byte, pnOffset int, largest uint64, hp *keys.DirectionalKeys) (pnLen int, pn uint64, err error) {
	return removeHeaderProtection(pkt, pnOffset, largest, false, hp)
}

func removeHeaderProtection(pkt []byte, pnOffset int, largest uint64, isLong bool, hp *keys.DirectionalKeys) (int, uint64, error) {
	sampleStart := pnOffset + sampleOffset
	if sampleStart+16 > len(pkt) {
		return 0, 0, protoerr.New(protoerr.Truncated, "packet.removeHeaderProtection: short sample")
	}
	mask, err := hp.HPMask(pkt[sampleStart : sampleStart+16])
	if err != nil {
		return 0, 0, protoerr.Wrap(protoerr.Internal, "packet.removeHeaderProtection", err)
	}
	pkt[0] ^= mask[0] & hpMaskByte(isLong)
	pnLen := int(pkt[0]&longPNLenMask) + 1
	if pnOffset+pnLen > len(pkt) {
		return 0, 0, protoerr.New(protoerr.Truncated, "packet.removeHeaderProtection: pn field")
	}
	for i := 0; i < pnLen; i++ {
		pkt[pnOffset+i] ^= mask[1+i]
	}
	truncated := pkt[pnOffset : pnOffset+pnLen]
	pn := Reconstruct(truncated, largest)
	return pnLen, pn, nil
}

// Open decrypts the AEAD payload of a long- or short-header packet using
// aad = pkt[:pnOffset+pnLen]. It does not remove header protection: pkt
// must already have had it removed by the caller.
func Open(pkt []byte, pnOffset, pnLen int, pn uint64, pp *keys.DirectionalKeys) ([]byte, error) {
	aad := pkt[:pnOffset+pnLen]
	ciphertext := pkt[pnOffset+pnLen:]
	plaintext, err := pp.Open(pn, aad, ciphertext)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.DecryptFailed, "packet.Open", err)
	}
	return plaintext, nil
}
