package conn

import (
	"github.com/zhangjinde/go-fdo-quic/internal/packet"
	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
)

// sendPacket builds, protects and enqueues one packet carrying payload at
// level, assigning it the next packet number in that level's space. Packet
// numbers are always sized against packet.NoAckedPacket (§9: a
// deliberately conservative simplification — this implementation never
// tracks which packet numbers the peer has acknowledged, so it can't size
// truncation any tighter than "assume nothing is acked yet").
func (c *Connection) sendPacket(level packet.Level, payload []byte) error {
	ls := c.levels[level]
	if !ls.ready {
		return protoerr.New(protoerr.Internal, "conn.sendPacket: level not ready")
	}
	pn := ls.nextSendPN
	ls.nextSendPN++

	// The header-protection sample starts 4 bytes into the packet number
	// field, so a short payload is padded with PADDING frames until packet
	// number and payload together span at least 4 bytes.
	if pad := 4 - packet.TruncatedLen(pn, packet.NoAckedPacket) - len(payload); pad > 0 {
		payload = append(append([]byte(nil), payload...), make([]byte, pad)...)
	}

	var pkt []byte
	var err error
	if level == packet.Application {
		sh := packet.ShortHeader{DCID: c.peerCID}
		pkt, err = packet.ProtectShort(sh, pn, packet.NoAckedPacket, payload, ls.sendKeys, ls.sendKeys)
	} else {
		lh := packet.LongHeader{
			Type:    longTypeForLevel(level),
			Version: packet.QUICVersion1,
			DCID:    c.peerCID,
			SCID:    c.localCID,
		}
		pkt, err = packet.ProtectLong(lh, pn, packet.NoAckedPacket, payload, ls.sendKeys, ls.sendKeys)
	}
	if err != nil {
		return err
	}
	c.outbound = append(c.outbound, pkt)
	return nil
}

func longTypeForLevel(level packet.Level) packet.LongHeaderType {
	switch level {
	case packet.Initial:
		return packet.TypeInitial
	case packet.Handshake:
		return packet.TypeHandshake
	default:
		return packet.TypeInitial
	}
}
