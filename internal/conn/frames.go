package conn

import (
	"bytes"

	"github.com/zhangjinde/go-fdo-quic/internal/frame"
	"github.com/zhangjinde/go-fdo-quic/internal/keys"
	"github.com/zhangjinde/go-fdo-quic/internal/packet"
	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
	"github.com/zhangjinde/go-fdo-quic/internal/stream"
)

// processDatagram demultiplexes one received datagram by header form and
// hands it to the long- or short-header path (§4.8 step "demultiplex by
// header form to an encryption level").
func (c *Connection) processDatagram(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if packet.IsLongHeader(data[0]) {
		return c.processLongHeaderPacket(data)
	}
	return c.processShortHeaderPacket(data)
}

func (c *Connection) processLongHeaderPacket(data []byte) error {
	parsed, err := packet.ParseLongHeaderPrefix(data)
	if err != nil {
		// Truncated/Malformed at the packet level: drop the datagram,
		// same absorbed handling as a frame-level Truncated (§7).
		return nil
	}

	level := packet.LevelForLongType(parsed.Header.Type)
	ls := c.levels[level]

	if c.isServer && level == packet.Initial && !ls.ready {
		if err := c.onFirstInitial(parsed.Header); err != nil {
			return err
		}
	}

	if !ls.ready {
		// No keys yet for this level (e.g. a Handshake-level packet that
		// outran our own key derivation); the peer's CRYPTO data is
		// reliably retransmitted, so just drop this datagram.
		return nil
	}

	pnLen, pn, err := packet.RemoveHeaderProtectionLong(data, parsed, c.recvLargest(level), ls.recvKeys)
	if err != nil {
		return nil
	}
	plaintext, err := packet.Open(data, parsed.PNOffset, pnLen, pn, ls.recvKeys)
	if err != nil {
		// DecryptFailed at Initial/Handshake is silently absorbed (§7).
		return nil
	}
	c.updateRecvLargest(level, pn)
	if !c.isServer && level == packet.Initial {
		// The server's SCID becomes the DCID of every later client packet.
		c.peerCID = append([]byte(nil), parsed.Header.SCID...)
	}
	return c.consumePayload(level, pn, plaintext)
}

func (c *Connection) processShortHeaderPacket(data []byte) error {
	_, pnOffset, err := packet.ParseShortHeaderPrefix(data, len(c.localCID))
	if err != nil {
		return nil
	}
	ls := c.levels[packet.Application]
	if !ls.ready {
		return nil
	}
	pnLen, pn, err := packet.RemoveHeaderProtectionShort(data, pnOffset, c.recvLargest(packet.Application), ls.recvKeys)
	if err != nil {
		return nil
	}
	plaintext, err := packet.Open(data, pnOffset, pnLen, pn, ls.recvKeys)
	if err != nil {
		if c.matchesStatelessReset(data) {
			c.state = Draining
		}
		return nil
	}
	c.updateRecvLargest(packet.Application, pn)
	return c.consumePayload(packet.Application, pn, plaintext)
}

// consumePayload parses every frame in a decrypted packet payload and
// applies each one's side effects in wire order, then arms the level's ACK
// state (§7: Truncated/Malformed abort the enclosing packet but earlier
// frames' effects stand; ProtocolViolation is fatal and propagates).
func (c *Connection) consumePayload(level packet.Level, pn uint64, plaintext []byte) error {
	results, parseErr := frame.ParseAll(plaintext)

	ackEliciting := false
	for _, res := range results {
		if res.AckEliciting {
			ackEliciting = true
		}
		if err := c.applyFrame(level, res); err != nil {
			return err
		}
	}

	if parseErr != nil {
		if pe, ok := parseErr.(*protoerr.Error); ok && pe.Kind.Fatal() {
			return parseErr
		}
		// Truncated/Malformed: the packet is abandoned here, but the
		// frames already applied above keep their effects.
	}

	c.levels[level].ack.OnPacketReceived(pn, ackEliciting)
	return nil
}

func (c *Connection) applyFrame(level packet.Level, res frame.ParseResult) error {
	switch f := res.Frame.(type) {
	case frame.PaddingFrame, frame.PingFrame:
		return nil
	case frame.AckFrame:
		// No loss recovery beyond dedup is implemented (§9); ACKs are
		// parsed only so they don't trip the unknown-frame-type path.
		return nil
	case frame.CryptoFrame:
		return c.onCryptoFrame(level, f)
	case frame.StreamFrame:
		return c.streams.OnStreamFrame(f.StreamID, f.Offset, f.Data, f.Fin)
	case frame.ResetStreamFrame:
		return c.streams.OnResetStream(f.StreamID)
	case frame.StopSendingFrame:
		return c.onStopSending(f)
	case frame.MaxStreamDataFrame, frame.StreamDataBlockedFrame, frame.NewConnectionIDFrame:
		return nil
	case frame.NewTokenFrame:
		if c.isServer {
			return protoerr.New(protoerr.ProtocolViolation, "conn.applyFrame: NEW_TOKEN from client")
		}
		return nil
	case frame.HandshakeDoneFrame:
		if !c.isServer {
			c.state = HandshakeDone
		}
		return nil
	case frame.ConnectionCloseFrame:
		c.closeErr = protoerr.New(protoerr.Kind(f.ErrorCode), "conn.applyFrame: peer closed")
		c.state = Draining
		return nil
	}
	return nil
}

func (c *Connection) onCryptoFrame(level packet.Level, f frame.CryptoFrame) error {
	ls := c.levels[level]
	if err := ls.cryptoRecv.Insert(f.Offset, f.Data, false); err != nil {
		return err
	}
	data, _ := ls.cryptoRecv.Read()
	if len(data) > 0 {
		c.engine.Feed(level, data)
	}
	return nil
}

// onStopSending mirrors the RESET_STREAM side effect: the local send side
// of the addressed stream is shut down without sending a FIN.
func (c *Connection) onStopSending(f frame.StopSendingFrame) error {
	s, err := c.streams.Get(f.StreamID)
	if err != nil {
		return err
	}
	if s.Send != stream.SendDataRecvd && s.Send != stream.SendResetRecvd {
		s.Send = stream.SendDisabled
	}
	delete(c.pendingSends, f.StreamID)
	return nil
}

// onFirstInitial derives this server connection's Initial-level keys from
// the client-chosen DCID carried by its first Initial packet, and records
// the client's SCID as the connection ID we address outbound packets to
// (§3: "its Initial-level keys are not known yet... derived... the first
// time an Initial packet is decoded").
func (c *Connection) onFirstInitial(h packet.LongHeader) error {
	secrets := keys.DeriveInitial(h.DCID)
	if err := c.installLevelKeys(packet.Initial, keys.InitialSuite, secrets.Client, secrets.Server); err != nil {
		return err
	}
	c.peerCID = h.SCID
	return nil
}

func (c *Connection) recvLargest(level packet.Level) uint64 {
	ls := c.levels[level]
	if !ls.haveLargestRecvPN {
		return packet.NoAckedPacket
	}
	return ls.largestRecvPN
}

func (c *Connection) updateRecvLargest(level packet.Level, pn uint64) {
	ls := c.levels[level]
	if !ls.haveLargestRecvPN || pn > ls.largestRecvPN {
		ls.largestRecvPN = pn
		ls.haveLargestRecvPN = true
	}
}

func (c *Connection) matchesStatelessReset(datagram []byte) bool {
	if len(datagram) < 16 {
		return false
	}
	tail := datagram[len(datagram)-16:]
	for _, tok := range c.statelessResetTokens {
		if bytes.Equal(tail, tok[:]) {
			return true
		}
	}
	return false
}
