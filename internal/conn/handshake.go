package conn

import (
	"github.com/zhangjinde/go-fdo-quic/internal/flow"
	"github.com/zhangjinde/go-fdo-quic/internal/frame"
	"github.com/zhangjinde/go-fdo-quic/internal/packet"
	"github.com/zhangjinde/go-fdo-quic/internal/wire"
)

// driveHandshake advances the embedded TLS engine as far as the CRYPTO
// bytes fed to it this iteration allow, turning every message it produces
// into CRYPTO frames and lazily installing Handshake/Application keys as
// soon as the engine derives them (§4.8, §4.6).
func (c *Connection) driveHandshake() error {
	for {
		res, err := c.engine.Advance()
		if err != nil {
			return err
		}
		if err := c.maybeInstallHandshakeKeys(); err != nil {
			return err
		}
		if err := c.maybeInstallAppKeys(); err != nil {
			return err
		}
		for _, pm := range c.engine.TakePending() {
			if err := c.sendCrypto(pm.Level, pm.Data); err != nil {
				return err
			}
		}
		if res == flow.WantRead || res == flow.Finish {
			break
		}
		// flow.Drop: a duplicate/retransmitted message was discarded;
		// keep looping in case more real data is already buffered.
	}

	if c.state == Initial {
		c.state = Handshake
	}

	if c.isServer && c.engine.Done() && !c.handshakeDoneSent {
		if err := c.sendHandshakeDoneFrame(); err != nil {
			return err
		}
		c.handshakeDoneSent = true
		c.state = HandshakeDone
		if err := c.issueNewConnectionID(); err != nil {
			return err
		}
	}

	return c.flushStreamData()
}

func (c *Connection) maybeInstallHandshakeKeys() error {
	if c.levels[packet.Handshake].ready {
		return nil
	}
	hs := c.engine.HandshakeTrafficSecrets()
	if hs == nil {
		return nil
	}
	return c.installLevelKeys(packet.Handshake, c.engine.NegotiatedSuite(), hs.Client, hs.Server)
}

func (c *Connection) maybeInstallAppKeys() error {
	if c.levels[packet.Application].ready {
		return nil
	}
	as := c.engine.ApplicationTrafficSecrets()
	if as == nil {
		return nil
	}
	return c.installLevelKeys(packet.Application, c.engine.NegotiatedSuite(), as.Client, as.Server)
}

// sendCrypto splits a handshake message into CRYPTO frames (§4.5) and
// sends one packet per fragment, tracking the per-level send offset.
func (c *Connection) sendCrypto(level packet.Level, data []byte) error {
	ls := c.levels[level]
	frags := frame.SplitCrypto(ls.cryptoSendOffset, data, defaultMaxChunk)
	for _, f := range frags {
		w := wire.NewWriter()
		frame.Build(w, f)
		if err := c.sendPacket(level, w.Bytes()); err != nil {
			return err
		}
	}
	ls.cryptoSendOffset += uint64(len(data))
	return nil
}

func (c *Connection) sendHandshakeDoneFrame() error {
	w := wire.NewWriter()
	frame.Build(w, frame.HandshakeDoneFrame{})
	return c.sendPacket(packet.Application, w.Bytes())
}

// buildPendingACKs builds and sends an ACK frame for every ready level
// whose ACK state is due (§4.4).
func (c *Connection) buildPendingACKs() error {
	for lvl := packet.Initial; lvl <= packet.Application; lvl++ {
		ls := c.levels[lvl]
		if !ls.ready || !ls.ack.SendCheck() {
			continue
		}
		f := ls.ack.Generate(0)
		w := wire.NewWriter()
		frame.Build(w, f)
		if err := c.sendPacket(lvl, w.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
