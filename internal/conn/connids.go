package conn

import (
	"crypto/rand"

	"github.com/google/uuid"

	"github.com/zhangjinde/go-fdo-quic/internal/frame"
	"github.com/zhangjinde/go-fdo-quic/internal/packet"
	"github.com/zhangjinde/go-fdo-quic/internal/wire"
)

// issueNewConnectionID hands the peer one additional connection ID it may
// switch to, along with the stateless reset token that goes with it
// (RFC 9000 §5.1.1/§10.3). The ID itself comes from a uuid.New() truncated
// to 8 octets, the length of the random initial DCID NewClient picks (the
// local connection IDs themselves are supplied by the caller); a real CID
// doesn't need to be a UUID,
// but it is exactly as good a source of 8 random octets as any, and the
// pack already carries the dependency.
func (c *Connection) issueNewConnectionID() error {
	id := uuid.New()
	cid := append([]byte(nil), id[:8]...)

	var token [16]byte
	if _, err := rand.Read(token[:]); err != nil {
		return err
	}
	c.statelessResetTokens = append(c.statelessResetTokens, token)

	seq := c.nextCIDSequence
	c.nextCIDSequence++

	f := frame.NewConnectionIDFrame{
		SequenceNumber:      seq,
		ConnectionID:        cid,
		StatelessResetToken: token,
	}
	w := wire.NewWriter()
	frame.Build(w, f)
	return c.sendPacket(packet.Application, w.Bytes())
}
