package tlsengine

import (
	"bytes"
	"testing"

	"github.com/zhangjinde/go-fdo-quic/internal/flow"
)

// drive pumps pending output from one engine into the other's input
// buffers until both are stuck wanting more input or one errors.
func drive(t *testing.T, client, server *Engine) {
	t.Helper()
	for i := 0; i < 20; i++ {
		cRes, err := client.Advance()
		if err != nil {
			t.Fatalf("client advance: %v", err)
		}
		for _, m := range client.TakePending() {
			server.Feed(m.Level, m.Data)
		}

		sRes, err := server.Advance()
		if err != nil {
			t.Fatalf("server advance: %v", err)
		}
		for _, m := range server.TakePending() {
			client.Feed(m.Level, m.Data)
		}

		if cRes == flow.Finish && sRes == flow.Finish {
			return
		}
	}
	t.Fatalf("handshake did not converge: client=%v server=%v", client.Done(), server.Done())
}

func TestHandshakeConverges(t *testing.T) {
	clientParams := TransportParameters{InitialMaxData: 1 << 20, InitialMaxStreamsBidi: 4, InitialMaxStreamsUni: 4}
	serverParams := TransportParameters{InitialMaxData: 1 << 20, InitialMaxStreamsBidi: 4, InitialMaxStreamsUni: 4}

	client := NewClientEngine(clientParams, X25519{})
	server := NewServerEngine(serverParams, X25519{}, nil)

	drive(t, client, server)

	if !client.Done() || !server.Done() {
		t.Fatalf("expected both sides done: client=%v server=%v", client.Done(), server.Done())
	}
	if client.NegotiatedSuite().ID != server.NegotiatedSuite().ID {
		t.Fatalf("suite mismatch")
	}
	if client.HandshakeTrafficSecrets() == nil || server.HandshakeTrafficSecrets() == nil {
		t.Fatalf("expected handshake secrets on both sides")
	}
	if !bytes.Equal(client.HandshakeTrafficSecrets().Client, server.HandshakeTrafficSecrets().Client) {
		t.Fatalf("client handshake traffic secret mismatch")
	}
	if !bytes.Equal(client.HandshakeTrafficSecrets().Server, server.HandshakeTrafficSecrets().Server) {
		t.Fatalf("server handshake traffic secret mismatch")
	}
	if client.ApplicationTrafficSecrets() == nil || server.ApplicationTrafficSecrets() == nil {
		t.Fatalf("expected application secrets on both sides")
	}
	if !bytes.Equal(client.ApplicationTrafficSecrets().Client, server.ApplicationTrafficSecrets().Client) {
		t.Fatalf("client application traffic secret mismatch")
	}
}

func TestDuplicateHandshakeMessageDropped(t *testing.T) {
	clientParams := TransportParameters{InitialMaxData: 1}
	serverParams := TransportParameters{InitialMaxData: 1}

	client := NewClientEngine(clientParams, X25519{})
	server := NewServerEngine(serverParams, X25519{}, nil)

	if _, err := client.Advance(); err != nil {
		t.Fatalf("client advance: %v", err)
	}
	for _, m := range client.TakePending() {
		server.Feed(m.Level, m.Data)
	}
	if _, err := server.Advance(); err != nil {
		t.Fatalf("server advance: %v", err)
	}

	// Feed the server's whole flight to the client, but inject a second
	// copy of EncryptedExtensions right after the real one to simulate a
	// retransmission landing after the client has already moved past it.
	for _, m := range server.TakePending() {
		client.Feed(m.Level, m.Data)
		if t2, _, _, err := ParseMessage(m.Data); err == nil && t2 == MsgEncryptedExtensions {
			client.Feed(m.Level, m.Data)
		}
	}

	// This call processes ServerHello and the real EncryptedExtensions,
	// then hits the duplicate copy while expecting Certificate next and
	// returns Drop without advancing past cReadCertificate.
	stateBefore := cReadCertificate
	res, err := client.Advance()
	if err != nil {
		t.Fatalf("advance on duplicate: %v", err)
	}
	if res != flow.Drop {
		t.Fatalf("expected Drop on duplicate message, got %v", res)
	}
	if client.state != stateBefore {
		t.Fatalf("state changed on duplicate message: expected=%d after=%d", stateBefore, client.state)
	}

	// The real remaining messages still complete the handshake.
	for i := 0; i < 10 && !client.Done(); i++ {
		if _, err := client.Advance(); err != nil {
			t.Fatalf("client advance after duplicate: %v", err)
		}
	}
	if !client.Done() {
		t.Fatalf("expected client to reach HandshakeDone after the duplicate was dropped")
	}
}
