package conn

import (
	"bytes"
	"testing"

	"github.com/zhangjinde/go-fdo-quic/internal/frame"
	"github.com/zhangjinde/go-fdo-quic/internal/keys"
	"github.com/zhangjinde/go-fdo-quic/internal/packet"
	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
	"github.com/zhangjinde/go-fdo-quic/internal/stream"
	"github.com/zhangjinde/go-fdo-quic/internal/tlsengine"
)

func testParams() tlsengine.TransportParameters {
	return tlsengine.TransportParameters{
		InitialMaxData:        1 << 20,
		InitialMaxStreamsBidi: 4,
		InitialMaxStreamsUni:  4,
	}
}

// pump alternates calling Act on both connections until each reaches
// HandshakeDone or a terminal condition, mirroring engine_test.go's drive
// helper one layer up the stack.
func pump(t *testing.T, client, server *Connection, maxRounds int) {
	t.Helper()
	for i := 0; i < maxRounds; i++ {
		cDone := client.State() == HandshakeDone || client.State() == Closing || client.State() == Draining
		sDone := server.State() == HandshakeDone || server.State() == Closing || server.State() == Draining
		if cDone && sDone {
			return
		}
		if !cDone {
			if res, err := client.Act(); err != nil {
				t.Fatalf("client.Act: %v (res=%v)", err, res)
			}
		}
		if !sDone {
			if res, err := server.Act(); err != nil {
				t.Fatalf("server.Act: %v (res=%v)", err, res)
			}
		}
	}
}

func TestHandshakeConvergesOverLoopback(t *testing.T) {
	clientPort, serverPort := NewLoopbackPair()

	client, err := NewClient([]byte{1, 2, 3, 4}, testParams(), clientPort)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	server := NewServer([]byte{5, 6, 7, 8}, testParams(), nil, serverPort)

	pump(t, client, server, 80)

	if client.State() != HandshakeDone {
		t.Fatalf("client state = %v, want HandshakeDone", client.State())
	}
	if server.State() != HandshakeDone {
		t.Fatalf("server state = %v, want HandshakeDone", server.State())
	}
	if client.engine.NegotiatedSuite().ID != keys.TLS_AES_128_GCM_SHA256 {
		t.Fatalf("got suite %v, want TLS_AES_128_GCM_SHA256", client.engine.NegotiatedSuite())
	}
}

func TestServerIssuesNewConnectionIDOnHandshakeDone(t *testing.T) {
	clientPort, serverPort := NewLoopbackPair()

	client, err := NewClient([]byte{1, 2, 3, 4}, testParams(), clientPort)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	server := NewServer([]byte{5, 6, 7, 8}, testParams(), nil, serverPort)

	pump(t, client, server, 80)
	if server.State() != HandshakeDone {
		t.Fatalf("server state = %v, want HandshakeDone", server.State())
	}

	if server.nextCIDSequence != 1 {
		t.Fatalf("server.nextCIDSequence = %d, want 1 after issuing one connection ID", server.nextCIDSequence)
	}
	if len(server.statelessResetTokens) != 1 {
		t.Fatalf("server.statelessResetTokens has %d entries, want 1", len(server.statelessResetTokens))
	}

	// drive the client a little further so it has a chance to receive and
	// discard the NEW_CONNECTION_ID frame without erroring.
	pump(t, client, server, 10)
	if client.State() != HandshakeDone {
		t.Fatalf("client state = %v after receiving NEW_CONNECTION_ID, want HandshakeDone", client.State())
	}
}

func TestStreamEchoOverLoopback(t *testing.T) {
	clientPort, serverPort := NewLoopbackPair()

	client, err := NewClient([]byte{1, 2, 3, 4}, testParams(), clientPort)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	server := NewServer([]byte{5, 6, 7, 8}, testParams(), nil, serverPort)

	pump(t, client, server, 80)
	if client.State() != HandshakeDone || server.State() != HandshakeDone {
		t.Fatalf("handshake did not complete: client=%v server=%v", client.State(), server.State())
	}

	payload := bytes.Repeat([]byte{0xAB}, 20*1024)
	id := server.OpenUniStream()
	server.WriteStream(id, payload, true)

	var got []byte
	for i := 0; i < 200; i++ {
		if _, err := server.Act(); err != nil {
			t.Fatalf("server.Act: %v", err)
		}
		if _, err := client.Act(); err != nil {
			t.Fatalf("client.Act: %v", err)
		}
		chunk, atEOF, err := client.ReadStream(id)
		if err != nil {
			t.Fatalf("client.ReadStream: %v", err)
		}
		got = append(got, chunk...)
		if atEOF {
			break
		}
	}

	if !bytes.Equal(got, payload) {
		t.Fatalf("got %d bytes, want %d bytes (equal=%v)", len(got), len(payload), bytes.Equal(got, payload))
	}

	sendState, err := server.StreamSendState(id)
	if err != nil {
		t.Fatalf("StreamSendState: %v", err)
	}
	if sendState != stream.SendDataSent {
		t.Fatalf("server send state = %v, want SendDataSent", sendState)
	}
	recvState, err := client.StreamRecvState(id)
	if err != nil {
		t.Fatalf("StreamRecvState: %v", err)
	}
	if recvState != stream.RecvDataRead {
		t.Fatalf("client recv state = %v, want RecvDataRead", recvState)
	}
}

// TestNewTokenFromClientIsProtocolViolation exercises the server-side
// handling of a NEW_TOKEN frame (§7, S6): NEW_TOKEN is only ever valid
// from a server to a client, so a server that receives one must treat it
// as a fatal protocol violation.
func TestNewTokenFromClientIsProtocolViolation(t *testing.T) {
	clientPort, serverPort := NewLoopbackPair()

	client, err := NewClient([]byte{1, 2, 3, 4}, testParams(), clientPort)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	server := NewServer([]byte{5, 6, 7, 8}, testParams(), nil, serverPort)

	pump(t, client, server, 80)
	if server.State() != HandshakeDone {
		t.Fatalf("server did not reach HandshakeDone: %v", server.State())
	}

	err = server.applyFrame(packet.Application, frame.ParseResult{
		Frame:        frame.NewTokenFrame{Token: []byte("bogus")},
		AckEliciting: true,
	})
	if !protoerr.Is(err, protoerr.ProtocolViolation) {
		t.Fatalf("got %v, want ProtocolViolation", err)
	}
}
