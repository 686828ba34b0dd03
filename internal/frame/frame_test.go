package frame

import (
	"testing"

	"github.com/zhangjinde/go-fdo-quic/internal/protoerr"
	"github.com/zhangjinde/go-fdo-quic/internal/wire"
)

func roundTrip(t *testing.T, f Frame) ParseResult {
	t.Helper()
	w := wire.NewWriter()
	Build(w, f)
	results, err := ParseAll(w.Bytes())
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d frames, want 1", len(results))
	}
	return results[0]
}

func TestPingRoundTrip(t *testing.T) {
	res := roundTrip(t, PingFrame{})
	if res.Frame.FrameType() != TypePing || res.AckEliciting != true {
		t.Fatalf("got %+v", res)
	}
}

func TestAckRoundTrip(t *testing.T) {
	f := AckFrame{
		LargestAcked:  100,
		AckDelay:      5,
		FirstAckRange: 10,
		Ranges:        []AckRange{{Gap: 2, Length: 3}},
	}
	res := roundTrip(t, f)
	if res.AckEliciting {
		t.Fatalf("ACK must not be ack-eliciting")
	}
	got, ok := res.Frame.(AckFrame)
	if !ok {
		t.Fatalf("got %T, want AckFrame", res.Frame)
	}
	if got.LargestAcked != f.LargestAcked || got.AckDelay != f.AckDelay || got.FirstAckRange != f.FirstAckRange {
		t.Fatalf("got %+v, want %+v", got, f)
	}
	if len(got.Ranges) != 1 || got.Ranges[0] != f.Ranges[0] {
		t.Fatalf("ranges mismatch: got %+v", got.Ranges)
	}
}

func TestCryptoRoundTrip(t *testing.T) {
	f := CryptoFrame{Offset: 42, Data: []byte("client hello bytes")}
	res := roundTrip(t, f)
	if !res.IsCrypto {
		t.Fatalf("expected IsCrypto")
	}
	got := res.Frame.(CryptoFrame)
	if got.Offset != f.Offset || string(got.Data) != string(f.Data) {
		t.Fatalf("got %+v, want %+v", got, f)
	}
}

func TestStreamRoundTripFlagCombinations(t *testing.T) {
	cases := []StreamFrame{
		{StreamID: 4, Offset: 0, Data: []byte("abc"), Fin: false, HasLen: true},
		{StreamID: 4, Offset: 7, Data: []byte("def"), Fin: true, HasLen: true},
		{StreamID: 4, Offset: 0, Data: []byte("xyz"), Fin: false, HasLen: false},
	}
	for _, f := range cases {
		res := roundTrip(t, f)
		got, ok := res.Frame.(StreamFrame)
		if !ok {
			t.Fatalf("got %T, want StreamFrame", res.Frame)
		}
		if got.StreamID != f.StreamID || got.Offset != f.Offset || got.Fin != f.Fin || string(got.Data) != string(f.Data) {
			t.Fatalf("got %+v, want %+v", got, f)
		}
		if !res.AckEliciting {
			t.Fatalf("STREAM frames must be ack-eliciting")
		}
	}
}

func TestConnectionCloseRoundTrip(t *testing.T) {
	quicLevel := ConnectionCloseFrame{ErrorCode: 1, FrameType_: 0x06, IsApp: false, ReasonPhrase: "bad crypto"}
	res := roundTrip(t, quicLevel)
	got := res.Frame.(ConnectionCloseFrame)
	if got.IsApp || got.ErrorCode != 1 || got.FrameType_ != 0x06 || got.ReasonPhrase != "bad crypto" {
		t.Fatalf("got %+v", got)
	}
	if res.AckEliciting {
		t.Fatalf("CONNECTION_CLOSE must not be ack-eliciting")
	}

	appLevel := ConnectionCloseFrame{ErrorCode: 2, IsApp: true, ReasonPhrase: "done"}
	res = roundTrip(t, appLevel)
	got = res.Frame.(ConnectionCloseFrame)
	if !got.IsApp || got.ErrorCode != 2 || got.ReasonPhrase != "done" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseAllUnknownTypeIsFatal(t *testing.T) {
	w := wire.NewWriter()
	w.WriteVarint(0x1f) // just past maxKnownType
	_, err := ParseAll(w.Bytes())
	if !protoerr.Is(err, protoerr.ProtocolViolation) {
		t.Fatalf("got %v, want ProtocolViolation", err)
	}
}

func TestParseAllTruncatedAbortsPacketButKeepsPriorFrames(t *testing.T) {
	w := wire.NewWriter()
	Build(w, PingFrame{})
	w.WriteVarint(uint64(TypeCrypto)) // header with no body: truncated
	results, err := ParseAll(w.Bytes())
	if !protoerr.Is(err, protoerr.Truncated) {
		t.Fatalf("got %v, want Truncated", err)
	}
	if len(results) != 1 || results[0].Frame.FrameType() != TypePing {
		t.Fatalf("expected the PING ahead of the truncated CRYPTO to survive, got %+v", results)
	}
}

func TestSplitCryptoChunking(t *testing.T) {
	data := []byte("0123456789")
	frags := SplitCrypto(100, data, 4)
	if len(frags) != 3 {
		t.Fatalf("got %d fragments, want 3", len(frags))
	}
	if frags[0].Offset != 100 || string(frags[0].Data) != "0123" {
		t.Fatalf("first fragment wrong: %+v", frags[0])
	}
	if frags[1].Offset != 104 || string(frags[1].Data) != "4567" {
		t.Fatalf("second fragment wrong: %+v", frags[1])
	}
	if frags[2].Offset != 108 || string(frags[2].Data) != "89" {
		t.Fatalf("third fragment wrong: %+v", frags[2])
	}
}

func TestSplitStreamOnlyLastFragmentCarriesFin(t *testing.T) {
	data := []byte("0123456789")
	frags := SplitStream(9, 0, data, true, 4)
	if len(frags) != 3 {
		t.Fatalf("got %d fragments, want 3", len(frags))
	}
	for i, f := range frags {
		wantFin := i == len(frags)-1
		if f.Fin != wantFin {
			t.Fatalf("fragment %d: got Fin=%v, want %v", i, f.Fin, wantFin)
		}
		if f.StreamID != 9 {
			t.Fatalf("fragment %d: got StreamID=%d, want 9", i, f.StreamID)
		}
	}
}

func TestAckStateSendCheckAndGenerate(t *testing.T) {
	var s AckState
	if s.SendCheck() {
		t.Fatalf("no packets received yet, SendCheck must be false")
	}
	s.OnPacketReceived(5, true)
	if !s.SendCheck() {
		t.Fatalf("expected SendCheck true after an ack-eliciting packet")
	}
	f := s.Generate(25)
	if f.LargestAcked != 5 || f.AckDelay != 25 {
		t.Fatalf("got %+v", f)
	}

	s.OnPacketReceived(4, false)
	s.OnPacketReceived(3, false)
	if f2 := s.Generate(0); f2.LargestAcked != 5 {
		t.Fatalf("largest acked should not regress: got %+v", f2)
	}
}
