package packet

import (
	"bytes"
	"testing"

	"github.com/zhangjinde/go-fdo-quic/internal/keys"
)

func testKeys(t *testing.T) (pp, hp *keys.DirectionalKeys) {
	t.Helper()
	secrets := keys.DeriveInitial([]byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08})
	dk, err := keys.DeriveDirectional(keys.InitialSuite, secrets.Client)
	if err != nil {
		t.Fatal(err)
	}
	return dk, dk
}

func TestLongHeaderProtectRoundTrip(t *testing.T) {
	pp, hp := testKeys(t)

	h := LongHeader{
		Type:    TypeInitial,
		Version: QUICVersion1,
		DCID:    []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08},
		SCID:    nil,
		Token:   nil,
	}
	payload := bytes.Repeat([]byte{0x42}, 200)

	pkt, err := ProtectLong(h, 2, invalidLargest, payload, pp, hp)
	if err != nil {
		t.Fatalf("protect: %v", err)
	}

	parsed, err := ParseLongHeaderPrefix(pkt)
	if err != nil {
		t.Fatalf("parse prefix: %v", err)
	}
	if parsed.Header.Type != TypeInitial || parsed.Header.Version != QUICVersion1 {
		t.Fatalf("parsed header mismatch: %+v", parsed.Header)
	}

	pnLen, pn, err := RemoveHeaderProtectionLong(pkt, parsed, invalidLargest, hp)
	if err != nil {
		t.Fatalf("remove HP: %v", err)
	}
	if pn != 2 {
		t.Fatalf("pn = %d, want 2", pn)
	}

	plaintext, err := Open(pkt, parsed.PNOffset, pnLen, pn, pp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(plaintext, payload) {
		t.Fatalf("plaintext mismatch")
	}
}

func TestShortHeaderProtectRoundTrip(t *testing.T) {
	pp, hp := testKeys(t)
	dcid := []byte{1, 2, 3, 4}
	sh := ShortHeader{DCID: dcid}
	payload := bytes.Repeat([]byte{0x24}, 64)

	pkt, err := ProtectShort(sh, 100, 90, payload, pp, hp)
	if err != nil {
		t.Fatalf("protect: %v", err)
	}

	got, pnOffset, err := ParseShortHeaderPrefix(pkt, len(dcid))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(got.DCID, dcid) {
		t.Fatalf("dcid mismatch")
	}

	pnLen, pn, err := RemoveHeaderProtectionShort(pkt, pnOffset, 90, hp)
	if err != nil {
		t.Fatalf("remove HP: %v", err)
	}
	if pn != 100 {
		t.Fatalf("pn = %d, want 100", pn)
	}

	plaintext, err := Open(pkt, pnOffset, pnLen, pn, pp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(plaintext, payload) {
		t.Fatalf("plaintext mismatch")
	}
}
