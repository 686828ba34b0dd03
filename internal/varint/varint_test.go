package varint

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 37, Max1, Max1 + 1, 15293, Max2, Max2 + 1, 494878333, Max4, Max4 + 1, Max8}
	for _, n := range cases {
		enc := Append(nil, n)
		if len(enc) != Len(n) {
			t.Fatalf("Len(%d)=%d, encoded length=%d", n, Len(n), len(enc))
		}
		got, consumed, err := Decode(enc)
		if err != nil {
			t.Fatalf("decode(%d): %v", n, err)
		}
		if got != n {
			t.Fatalf("round trip: got %d, want %d", got, n)
		}
		if consumed != len(enc) {
			t.Fatalf("consumed %d, want %d", consumed, len(enc))
		}
	}
}

func TestRFC9000Vectors(t *testing.T) {
	// RFC 9000 Appendix A.1 examples.
	cases := []struct {
		enc []byte
		n   uint64
	}{
		{[]byte{0xc2, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8, 0x8c}, 151288809941952652},
		{[]byte{0x9d, 0x7f, 0x3e, 0x7d}, 494878333},
		{[]byte{0x7b, 0xbd}, 15293},
		{[]byte{0x25}, 37},
		{[]byte{0x40, 0x25}, 37},
	}
	for _, c := range cases {
		got, n, err := Decode(c.enc)
		if err != nil {
			t.Fatalf("decode %x: %v", c.enc, err)
		}
		if got != c.n {
			t.Fatalf("decode %x = %d, want %d", c.enc, got, c.n)
		}
		if n != len(c.enc) {
			t.Fatalf("decode %x consumed %d, want %d", c.enc, n, len(c.enc))
		}
	}
}

func TestSmallestForm(t *testing.T) {
	if Len(37) != 1 || Len(Max1+1) != 2 || Len(Max2+1) != 4 || Len(Max4+1) != 8 {
		t.Fatal("smallest-form boundaries wrong")
	}
}

func TestTruncated(t *testing.T) {
	if _, _, err := Decode(nil); err == nil {
		t.Fatal("expected error on empty buffer")
	}
	if _, _, err := Decode([]byte{0xc0}); err == nil {
		t.Fatal("expected error on short 8-byte form")
	}
}
