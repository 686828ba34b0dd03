package packet

import "testing"

// TestPacketNumberRoundTrip is Property P2: for any pn and largest in
// [0, pn] and any valid pnLen that satisfies the RFC 9000 Appendix A
// sizing rule, Reconstruct(Truncate(pn, pnLen), largest) == pn.
func TestPacketNumberRoundTrip(t *testing.T) {
	cases := []struct {
		pn, largest uint64
		pnLen       int
	}{
		{0, 0, 1},
		{1, 0, 1},
		{255, 0, 2},
		{0xa82f9b32, 0xa82f30ea, 2}, // RFC 9000 A.3 sample
		{1000, 980, 1},
		{100000, 99990, 2},
		{1 << 20, (1 << 20) - 100, 2},
		{1 << 28, (1 << 28) - 1000, 3},
	}
	for _, c := range cases {
		diff := c.pn - c.largest
		if diff >= uint64(1)<<(8*c.pnLen-1) {
			t.Fatalf("bad test case: pnLen=%d too small for diff=%d", c.pnLen, diff)
		}
		trunc := Truncate(c.pn, c.pnLen)
		got := Reconstruct(trunc, c.largest)
		if got != c.pn {
			t.Fatalf("pn=%d largest=%d pnLen=%d: reconstruct = %d", c.pn, c.largest, c.pnLen, got)
		}
	}
}

func TestTruncatedLenSizing(t *testing.T) {
	if TruncatedLen(1000, 980) != 1 {
		t.Fatal("expected 1-byte encoding")
	}
	if TruncatedLen(100000, 0) > 4 {
		t.Fatal("sizing exceeded max")
	}
}
