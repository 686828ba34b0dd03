package pacer

import "testing"

func TestNilPacerAllowsEverything(t *testing.T) {
	var p *Pacer
	for i := 0; i < 1000; i++ {
		if !p.Allow() {
			t.Fatal("nil *Pacer must allow every send")
		}
	}
}

func TestPacerExhaustsBurstThenBlocks(t *testing.T) {
	p := New(1, 3)
	for i := 0; i < 3; i++ {
		if !p.Allow() {
			t.Fatalf("send %d: expected burst token available", i)
		}
	}
	if p.Allow() {
		t.Fatal("expected burst to be exhausted")
	}
}
