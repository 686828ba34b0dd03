// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"net"
	"testing"
	"time"
)

func TestUDPPortRecvIsNonBlockingWhenEmpty(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = pc.Close() }()

	p := newUDPPort(pc, nil)
	buf := make([]byte, 64)
	n, wouldBlock, err := p.Recv(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !wouldBlock || n != 0 {
		t.Fatalf("Recv on empty port = (%d, %v), want (0, true)", n, wouldBlock)
	}
}

func TestUDPPortSendWithNoPeerIsNoOp(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = pc.Close() }()

	p := newUDPPort(pc, nil)
	wouldBlock, err := p.Send([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if !wouldBlock {
		t.Fatal("Send with no learned peer should report wouldBlock, not attempt a write")
	}
}

func TestUDPPortRoundTripLearnsPeer(t *testing.T) {
	a, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()
	b, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = b.Close() }()

	serverPort := newUDPPort(a, nil)
	clientPort := newUDPPort(b, a.LocalAddr())

	if wouldBlock, err := clientPort.Send([]byte("ping")); err != nil || wouldBlock {
		t.Fatalf("client Send: wouldBlock=%v err=%v", wouldBlock, err)
	}

	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	var got string
	for time.Now().Before(deadline) {
		n, wouldBlock, err := serverPort.Recv(buf)
		if err != nil {
			t.Fatal(err)
		}
		if !wouldBlock {
			got = string(buf[:n])
			break
		}
		time.Sleep(time.Millisecond)
	}
	if got != "ping" {
		t.Fatalf("server received %q, want %q", got, "ping")
	}

	if wouldBlock, err := serverPort.Send([]byte("pong")); err != nil || wouldBlock {
		t.Fatalf("server Send after learning peer: wouldBlock=%v err=%v", wouldBlock, err)
	}
}
