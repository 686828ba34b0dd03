// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"net"
	"sync"
)

// udpPort adapts a net.PacketConn to the conn.Port interface the
// connection driver expects (spec §6): Recv/Send must never block the
// caller. A background goroutine reads datagrams into a buffered
// channel; Recv drains it non-blockingly, the same
// "reader-goroutine-feeds-a-channel" shape as the teacher's signal
// handling goroutine in cmd/rendezvous.go's Server.Start.
type udpPort struct {
	pc   net.PacketConn
	recv chan udpDatagram

	mu   sync.Mutex
	peer net.Addr
}

type udpDatagram struct {
	addr net.Addr
	data []byte
}

// newUDPPort wraps pc. peer may be nil for a server port that learns its
// peer from the first datagram it receives (this demo only ever handles
// one connection per port).
func newUDPPort(pc net.PacketConn, peer net.Addr) *udpPort {
	p := &udpPort{pc: pc, recv: make(chan udpDatagram, 64), peer: peer}
	go p.readLoop()
	return p
}

func (p *udpPort) readLoop() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := p.pc.ReadFrom(buf)
		if err != nil {
			close(p.recv)
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		p.recv <- udpDatagram{addr: addr, data: cp}
	}
}

func (p *udpPort) Recv(buf []byte) (int, bool, error) {
	select {
	case dg, ok := <-p.recv:
		if !ok {
			return 0, true, nil
		}
		p.mu.Lock()
		if p.peer == nil {
			p.peer = dg.addr
		}
		p.mu.Unlock()
		return copy(buf, dg.data), false, nil
	default:
		return 0, true, nil
	}
}

func (p *udpPort) Send(datagram []byte) (bool, error) {
	p.mu.Lock()
	peer := p.peer
	p.mu.Unlock()
	if peer == nil {
		// no peer learned yet (server waiting for its first datagram):
		// nothing to send to, not a failure.
		return true, nil
	}
	_, err := p.pc.WriteTo(datagram, peer)
	return false, err
}
