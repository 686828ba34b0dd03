package conn

// LoopbackPort is an in-memory Port implementation that hands datagrams
// directly between two connections without touching the network,
// mirroring the in-process client/server pairing engine_test.go's drive
// helper uses for the TLS engine one layer down.
type LoopbackPort struct {
	out   *[][]byte
	inbox *[][]byte
}

// NewLoopbackPair builds two LoopbackPorts wired so that sends on one
// appear as receives on the other.
func NewLoopbackPair() (a, b *LoopbackPort) {
	aToB := make([][]byte, 0)
	bToA := make([][]byte, 0)
	a = &LoopbackPort{out: &aToB, inbox: &bToA}
	b = &LoopbackPort{out: &bToA, inbox: &aToB}
	return a, b
}

func (p *LoopbackPort) Recv(buf []byte) (int, bool, error) {
	if len(*p.inbox) == 0 {
		return 0, true, nil
	}
	dg := (*p.inbox)[0]
	*p.inbox = (*p.inbox)[1:]
	n := copy(buf, dg)
	return n, false, nil
}

func (p *LoopbackPort) Send(datagram []byte) (bool, error) {
	cp := make([]byte, len(datagram))
	copy(cp, datagram)
	*p.out = append(*p.out, cp)
	return false, nil
}
