package stream

import "testing"

func TestMakeIDFields(t *testing.T) {
	cases := []struct {
		index          uint64
		uni, server    bool
	}{
		{0, false, false},
		{0, false, true},
		{0, true, false},
		{3, true, true},
	}
	for _, c := range cases {
		id := MakeID(c.index, c.uni, c.server)
		if IsUnidirectional(id) != c.uni {
			t.Fatalf("MakeID(%v) uni mismatch", c)
		}
		if IsServerInitiated(id) != c.server {
			t.Fatalf("MakeID(%v) server mismatch", c)
		}
		if Index(id) != c.index {
			t.Fatalf("MakeID(%v) index mismatch", c)
		}
	}
}

func TestReassemblerOutOfOrder(t *testing.T) {
	var r Reassembler
	if err := r.Insert(5, []byte("world"), true); err != nil {
		t.Fatal(err)
	}
	if data, eof := r.Read(); len(data) != 0 || eof {
		t.Fatalf("expected no data yet, got %q eof=%v", data, eof)
	}
	if err := r.Insert(0, []byte("hello"), false); err != nil {
		t.Fatal(err)
	}
	data, eof := r.Read()
	if string(data) != "helloworld" || !eof {
		t.Fatalf("got %q eof=%v, want helloworld/true", data, eof)
	}
}

func TestReassemblerOverlap(t *testing.T) {
	var r Reassembler
	if err := r.Insert(0, []byte("abcd"), false); err != nil {
		t.Fatal(err)
	}
	if err := r.Insert(2, []byte("cdef"), true); err != nil {
		t.Fatal(err)
	}
	data, eof := r.Read()
	if string(data) != "abcdef" || !eof {
		t.Fatalf("got %q eof=%v, want abcdef/true", data, eof)
	}
}

func TestReassemblerFinalSizeMismatch(t *testing.T) {
	var r Reassembler
	if err := r.Insert(0, []byte("abc"), true); err != nil {
		t.Fatal(err)
	}
	if err := r.Insert(0, []byte("abcd"), true); err == nil {
		t.Fatal("expected final size mismatch error")
	}
}

func TestReassemblerCompleteDoesNotConsume(t *testing.T) {
	var r Reassembler
	if err := r.Insert(0, []byte("hello"), true); err != nil {
		t.Fatal(err)
	}
	if !r.Complete() {
		t.Fatal("expected Complete() true once all bytes through final size are buffered")
	}
	// Complete must not drain the buffer: Read should still return the
	// full payload afterward.
	data, eof := r.Read()
	if string(data) != "hello" || !eof {
		t.Fatalf("got %q eof=%v after Complete, want hello/true", data, eof)
	}
}

func TestManagerOnStreamFrameReachesDataRecvdBeforeRead(t *testing.T) {
	m := NewManager(true, 4, 4)
	id := MakeID(0, false, false)
	if err := m.OnStreamFrame(id, 0, []byte("payload"), true); err != nil {
		t.Fatal(err)
	}
	s, err := m.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Recv != RecvDataRecvd {
		t.Fatalf("recv state = %v, want RecvDataRecvd", s.Recv)
	}
	data, eof := s.Recvd.Read()
	if string(data) != "payload" || !eof {
		t.Fatalf("got %q eof=%v, want payload/true (data must survive the state transition)", data, eof)
	}
}

func TestManagerImplicitOpen(t *testing.T) {
	m := NewManager(true, 4, 4)
	id := MakeID(2, false, false)
	s, err := m.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if s.ID != id {
		t.Fatalf("got stream %d, want %d", s.ID, id)
	}
	for i := uint64(0); i < 2; i++ {
		if _, ok := m.streams[MakeID(i, false, false)]; !ok {
			t.Fatalf("expected implicit stream %d to exist", i)
		}
	}
}

func TestManagerStreamLimit(t *testing.T) {
	m := NewManager(true, 1, 1)
	id := MakeID(5, false, false)
	if _, err := m.Get(id); err == nil {
		t.Fatal("expected stream limit error")
	}
}

func TestStreamSendFragmentSplitting(t *testing.T) {
	s := newStream(MakeID(0, false, false), true, false)
	data := []byte("0123456789")
	frag, off, fin, ok := s.NextSendFragment(data, true, 4)
	if !ok || string(frag) != "0123" || off != 0 || fin {
		t.Fatalf("first fragment wrong: %q off=%d fin=%v ok=%v", frag, off, fin, ok)
	}
	frag, off, fin, ok = s.NextSendFragment(data, true, 4)
	if !ok || string(frag) != "4567" || off != 4 || fin {
		t.Fatalf("second fragment wrong: %q off=%d fin=%v ok=%v", frag, off, fin, ok)
	}
	frag, off, fin, ok = s.NextSendFragment(data, true, 4)
	if !ok || string(frag) != "89" || off != 8 || !fin {
		t.Fatalf("third fragment wrong: %q off=%d fin=%v ok=%v", frag, off, fin, ok)
	}
	if _, _, _, ok = s.NextSendFragment(data, true, 4); ok {
		t.Fatal("expected no more fragments after FIN")
	}
}
