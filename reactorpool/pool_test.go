package reactorpool

import (
	"os"
	"testing"
	"time"

	"github.com/fenwick-labs/netcore/reactor"
)

func TestAssignRoundRobinsAcrossWorkers(t *testing.T) {
	p, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if p.NumWorkers() != 2 {
		t.Fatalf("NumWorkers() = %d, want 2", p.NumWorkers())
	}
	if p.Next() == p.Next() {
		t.Fatalf("two consecutive picks returned the same reactor, want round-robin across 2 workers")
	}

	r1, w1, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r1.Close()
	defer w1.Close()

	fired := make(chan int, 1)
	p.Assign(Assignment{
		FD:   int(r1.Fd()),
		Mask: reactor.Read,
		Handler: func(fd int, mask reactor.Mask) {
			var buf [8]byte
			r1.Read(buf[:])
			fired <- fd
		},
	})

	w1.Write([]byte("x"))

	select {
	case fd := <-fired:
		if fd != int(r1.Fd()) {
			t.Fatalf("handler fired for unexpected fd %d", fd)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for assigned fd to become ready")
	}
}
