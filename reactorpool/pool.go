// Package reactorpool runs a fixed set of reactor.Reactor instances,
// each pinned to its own OS thread, and round-robins newly accepted
// file descriptors across them so that "one fd, one reactor thread"
// holds without a single reactor becoming a bottleneck.
package reactorpool

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/fenwick-labs/netcore/reactor"
)

// Assignment is one fd handed to a worker for registration.
type Assignment struct {
	FD      int
	Mask    reactor.Mask
	Handler reactor.Handler
}

type worker struct {
	id      int
	r       *reactor.Reactor
	inbound *queue.Queue
	stop    chan struct{}
	done    chan struct{}
}

// Pool owns numWorkers reactors, each run by its own locked OS thread.
type Pool struct {
	workers []*worker
	next    uint64
}

// New starts a Pool of numWorkers reactor threads. Workers run until
// Close is called.
func New(numWorkers int) (*Pool, error) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	p := &Pool{}
	for i := 0; i < numWorkers; i++ {
		r, err := reactor.New()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("reactorpool: start worker %d: %w", i, err)
		}
		w := &worker{
			id:      i,
			r:       r,
			inbound: queue.New(),
			stop:    make(chan struct{}),
			done:    make(chan struct{}),
		}
		p.workers = append(p.workers, w)
		go w.run()
	}
	return p, nil
}

// Assign hands fd to the next worker in round-robin order and returns
// the reactor that will own it. The worker's Dispatch loop performs the
// actual reactor.Reactor.Add on its own thread; the returned reactor is
// for the caller to keep alongside fd (e.g. to register further pumps
// or timers against the same thread that fd is now pinned to for its
// lifetime).
func (p *Pool) Assign(a Assignment) *reactor.Reactor {
	w := p.pick()
	w.inbound.Add(a)
	w.r.Interrupt()
	return w.r
}

// Next picks the next reactor in round-robin order without registering
// anything on it. Callers that build their own ioengine.Pump/Bridge
// directly (rather than handing fd+Handler to Assign) use Next to pick
// which reactor thread a connection's fd should live on for its
// lifetime.
func (p *Pool) Next() *reactor.Reactor {
	return p.pick().r
}

func (p *Pool) pick() *worker {
	idx := atomic.AddUint64(&p.next, 1) % uint64(len(p.workers))
	return p.workers[idx]
}

// NumWorkers returns the number of reactor threads in the pool.
func (p *Pool) NumWorkers() int {
	return len(p.workers)
}

// Close stops every worker and closes its reactor. Close blocks until
// all worker threads have exited.
func (p *Pool) Close() {
	for _, w := range p.workers {
		close(w.stop)
		w.r.Interrupt()
	}
	for _, w := range p.workers {
		<-w.done
	}
}

func (w *worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)
	defer w.r.Close()

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		for w.inbound.Length() > 0 {
			a := w.inbound.Remove().(Assignment)
			if err := w.r.Add(a.FD, a.Mask, a.Handler); err != nil {
				continue
			}
		}

		if err := w.r.Dispatch(100); err != nil {
			return
		}
	}
}
