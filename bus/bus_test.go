package bus

import (
	"sync"
	"testing"

	"github.com/fenwick-labs/netcore/queue"
)

type noopArmer struct{}

func (noopArmer) Arm()    {}
func (noopArmer) Disarm() {}

func TestBusRaiseDeliversToMatchingSubscriber(t *testing.T) {
	q := queue.New(noopArmer{})
	b := New()

	var mu sync.Mutex
	var got any
	b.Subscribe("conn-1", "readable", q, func(data any) {
		mu.Lock()
		got = data
		mu.Unlock()
	})

	b.Raise("conn-1", "readable", 42)
	if !q.Tick() {
		t.Fatalf("expected a queued delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if got != 42 {
		t.Fatalf("expected payload 42, got %v", got)
	}
}

func TestBusRaiseIgnoresUnknownTag(t *testing.T) {
	q := queue.New(noopArmer{})
	b := New()
	b.Subscribe("conn-1", "readable", q, func(any) {
		t.Fatalf("callback should not run for a different tag")
	})

	b.Raise("conn-2", "readable", nil)
	if q.Tick() {
		t.Fatalf("expected no queued delivery for unmatched tag")
	}
}

func TestBusUnsubscribeRemovesSubscription(t *testing.T) {
	q := queue.New(noopArmer{})
	b := New()
	b.Subscribe("conn-1", "readable", q, func(any) {
		t.Fatalf("callback should not run after Unsubscribe")
	})
	b.Unsubscribe("conn-1", "readable")

	b.Raise("conn-1", "readable", nil)
	if q.Tick() {
		t.Fatalf("expected no queued delivery after unsubscribe")
	}
}

func TestBusRaiseActionDeliversToAllTags(t *testing.T) {
	q1 := queue.New(noopArmer{})
	q2 := queue.New(noopArmer{})
	b := New()

	var mu sync.Mutex
	count := 0
	record := func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	}
	b.Subscribe("conn-1", "broadcast", q1, record)
	b.Subscribe("conn-2", "broadcast", q2, record)

	b.RaiseAction("broadcast", nil)
	q1.Tick()
	q2.Tick()

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Fatalf("expected both subscribers to run, got count=%d", count)
	}
}
