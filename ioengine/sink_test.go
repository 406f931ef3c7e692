package ioengine

import "testing"

func TestSinkProduceGrowsAndReportsSize(t *testing.T) {
	s := NewSink(NewSliceResizer(0), 0)
	if s.Size() != 0 {
		t.Fatalf("expected empty sink, got size %d", s.Size())
	}

	n := s.Produce([]byte("hello"))
	if n != 5 {
		t.Fatalf("expected size 5 after produce, got %d", n)
	}
	if string(s.Bytes()) != "hello" {
		t.Fatalf("expected contents %q, got %q", "hello", s.Bytes())
	}
}

func TestSinkRespectsMaximum(t *testing.T) {
	s := NewSink(NewSliceResizer(0), 4)
	if s.Full() {
		t.Fatalf("fresh sink should not be full")
	}

	n := s.Produce([]byte("abcd"))
	if n != 4 {
		t.Fatalf("expected size 4, got %d", n)
	}
	if !s.Full() {
		t.Fatalf("expected sink to report full at maximum")
	}
	if s.Headroom() != 0 {
		t.Fatalf("expected zero headroom, got %d", s.Headroom())
	}

	if n := s.Produce([]byte("e")); n != 0 {
		t.Fatalf("expected produce beyond maximum to fail, got %d", n)
	}
}

func TestSinkHeadroomLimit(t *testing.T) {
	s := NewSink(NewSliceResizer(0), 10)
	s.Produce([]byte("abc"))
	if got := s.HeadroomLimit(3); got != 3 {
		t.Fatalf("expected limited headroom 3, got %d", got)
	}
	if got := s.HeadroomLimit(100); got != 7 {
		t.Fatalf("expected headroom 7, got %d", got)
	}
}
