//go:build linux

package ioengine

import (
	"os"
	"testing"
	"time"

	"github.com/fenwick-labs/netcore/reactor"
)

func TestPumpReadFillsSinkAndInvokesCallback(t *testing.T) {
	rct, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	defer rct.Close()

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer pw.Close()

	pump, err := NewPump(rct, int(pr.Fd()), func(error) {})
	if err != nil {
		t.Fatalf("NewPump: %v", err)
	}
	defer pump.Close()

	sink := NewSink(NewSliceResizer(0), 5)
	done := make(chan struct{}, 1)
	if err := pump.Read(sink, func(s *Sink) {
		if s.Full() {
			done <- struct{}{}
		}
	}); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if _, err := pw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := rct.Dispatch(1000); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case <-done:
		if string(sink.Bytes()) != "hello" {
			t.Fatalf("expected sink contents %q, got %q", "hello", sink.Bytes())
		}
	default:
		t.Fatalf("expected read callback to fire after one dispatch")
	}
}

func TestPumpWriteDrainsCursorAndInvokesOnWritten(t *testing.T) {
	rct, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	defer rct.Close()

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer pr.Close()

	pump, err := NewPump(rct, int(pw.Fd()), func(error) {})
	if err != nil {
		t.Fatalf("NewPump: %v", err)
	}
	defer pump.Close()

	cursor := NewCursor(BytesSource([]byte("ping")))
	written := make(chan struct{}, 1)
	if err := pump.Write(cursor, func() { written <- struct{}{} }); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := rct.Dispatch(100); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		select {
		case <-written:
			buf := make([]byte, 4)
			if _, err := pr.Read(buf); err != nil {
				t.Fatalf("Read: %v", err)
			}
			if string(buf) != "ping" {
				t.Fatalf("expected %q, got %q", "ping", buf)
			}
			return
		default:
		}
	}
	t.Fatalf("onWritten was never invoked")
}
