package protocol

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"
)

func TestSocketReassemblesFragmentedMessage(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})

	sock := NewSocket("test", serverConn, SocketConfig{
		OnMessage: func(opcode byte, data []byte) {
			mu.Lock()
			got = append([]byte{}, data...)
			mu.Unlock()
			close(done)
		},
	})
	sock.Start()

	first := &WSFrame{IsFinal: false, Opcode: OpcodeText, Payload: []byte("Hello ")}
	second := &WSFrame{IsFinal: true, Opcode: OpcodeContinuation, Payload: []byte("World")}
	for _, f := range []*WSFrame{first, second} {
		f.PayloadLen = int64(len(f.Payload))
		data, err := EncodeFrameToBytesWithMask(f, false)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := clientConn.Write(data); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for reassembled message")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != "Hello World" {
		t.Fatalf("got %q, want %q", got, "Hello World")
	}
}

func TestSocketAutoRespondsToPingWithPong(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	sock := NewSocket("test", serverConn, SocketConfig{})
	sock.Start()

	ping := &WSFrame{IsFinal: true, Opcode: OpcodePing, Payload: []byte("hi"), PayloadLen: 2}
	data, _ := EncodeFrameToBytesWithMask(ping, false)
	if _, err := clientConn.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(clientConn)
	reply, err := ReadFrame(r, MaxFramePayload)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if reply.Opcode != OpcodePong || string(reply.Payload) != "hi" {
		t.Fatalf("unexpected reply frame: %+v", reply)
	}
}

func TestSocketCloseHandshakeReportsClean(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	closed := make(chan bool, 1)
	sock := NewSocket("test", serverConn, SocketConfig{
		OnClose: func(code uint16, reason string, clean bool) {
			closed <- clean
		},
	})
	sock.Start()

	closeFrame := &WSFrame{IsFinal: true, Opcode: OpcodeClose, Payload: encodeClosePayload(1000, "bye")}
	closeFrame.PayloadLen = int64(len(closeFrame.Payload))
	data, _ := EncodeFrameToBytesWithMask(closeFrame, false)
	if _, err := clientConn.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case clean := <-closed:
		if !clean {
			t.Fatalf("expected clean close, got clean=false")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for close callback")
	}
}

func TestSocketSendMessageFragmentsLargePayload(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	sock := NewSocket("test", serverConn, SocketConfig{FragmentThreshold: 4})
	sock.Start()

	if err := sock.SendMessage(OpcodeText, []byte("abcdefgh")); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(clientConn)

	f1, err := ReadFrame(r, MaxFramePayload)
	if err != nil {
		t.Fatalf("ReadFrame 1: %v", err)
	}
	if f1.IsFinal || f1.Opcode != OpcodeText || string(f1.Payload) != "abcd" {
		t.Fatalf("unexpected first frame: %+v", f1)
	}

	f2, err := ReadFrame(r, MaxFramePayload)
	if err != nil {
		t.Fatalf("ReadFrame 2: %v", err)
	}
	if !f2.IsFinal || f2.Opcode != OpcodeContinuation || string(f2.Payload) != "efgh" {
		t.Fatalf("unexpected second frame: %+v", f2)
	}
}
