package protocol

import (
	"bufio"
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTripUnmasked(t *testing.T) {
	f := &WSFrame{IsFinal: true, Opcode: OpcodeText, PayloadLen: 5, Payload: []byte("hello")}
	data, err := EncodeFrameToBytesWithMask(f, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, n, err := DecodeFrameFromBytes(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(data) {
		t.Fatalf("consumed %d bytes, want %d", n, len(data))
	}
	if !got.IsFinal || got.Opcode != OpcodeText || string(got.Payload) != "hello" {
		t.Fatalf("unexpected decoded frame: %+v", got)
	}
}

func TestEncodeDecodeRoundTripMasked(t *testing.T) {
	f := &WSFrame{IsFinal: true, Opcode: OpcodeBinary, PayloadLen: 3, Payload: []byte{1, 2, 3}, MaskKey: [4]byte{0xAA, 0xBB, 0xCC, 0xDD}}
	data, err := EncodeFrameToBytesWithMask(f, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if data[1]&MaskBit == 0 {
		t.Fatalf("expected mask bit set in encoded header")
	}
	got, _, err := DecodeFrameFromBytes(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got.Payload, []byte{1, 2, 3}) {
		t.Fatalf("unexpected unmasked payload: %v", got.Payload)
	}
}

func TestDecodeFrameFromBytesReportsIncomplete(t *testing.T) {
	f := &WSFrame{IsFinal: true, Opcode: OpcodeText, PayloadLen: 5, Payload: []byte("hello")}
	data, _ := EncodeFrameToBytesWithMask(f, false)
	got, n, err := DecodeFrameFromBytes(data[:len(data)-2])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil || n != 0 {
		t.Fatalf("expected incomplete frame to report (nil, 0), got (%v, %d)", got, n)
	}
}

func TestReadFrameParsesStreamedFrame(t *testing.T) {
	f := &WSFrame{IsFinal: true, Opcode: OpcodePing, PayloadLen: 4, Payload: []byte("ping")}
	data, _ := EncodeFrameToBytesWithMask(f, false)
	r := bufio.NewReader(bytes.NewReader(data))
	got, err := ReadFrame(r, MaxFramePayload)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Opcode != OpcodePing || string(got.Payload) != "ping" {
		t.Fatalf("unexpected frame: %+v", got)
	}
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	f := &WSFrame{IsFinal: true, Opcode: OpcodeBinary, PayloadLen: 100, Payload: make([]byte, 100)}
	data, _ := EncodeFrameToBytesWithMask(f, false)
	r := bufio.NewReader(bytes.NewReader(data))
	if _, err := ReadFrame(r, 10); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}
