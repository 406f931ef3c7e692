// File: codec/binary.go
//
// Binary wire format: booleans are a single byte; signed integers use a
// variable-length sign+magnitude encoding (6 magnitude bits and a sign bit
// in the first byte, 7 magnitude bits per continuation byte, LSB-first,
// continuation signaled by the top bit of every byte but the last);
// floats are fixed-width big-endian IEEE-754; strings and binaries are an
// i64-varint length followed by raw bytes; open_array/open_map write only
// the varint size, no type tag; open_type/close contribute nothing to the
// wire at all, matching the reference binary codec exactly.
package codec

import (
	"encoding/binary"
	"math"

	"github.com/fenwick-labs/netcore/api"
)

func errParse(msg string) error {
	return api.NewError(api.ErrCodeInvalidArgument, "codec: "+msg)
}

func encodeSignedVarint(value int64) []byte {
	neg := value < 0
	var mag uint64
	if neg {
		mag = uint64(-(value + 1)) + 1
	} else {
		mag = uint64(value)
	}

	first := byte(mag & 0x3f)
	if neg {
		first |= 0x40
	}
	mag >>= 6

	out := []byte{first}
	if mag != 0 {
		out[0] |= 0x80
		for mag != 0 {
			out = append(out, byte(mag&0x7f)|0x80)
			mag >>= 7
		}
		out[len(out)-1] &^= 0x80
	}
	return out
}

// decodeSignedVarint returns the decoded value and the number of bytes
// consumed.
func decodeSignedVarint(data []byte) (int64, int, error) {
	if len(data) < 1 {
		return 0, 0, errParse("truncated varint")
	}

	b := data[0]
	neg := b&0x40 != 0
	mag := uint64(b & 0x3f)
	shift := uint(6)
	n := 1

	for b&0x80 != 0 {
		if n >= len(data) {
			return 0, 0, errParse("truncated varint continuation")
		}
		b = data[n]
		mag |= uint64(b&0x7f) << shift
		shift += 7
		n++
	}

	if neg {
		return -int64(mag), n, nil
	}
	return int64(mag), n, nil
}

// BinaryEncoder writes values in the compact wire format described in the
// package doc. open_type/close are no-ops; Wrap/Unwrap in codec.go are
// what give a record an identifiable envelope on the wire.
type BinaryEncoder struct {
	buf []byte
}

// NewBinaryEncoder returns an empty BinaryEncoder.
func NewBinaryEncoder() *BinaryEncoder {
	return &BinaryEncoder{}
}

func (e *BinaryEncoder) OpenType(string, int32, int) error { return nil }

func (e *BinaryEncoder) OpenArray(name string, size int) error {
	return e.EncodeI64(name, int64(size))
}

func (e *BinaryEncoder) OpenMap(name string, size int) error {
	return e.EncodeI64(name, int64(size))
}

func (e *BinaryEncoder) EncodeBool(_ string, v bool) error {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
	return nil
}

func (e *BinaryEncoder) EncodeI32(_ string, v int32) error {
	e.buf = append(e.buf, encodeSignedVarint(int64(v))...)
	return nil
}

func (e *BinaryEncoder) EncodeI64(_ string, v int64) error {
	e.buf = append(e.buf, encodeSignedVarint(v)...)
	return nil
}

func (e *BinaryEncoder) EncodeF32(_ string, v float32) error {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], math.Float32bits(v))
	e.buf = append(e.buf, tmp[:]...)
	return nil
}

func (e *BinaryEncoder) EncodeF64(_ string, v float64) error {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v))
	e.buf = append(e.buf, tmp[:]...)
	return nil
}

func (e *BinaryEncoder) EncodeString(name string, v string) error {
	if err := e.EncodeI64(name, int64(len(v))); err != nil {
		return err
	}
	e.buf = append(e.buf, v...)
	return nil
}

func (e *BinaryEncoder) EncodeBinary(name string, v []byte) error {
	if err := e.EncodeI64(name, int64(len(v))); err != nil {
		return err
	}
	e.buf = append(e.buf, v...)
	return nil
}

func (e *BinaryEncoder) Close() error { return nil }

func (e *BinaryEncoder) Bytes() []byte { return e.buf }

// BinaryDecoder reads values written by BinaryEncoder.
type BinaryDecoder struct {
	data   []byte
	offset int
}

// NewBinaryDecoder wraps data for sequential decode.
func NewBinaryDecoder(data []byte) *BinaryDecoder {
	return &BinaryDecoder{data: data}
}

func (d *BinaryDecoder) remaining() []byte { return d.data[d.offset:] }

func (d *BinaryDecoder) OpenType(string) (int32, int, error) { return 0, 0, nil }

func (d *BinaryDecoder) OpenArray(name string) (int, error) {
	n, err := d.DecodeI64(name)
	return int(n), err
}

func (d *BinaryDecoder) OpenMap(name string) (int, error) {
	n, err := d.DecodeI64(name)
	return int(n), err
}

func (d *BinaryDecoder) DecodeBool(string) (bool, error) {
	if d.offset >= len(d.data) {
		return false, errParse("truncated bool")
	}
	v := d.data[d.offset] != 0
	d.offset++
	return v, nil
}

func (d *BinaryDecoder) DecodeI32(string) (int32, error) {
	v, n, err := decodeSignedVarint(d.remaining())
	if err != nil {
		return 0, err
	}
	d.offset += n
	return int32(v), nil
}

func (d *BinaryDecoder) DecodeI64(string) (int64, error) {
	v, n, err := decodeSignedVarint(d.remaining())
	if err != nil {
		return 0, err
	}
	d.offset += n
	return v, nil
}

func (d *BinaryDecoder) DecodeF32(string) (float32, error) {
	if len(d.remaining()) < 4 {
		return 0, errParse("truncated f32")
	}
	v := math.Float32frombits(binary.BigEndian.Uint32(d.remaining()))
	d.offset += 4
	return v, nil
}

func (d *BinaryDecoder) DecodeF64(string) (float64, error) {
	if len(d.remaining()) < 8 {
		return 0, errParse("truncated f64")
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(d.remaining()))
	d.offset += 8
	return v, nil
}

func (d *BinaryDecoder) DecodeString(name string) (string, error) {
	length, err := d.DecodeI64(name)
	if err != nil {
		return "", err
	}
	if length < 0 || int64(len(d.remaining())) < length {
		return "", errParse("truncated string")
	}
	s := string(d.remaining()[:length])
	d.offset += int(length)
	return s, nil
}

func (d *BinaryDecoder) DecodeBinary(name string) ([]byte, error) {
	length, err := d.DecodeI64(name)
	if err != nil {
		return nil, err
	}
	if length < 0 || int64(len(d.remaining())) < length {
		return nil, errParse("truncated binary")
	}
	out := make([]byte, length)
	copy(out, d.remaining()[:length])
	d.offset += int(length)
	return out, nil
}

func (d *BinaryDecoder) Close() error { return nil }

func (d *BinaryDecoder) More() bool { return d.offset < len(d.data) }

// Peek requires the unread bytes to begin with a Wrap envelope
// (open_array(2); i32 id) and returns the id without consuming any bytes.
func (d *BinaryDecoder) Peek() (int32, error) {
	lookahead := &BinaryDecoder{data: d.data, offset: d.offset}
	size, err := lookahead.OpenArray("")
	if err != nil || size != 2 {
		return 0, errParse("data is not a wrapped type")
	}
	id, err := lookahead.DecodeI32("")
	if err != nil {
		return 0, errParse("data is not a wrapped type")
	}
	return id, nil
}
