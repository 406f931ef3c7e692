// Package codec implements the two wire encodings shared across the
// library: a compact variable-length binary format and a structurally
// equivalent JSON format. Both are driven through the same Encoder/Decoder
// interface so generated record types need not know which wire format they
// are being read from or written to.
//
// Names passed to the interface methods are advisory: the binary codec
// ignores them entirely, while the JSON codec uses them as object keys.
package codec

import "github.com/fenwick-labs/netcore/api"

// Record is implemented by generated message types. EncodeType writes the
// type's own open_type(...)/close bracket and its member values; DecodeType
// reads them back in the same order. TypeID identifies the record for
// Wrap/Unwrap and the codegen base_id scheme.
type Record interface {
	TypeID() int32
	EncodeType(e Encoder) error
	DecodeType(d Decoder) error
}

// Encoder is the write-side capability set shared by the binary and JSON
// variants.
type Encoder interface {
	OpenType(name string, id int32, memberCount int) error
	OpenArray(name string, size int) error
	OpenMap(name string, size int) error
	EncodeBool(name string, v bool) error
	EncodeI32(name string, v int32) error
	EncodeI64(name string, v int64) error
	EncodeF32(name string, v float32) error
	EncodeF64(name string, v float64) error
	EncodeString(name string, v string) error
	EncodeBinary(name string, v []byte) error
	Close() error

	// Bytes returns the bytes written so far.
	Bytes() []byte
}

// Decoder is the read-side capability set shared by the binary and JSON
// variants.
type Decoder interface {
	OpenType(name string) (id int32, memberCount int, err error)
	OpenArray(name string) (size int, err error)
	OpenMap(name string) (size int, err error)
	DecodeBool(name string) (bool, error)
	DecodeI32(name string) (int32, error)
	DecodeI64(name string) (int64, error)
	DecodeF32(name string) (float32, error)
	DecodeF64(name string) (float64, error)
	DecodeString(name string) (string, error)
	DecodeBinary(name string) ([]byte, error)
	Close() error

	// More reports whether unread bytes remain.
	More() bool
	// Peek requires the unread bytes to start with a Wrap sequence and
	// returns the record's type id without consuming any bytes.
	Peek() (id int32, err error)
}

// Kind names the wire format a codec operates on.
type Kind string

const (
	Binary Kind = "binary"
	JSON   Kind = "json"
)

// NewEncoder returns an Encoder for the given wire kind.
func NewEncoder(kind Kind) (Encoder, error) {
	switch kind {
	case Binary:
		return NewBinaryEncoder(), nil
	case JSON:
		return NewJSONEncoder(), nil
	default:
		return nil, api.NewError(api.ErrCodeInvalidArgument, "codec: unknown kind").WithContext("kind", kind)
	}
}

// NewDecoder returns a Decoder for the given wire kind over data.
func NewDecoder(kind Kind, data []byte) (Decoder, error) {
	switch kind {
	case Binary:
		return NewBinaryDecoder(data), nil
	case JSON:
		return NewJSONDecoder(data), nil
	default:
		return nil, api.NewError(api.ErrCodeInvalidArgument, "codec: unknown kind").WithContext("kind", kind)
	}
}

// Wrap writes the self-describing (id, body) envelope: open_array(nil, 2);
// i32 id; the record's own EncodeType body; close.
func Wrap(e Encoder, r Record) error {
	if err := e.OpenArray("", 2); err != nil {
		return err
	}
	if err := e.EncodeI32("", r.TypeID()); err != nil {
		return err
	}
	if err := r.EncodeType(e); err != nil {
		return err
	}
	return e.Close()
}

// Unwrap reads the envelope Wrap writes and dispatches into r.DecodeType,
// verifying the type id matches r.TypeID().
func Unwrap(d Decoder, r Record) error {
	size, err := d.OpenArray("")
	if err != nil {
		return err
	}
	if size != 2 {
		return api.NewError(api.ErrCodeInvalidArgument, "codec: wrap array size must be 2").WithContext("size", size)
	}
	id, err := d.DecodeI32("")
	if err != nil {
		return err
	}
	if id != r.TypeID() {
		return api.NewError(api.ErrCodeInvalidArgument, "codec: type id mismatch").
			WithContext("expected", r.TypeID()).WithContext("got", id)
	}
	if err := r.DecodeType(d); err != nil {
		return err
	}
	return d.Close()
}
