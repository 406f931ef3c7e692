// File: codec/json.go
//
// JSON wire format: RFC 8259 text, 4-space indentation, Type and Map both
// render as JSON objects keyed by member name, Array renders as a JSON
// array, and Wrap produces `[id, {...}]`. encode_binary is base64, a
// choice the reference implementation leaves open since the JSON codec
// is not the interoperability-critical one.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
)

// orderedObject preserves field insertion order across MarshalJSON so
// output is deterministic even though Go maps are not.
type orderedObject struct {
	keys []string
	vals []any
}

func newOrderedObject() *orderedObject {
	return &orderedObject{}
}

func (o *orderedObject) set(key string, val any) {
	o.keys = append(o.keys, key)
	o.vals = append(o.vals, val)
}

func (o *orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type jsonFrame struct {
	attachName string
	isArray    bool
	arr        []any
	obj        *orderedObject
}

// JSONEncoder builds a JSON document incrementally through the same
// Encoder capability set the binary codec implements.
type JSONEncoder struct {
	stack   []*jsonFrame
	root    any
	hasRoot bool
}

// NewJSONEncoder returns an empty JSONEncoder.
func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

func (e *JSONEncoder) attach(name string, v any) {
	if len(e.stack) == 0 {
		e.root = v
		e.hasRoot = true
		return
	}
	top := e.stack[len(e.stack)-1]
	if top.isArray {
		top.arr = append(top.arr, v)
	} else {
		top.obj.set(name, v)
	}
}

func (e *JSONEncoder) push(name string, isArray bool) {
	f := &jsonFrame{attachName: name, isArray: isArray}
	if !isArray {
		f.obj = newOrderedObject()
	}
	e.stack = append(e.stack, f)
}

func (e *JSONEncoder) OpenType(name string, _ int32, _ int) error {
	e.push(name, false)
	return nil
}

func (e *JSONEncoder) OpenArray(name string, _ int) error {
	e.push(name, true)
	return nil
}

func (e *JSONEncoder) OpenMap(name string, _ int) error {
	e.push(name, false)
	return nil
}

func (e *JSONEncoder) EncodeBool(name string, v bool) error {
	e.attach(name, v)
	return nil
}

func (e *JSONEncoder) EncodeI32(name string, v int32) error {
	e.attach(name, v)
	return nil
}

func (e *JSONEncoder) EncodeI64(name string, v int64) error {
	e.attach(name, v)
	return nil
}

func (e *JSONEncoder) EncodeF32(name string, v float32) error {
	e.attach(name, v)
	return nil
}

func (e *JSONEncoder) EncodeF64(name string, v float64) error {
	e.attach(name, v)
	return nil
}

func (e *JSONEncoder) EncodeString(name string, v string) error {
	e.attach(name, v)
	return nil
}

func (e *JSONEncoder) EncodeBinary(name string, v []byte) error {
	e.attach(name, base64.StdEncoding.EncodeToString(v))
	return nil
}

func (e *JSONEncoder) Close() error {
	if len(e.stack) == 0 {
		return errParse("close with nothing open")
	}
	top := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]

	var value any
	if top.isArray {
		if top.arr == nil {
			value = []any{}
		} else {
			value = top.arr
		}
	} else {
		value = top.obj
	}
	e.attach(top.attachName, value)
	return nil
}

// Bytes marshals the built document as RFC 8259 text with 4-space
// indentation. Valid only once every Open has a matching Close.
func (e *JSONEncoder) Bytes() []byte {
	if !e.hasRoot {
		return nil
	}
	out, err := json.MarshalIndent(e.root, "", "    ")
	if err != nil {
		return nil
	}
	return out
}

// JSONDecoder reads a document written by JSONEncoder (or any
// structurally equivalent RFC 8259 text).
type JSONDecoder struct {
	root         any
	rootConsumed bool
	stack        []*jsonDecodeFrame
}

type jsonDecodeFrame struct {
	isArray bool
	arr     []any
	idx     int
	obj     map[string]any
}

// NewJSONDecoder parses data as JSON, keeping numbers as json.Number so
// i64 values round-trip exactly.
func NewJSONDecoder(data []byte) *JSONDecoder {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var root any
	_ = dec.Decode(&root)
	return &JSONDecoder{root: root}
}

func (d *JSONDecoder) next(name string) (any, error) {
	if len(d.stack) == 0 {
		if d.rootConsumed {
			return nil, errParse("no more values at top level")
		}
		d.rootConsumed = true
		return d.root, nil
	}
	top := d.stack[len(d.stack)-1]
	if top.isArray {
		if top.idx >= len(top.arr) {
			return nil, errParse("array exhausted")
		}
		v := top.arr[top.idx]
		top.idx++
		return v, nil
	}
	v, ok := top.obj[name]
	if !ok {
		return nil, errParse("missing field " + name)
	}
	return v, nil
}

func (d *JSONDecoder) openContainer(name string, wantArray bool) (int, map[string]any, []any, error) {
	raw, err := d.next(name)
	if err != nil {
		return 0, nil, nil, err
	}
	if wantArray {
		arr, ok := raw.([]any)
		if !ok {
			return 0, nil, nil, errParse("expected JSON array")
		}
		d.stack = append(d.stack, &jsonDecodeFrame{isArray: true, arr: arr})
		return len(arr), nil, arr, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return 0, nil, nil, errParse("expected JSON object")
	}
	d.stack = append(d.stack, &jsonDecodeFrame{isArray: false, obj: obj})
	return len(obj), obj, nil, nil
}

func (d *JSONDecoder) OpenType(name string) (int32, int, error) {
	size, _, _, err := d.openContainer(name, false)
	return 0, size, err
}

func (d *JSONDecoder) OpenArray(name string) (int, error) {
	size, _, _, err := d.openContainer(name, true)
	return size, err
}

func (d *JSONDecoder) OpenMap(name string) (int, error) {
	size, _, _, err := d.openContainer(name, false)
	return size, err
}

func (d *JSONDecoder) DecodeBool(name string) (bool, error) {
	v, err := d.next(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errParse("expected bool")
	}
	return b, nil
}

func (d *JSONDecoder) decodeNumber(name string) (json.Number, error) {
	v, err := d.next(name)
	if err != nil {
		return "", err
	}
	n, ok := v.(json.Number)
	if !ok {
		return "", errParse("expected number")
	}
	return n, nil
}

func (d *JSONDecoder) DecodeI32(name string) (int32, error) {
	n, err := d.decodeNumber(name)
	if err != nil {
		return 0, err
	}
	v, err := n.Int64()
	if err != nil {
		return 0, errParse("invalid i32")
	}
	return int32(v), nil
}

func (d *JSONDecoder) DecodeI64(name string) (int64, error) {
	n, err := d.decodeNumber(name)
	if err != nil {
		return 0, err
	}
	v, err := n.Int64()
	if err != nil {
		return 0, errParse("invalid i64")
	}
	return v, nil
}

func (d *JSONDecoder) DecodeF32(name string) (float32, error) {
	n, err := d.decodeNumber(name)
	if err != nil {
		return 0, err
	}
	v, err := n.Float64()
	if err != nil {
		return 0, errParse("invalid f32")
	}
	return float32(v), nil
}

func (d *JSONDecoder) DecodeF64(name string) (float64, error) {
	n, err := d.decodeNumber(name)
	if err != nil {
		return 0, err
	}
	v, err := n.Float64()
	if err != nil {
		return 0, errParse("invalid f64")
	}
	return v, nil
}

func (d *JSONDecoder) DecodeString(name string) (string, error) {
	v, err := d.next(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errParse("expected string")
	}
	return s, nil
}

func (d *JSONDecoder) DecodeBinary(name string) ([]byte, error) {
	s, err := d.DecodeString(name)
	if err != nil {
		return nil, err
	}
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errParse("invalid base64 binary")
	}
	return out, nil
}

func (d *JSONDecoder) Close() error {
	if len(d.stack) == 0 {
		return errParse("close with nothing open")
	}
	d.stack = d.stack[:len(d.stack)-1]
	return nil
}

func (d *JSONDecoder) More() bool {
	return !d.rootConsumed
}

// Peek requires the document to be a two-element array whose first
// element is a number, returning it without consuming anything.
func (d *JSONDecoder) Peek() (int32, error) {
	arr, ok := d.root.([]any)
	if !ok || len(arr) != 2 {
		return 0, errParse("data is not a wrapped type")
	}
	n, ok := arr[0].(json.Number)
	if !ok {
		return 0, errParse("data is not a wrapped type")
	}
	v, err := n.Int64()
	if err != nil {
		return 0, errParse("data is not a wrapped type")
	}
	return int32(v), nil
}
