// Package codegen reads the JSON schema that describes a set of wire
// records (copyright, version, namespace, an optional base_id, and a list
// of declarations with typed members) and emits a Go source file whose
// record types and Encode/Decode methods produce byte-exact wire output
// against codec.Encoder/codec.Decoder, regardless of which language
// emitted the bytes on the other end.
package codegen

import "encoding/json"

// Schema is the top-level codegen input document.
type Schema struct {
	Copyright    string        `json:"copyright"`
	Version      string        `json:"version"`
	Namespace    string        `json:"namespace"`
	BaseID       int32         `json:"base_id"`
	Declarations []Declaration `json:"declarations"`
}

// Declaration describes one record type.
type Declaration struct {
	Name        string   `json:"name"`
	Orientation string   `json:"orientation"`
	Members     []Member `json:"members"`
}

// Member describes one field of a Declaration. Type is one of
// bool, i32, i64, f32, f64, string, binary, or any of those suffixed
// with [] for an array of that scalar.
type Member struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ParseSchema unmarshals raw JSON schema bytes.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
