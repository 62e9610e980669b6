//go:build amd64 || arm64

// Package json provides a unified interface for JSON encoding and decoding.
// Sonic is used where its JIT is available; other architectures fall back
// to go-json.
package json

import (
	"io"

	"github.com/bytedance/sonic"
)

const Library = "github.com/bytedance/sonic"

var api = sonic.ConfigStd

// Marshal returns the JSON encoding of v with map keys sorted.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent is Marshal with each element on its own indented line.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses JSON data into v.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Valid reports whether data is valid JSON.
func Valid(data []byte) bool {
	return api.Valid(data)
}

// Decoder reads JSON values from a stream.
type Decoder struct {
	dec sonic.Decoder
}

// NewDecoder creates a new JSON decoder that wraps the provided io.Reader
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: api.NewDecoder(r)}
}

// Decode decodes the next JSON value into v.
func (d *Decoder) Decode(v any) error {
	return d.dec.Decode(v)
}

func (d *Decoder) Buffered() io.Reader {
	return d.dec.Buffered()
}
