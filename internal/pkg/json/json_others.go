//go:build !amd64 && !arm64

package json

import (
	"io"

	"github.com/goccy/go-json"
)

const Library = "github.com/goccy/go-json"

// Marshal returns the JSON encoding of v with map keys sorted.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent is Marshal with each element on its own indented line.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses JSON data into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Valid reports whether data is valid JSON.
func Valid(data []byte) bool {
	return json.Valid(data)
}

// Decoder reads JSON values from a stream.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder creates a new JSON decoder that wraps the provided io.Reader
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Decode decodes the next JSON value into v.
func (d *Decoder) Decode(v any) error {
	return d.dec.Decode(v)
}

func (d *Decoder) Buffered() io.Reader {
	return d.dec.Buffered()
}
