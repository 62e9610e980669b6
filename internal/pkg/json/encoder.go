package json

import "io"

// Encoder writes newline-delimited JSON values to a stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates a new JSON encoder that wraps the provided io.Writer
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes v followed by a newline in a single Write, so a frame is
// never split across two writes on a socket.
func (e *Encoder) Encode(v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	_, err = e.w.Write(append(data, '\n'))
	return err
}
