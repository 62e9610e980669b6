package ipc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lydakis/corehost/internal/pkg/json"
	"github.com/lydakis/corehost/internal/uisink"
)

// Client holds one session with the daemon.
type Client struct {
	nonce string
	conn  net.Conn

	wmu sync.Mutex
	enc *json.Encoder
	dec *json.Decoder
}

// Dial opens a session on the daemon socket.
func Dial(socketPath, nonce string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return &Client{
		nonce: nonce,
		conn:  conn,
		enc:   json.NewEncoder(conn),
		dec:   json.NewDecoder(conn),
	}, nil
}

// Send writes req, filling in the nonce and a request id when missing.
func (c *Client) Send(req *Request) error {
	req.Nonce = c.nonce
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.enc.Encode(req); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	return nil
}

// Next reads the next frame. Frames arrive in the order the daemon wrote
// them; Next must not be called concurrently.
func (c *Client) Next() (*Frame, error) {
	var f Frame
	if err := c.dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &f, nil
}

// Call sends req and waits for its non-streaming response. Frames for other
// requests, streamed items and host events are passed to other when it is
// not nil.
func (c *Client) Call(req *Request, other func(*Frame)) (*Frame, error) {
	if err := c.Send(req); err != nil {
		return nil, err
	}
	for {
		f, err := c.Next()
		if err != nil {
			return nil, err
		}
		if f.Type == uisink.TypeResponse && !f.IsStreaming && (f.RequestID == req.RequestID || f.RequestID == "") {
			return f, nil
		}
		if other != nil {
			other(f)
		}
	}
}

// SetDeadline bounds reads and writes on the session.
func (c *Client) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Err returns the frame's error, if any.
func (f *Frame) Err() error {
	if f.Error == nil {
		return nil
	}
	return errors.New(*f.Error)
}
