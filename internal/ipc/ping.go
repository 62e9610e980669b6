package ipc

import (
	"errors"
	"net"
	"time"
)

// ErrNonceRejected is the failure a daemon answers with when a request
// carries a nonce other than its own.
var ErrNonceRejected = errors.New("nonce mismatch")

// Reachable reports whether anything accepts connections on socketPath.
func Reachable(socketPath string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping runs a stats round trip against the daemon on socketPath. It returns
// ErrNonceRejected when the daemon does not own nonce.
func Ping(socketPath, nonce string, timeout time.Duration) error {
	c, err := Dial(socketPath, nonce)
	if err != nil {
		return err
	}
	defer c.Close()

	_ = c.SetDeadline(time.Now().Add(timeout))
	f, err := c.Call(&Request{Type: TypeStats}, nil)
	if err != nil {
		return err
	}
	if f.Error != nil && *f.Error == ErrNonceRejected.Error() {
		return ErrNonceRejected
	}
	return nil
}
