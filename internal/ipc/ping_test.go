package ipc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lydakis/corehost/internal/uisink"
)

func TestPingChecksNonce(t *testing.T) {
	allowAnyPeer(t)
	_, socketPath := startServer(t, func(ctx context.Context, sess *Session, req *Request) uisink.Response {
		return uisink.OK(req.RequestID, map[string]any{"sessions": 1}, false)
	})

	if err := Ping(socketPath, "secret", time.Second); err != nil {
		t.Fatalf("Ping(secret) error = %v", err)
	}
	if err := Ping(socketPath, "stale", time.Second); !errors.Is(err, ErrNonceRejected) {
		t.Fatalf("Ping(stale) error = %v, want ErrNonceRejected", err)
	}
}

func TestReachable(t *testing.T) {
	allowAnyPeer(t)
	_, socketPath := startServer(t, func(ctx context.Context, sess *Session, req *Request) uisink.Response {
		return uisink.OK(req.RequestID, nil, false)
	})

	if !Reachable(socketPath, time.Second) {
		t.Fatal("Reachable() = false for a listening daemon")
	}
	missing := filepath.Join(t.TempDir(), "none.sock")
	if Reachable(missing, 100*time.Millisecond) {
		t.Fatal("Reachable() = true for a missing socket")
	}
	if err := Ping(missing, "secret", 100*time.Millisecond); err == nil {
		t.Fatal("Ping() error = nil for a missing socket")
	}
}
