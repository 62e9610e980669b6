package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lydakis/corehost/internal/backoff"
	"github.com/lydakis/corehost/internal/config"
	"github.com/lydakis/corehost/internal/conn"
	"github.com/lydakis/corehost/internal/coretest"
	"github.com/lydakis/corehost/internal/dispatch"
	"github.com/lydakis/corehost/internal/hostbridge"
	"github.com/lydakis/corehost/internal/ipc"
	"github.com/lydakis/corehost/internal/pkg/log"
	"github.com/lydakis/corehost/internal/services"
)

type testRuntime struct {
	rt       *runtime
	core     *coretest.Server
	set      *services.Set
	signaled chan struct{}
}

func newTestRuntime(t *testing.T) *testRuntime {
	t.Helper()
	core := coretest.New()
	t.Cleanup(core.Close)

	settings := config.DefaultConnection()
	settings.Endpoint = "passthrough:///coretest"
	settings.Retry = backoff.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	settings.ConnectTimeout = 2 * time.Second
	settings.RequestTimeout = 2 * time.Second

	mgr := conn.New(conn.Options{Settings: settings, Dial: conn.GRPCDialer(core.DialOptions()...)})
	set := services.NewSet(services.Options{Namespace: settings.Namespace, RequestTimeout: settings.RequestTimeout})
	d := dispatch.New(dispatch.Options{Settings: settings, Services: set, Conn: mgr})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})

	tr := &testRuntime{core: core, set: set, signaled: make(chan struct{}, 1)}
	tr.rt = &runtime{
		dispatcher:     d,
		log:            log.Nop(),
		signalShutdown: func() { tr.signaled <- struct{}{} },
	}
	return tr
}

func TestHandleShutdownReturnsAckAndSignalsProcess(t *testing.T) {
	tr := newTestRuntime(t)

	resp := tr.rt.handle(context.Background(), nil, &ipc.Request{Type: ipc.TypeShutdown, RequestID: "r1"})
	if resp.Error != nil {
		t.Fatalf("handle(shutdown) error = %q", *resp.Error)
	}
	if resp.RequestID != "r1" {
		t.Fatalf("handle(shutdown) request id = %q, want r1", resp.RequestID)
	}

	select {
	case <-tr.signaled:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("handle(shutdown) did not signal process")
	}
}

func TestHandleStatsDoesNotSignal(t *testing.T) {
	tr := newTestRuntime(t)

	resp := tr.rt.handle(context.Background(), nil, &ipc.Request{Type: ipc.TypeStats, RequestID: "r2"})
	if resp.Error != nil {
		t.Fatalf("handle(stats) error = %q", *resp.Error)
	}
	if _, ok := resp.Message.(dispatch.Report); !ok {
		t.Fatalf("handle(stats) message = %T, want dispatch.Report", resp.Message)
	}

	select {
	case <-tr.signaled:
		t.Fatal("handle(stats) unexpectedly signaled shutdown")
	default:
	}
}

func TestHandleHostReplyWithoutBridge(t *testing.T) {
	tr := newTestRuntime(t)

	resp := tr.rt.handle(context.Background(), nil, &ipc.Request{Type: ipc.TypeHostReply, RequestID: "abc"})
	if resp.Error == nil || !strings.Contains(*resp.Error, "disabled") {
		t.Fatalf("handle(host_reply) error = %v, want host bridge disabled", resp.Error)
	}
}

func TestHandleHostReplyUnknownInteraction(t *testing.T) {
	tr := newTestRuntime(t)
	tr.rt.bridge = hostbridge.New(hostbridge.Options{})

	resp := tr.rt.handle(context.Background(), nil, &ipc.Request{Type: ipc.TypeHostReply, RequestID: "missing", Message: "yes"})
	if resp.Error == nil || !strings.Contains(*resp.Error, "no pending host interaction") {
		t.Fatalf("handle(host_reply) error = %v, want no pending interaction", resp.Error)
	}
}

func TestStreamingSubscriptionEndsWithSession(t *testing.T) {
	tr := newTestRuntime(t)
	tr.core.Handle("/cline.StateService/subscribeToState", func(ctx context.Context, req any, send func(any) error) error {
		<-ctx.Done()
		return ctx.Err()
	})

	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	srv := ipc.NewServer(socketPath, "secret", tr.rt.handle, log.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(srv.Stop)

	client, err := ipc.Dial(socketPath, "secret")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	f, err := client.Call(&ipc.Request{
		Service:   "cline.StateService",
		Method:    "subscribeToState",
		Streaming: true,
	}, nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if err := f.Err(); err != nil {
		t.Fatalf("subscribe error = %v", err)
	}
	if n := tr.set.Registry().Len(); n != 1 {
		t.Fatalf("live subscriptions = %d, want 1", n)
	}

	_ = client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for tr.set.Registry().Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription still running after session closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscriptionID(t *testing.T) {
	tests := []struct {
		msg  any
		want string
	}{
		{map[string]any{"subscription_id": "s1"}, "s1"},
		{map[string]any{"subscribed": true}, ""},
		{"text", ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := subscriptionID(tt.msg); got != tt.want {
			t.Fatalf("subscriptionID(%v) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}
