package conn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lydakis/corehost/internal/backoff"
	"github.com/lydakis/corehost/internal/config"
	"github.com/lydakis/corehost/internal/coretest"
	"github.com/lydakis/corehost/internal/rpcerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type fakeConn struct {
	id     int
	closed atomic.Bool
	invoke func(ctx context.Context, method string) error
}

func (f *fakeConn) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	if f.invoke != nil {
		return f.invoke(ctx, method)
	}
	return nil
}

func (f *fakeConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

type recordingBinder struct {
	mu    sync.Mutex
	binds []grpc.ClientConnInterface
}

func (b *recordingBinder) Bind(cc grpc.ClientConnInterface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.binds = append(b.binds, cc)
}

func (b *recordingBinder) last() grpc.ClientConnInterface {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.binds) == 0 {
		return nil
	}
	return b.binds[len(b.binds)-1]
}

func testSettings() config.Connection {
	s := config.DefaultConnection()
	s.Retry = backoff.Policy{MaxRetries: 3, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 1.5}
	s.ConnectTimeout = time.Second
	return s
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestConnectFailsThenSucceedsResetsFailures(t *testing.T) {
	var dials int
	var sleeps sleepRecorder
	binder := &recordingBinder{}
	m := New(Options{
		Settings: testSettings(),
		Binders:  []Binder{binder},
		Sleep:    sleeps.sleep,
		Dial: func(ctx context.Context, endpoint string, timeout time.Duration) (Conn, error) {
			dials++
			if dials < 3 {
				return nil, errors.New("connection refused")
			}
			return &fakeConn{id: dials}, nil
		},
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if dials != 3 {
		t.Fatalf("dials = %d, want 3", dials)
	}
	if diff := cmp.Diff([]time.Duration{2 * time.Second, 3 * time.Second}, sleeps.delays); diff != "" {
		t.Fatalf("delays mismatch (-want +got):\n%s", diff)
	}
	if m.Failures() != 0 {
		t.Fatalf("Failures() = %d, want 0", m.Failures())
	}
	if !m.Connected() || binder.last() == nil {
		t.Fatal("connection not published to binder")
	}
}

func TestConnectExhaustionCountsOneFailure(t *testing.T) {
	var dials int
	var sleeps sleepRecorder
	m := New(Options{
		Settings: testSettings(),
		Sleep:    sleeps.sleep,
		Dial: func(ctx context.Context, endpoint string, timeout time.Duration) (Conn, error) {
			dials++
			return nil, errors.New("connection refused")
		},
	})

	err := m.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect() error = nil, want failure")
	}
	if dials != 4 {
		t.Fatalf("dials = %d, want 4", dials)
	}
	if rpcerr.KindOf(err) != rpcerr.Transport {
		t.Fatalf("KindOf() = %v, want transport", rpcerr.KindOf(err))
	}
	if m.Failures() != 1 {
		t.Fatalf("Failures() = %d, want 1", m.Failures())
	}
	if m.Connected() {
		t.Fatal("Connected() = true after failed connect")
	}
}

func TestEnsureConnectedHealthChecksAfterInterval(t *testing.T) {
	var dials int
	var probes int
	probeErr := error(nil)
	binder := &recordingBinder{}
	now := time.Unix(1_700_000_000, 0)

	settings := testSettings()
	settings.HealthCheckInterval = time.Minute
	m := New(Options{
		Settings: settings,
		Binders:  []Binder{binder},
		Dial: func(ctx context.Context, endpoint string, timeout time.Duration) (Conn, error) {
			dials++
			return &fakeConn{id: dials}, nil
		},
		Probe: func(ctx context.Context, cc grpc.ClientConnInterface) error {
			probes++
			return probeErr
		},
	})
	m.now = func() time.Time { return now }

	ctx := context.Background()
	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}
	first := binder.last().(*fakeConn)

	now = now.Add(30 * time.Second)
	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}
	if probes != 0 || dials != 1 {
		t.Fatalf("probes, dials = %d, %d, want 0, 1", probes, dials)
	}

	now = now.Add(2 * time.Minute)
	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}
	if probes != 1 || dials != 1 {
		t.Fatalf("probes, dials = %d, %d, want 1, 1", probes, dials)
	}

	now = now.Add(2 * time.Minute)
	probeErr = errors.New("connection reset")
	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}
	if dials != 2 {
		t.Fatalf("dials = %d, want 2 after failed health check", dials)
	}
	if !first.closed.Load() {
		t.Fatal("old connection not closed")
	}
	if binder.last().(*fakeConn) == first {
		t.Fatal("binder still holds the old connection")
	}
	if m.Failures() != 0 {
		t.Fatalf("Failures() = %d, want 0 after reconnect", m.Failures())
	}
}

func TestDropUnbindsAndCloses(t *testing.T) {
	binder := &recordingBinder{}
	fc := &fakeConn{}
	m := New(Options{
		Settings: testSettings(),
		Binders:  []Binder{binder},
		Dial: func(ctx context.Context, endpoint string, timeout time.Duration) (Conn, error) {
			return fc, nil
		},
	})
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.Drop()
	if binder.last() != nil {
		t.Fatal("binder not cleared on drop")
	}
	if !fc.closed.Load() || m.Connected() {
		t.Fatal("connection not closed on drop")
	}
	if err := m.HealthCheck(context.Background()); rpcerr.KindOf(err) != rpcerr.Transport {
		t.Fatalf("HealthCheck() after drop = %v, want transport error", err)
	}
}

func TestAddBinderBindsCurrentConnection(t *testing.T) {
	m := New(Options{
		Settings: testSettings(),
		Dial: func(ctx context.Context, endpoint string, timeout time.Duration) (Conn, error) {
			return &fakeConn{}, nil
		},
	})
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	b := &recordingBinder{}
	m.AddBinder(b)
	if b.last() == nil {
		t.Fatal("late binder not bound")
	}
}

func TestInfo(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := New(Options{
		Settings: testSettings(),
		Dial: func(ctx context.Context, endpoint string, timeout time.Duration) (Conn, error) {
			return &fakeConn{}, nil
		},
	})
	m.now = func() time.Time { return now }

	info := m.Info()
	if info.Connected || info.LastSuccessfulConnection != nil {
		t.Fatalf("Info() before connect = %+v", info)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	now = now.Add(5 * time.Second)
	m.RecordFailure()

	info = m.Info()
	if !info.Connected || info.Endpoint != "127.0.0.1:26040" || info.ConnectionFailures != 1 {
		t.Fatalf("Info() = %+v", info)
	}
	if info.LastSuccessfulConnection == nil || *info.LastSuccessfulConnection != 5 {
		t.Fatalf("LastSuccessfulConnection = %v, want 5", info.LastSuccessfulConnection)
	}
	if info.HealthCheckIntervalSecs != 60 || info.MaxConcurrentRequests != 100 || !info.PerformanceMonitoringEnabled {
		t.Fatalf("Info() settings = %+v", info)
	}
}

func TestGRPCDialerAndHealthProbe(t *testing.T) {
	core := coretest.New()
	t.Cleanup(core.Close)

	settings := testSettings()
	settings.Endpoint = "passthrough:///coretest"
	binder := &recordingBinder{}
	m := New(Options{
		Settings: settings,
		Binders:  []Binder{binder},
		Dial:     GRPCDialer(core.DialOptions()...),
	})
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := m.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	core.Health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := m.HealthCheck(ctx); err == nil {
		t.Fatal("HealthCheck() error = nil, want NOT_SERVING failure")
	}
}

func TestHealthProbeTreatsUnimplementedAsAlive(t *testing.T) {
	fc := &fakeConn{invoke: func(ctx context.Context, method string) error {
		return status.Error(codes.Unimplemented, "unknown service grpc.health.v1.Health")
	}}
	if err := HealthProbe(context.Background(), fc); err != nil {
		t.Fatalf("HealthProbe() error = %v, want nil", err)
	}

	fc.invoke = func(ctx context.Context, method string) error {
		return status.Error(codes.Unavailable, "connection refused")
	}
	if err := HealthProbe(context.Background(), fc); !rpcerr.IsConnection(err) {
		t.Fatalf("HealthProbe() error = %v, want connection error", err)
	}
}

func TestTarget(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:26040":         "passthrough:///127.0.0.1:26040",
		"dns:///core.local:26040": "dns:///core.local:26040",
		"unix:///tmp/core.sock":   "unix:///tmp/core.sock",
	}
	for in, want := range tests {
		if got := target(in); got != want {
			t.Fatalf("target(%q) = %q, want %q", in, got, want)
		}
	}
}
