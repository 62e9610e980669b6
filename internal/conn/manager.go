// Package conn owns the single shared connection to the core process.
package conn

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lydakis/corehost/internal/backoff"
	"github.com/lydakis/corehost/internal/config"
	"github.com/lydakis/corehost/internal/pkg/log"
	"github.com/lydakis/corehost/internal/rpcerr"
	"google.golang.org/grpc"
)

// Binder receives every newly published connection, or nil when the
// connection is dropped.
type Binder interface {
	Bind(cc grpc.ClientConnInterface)
}

// Options configure a Manager.
type Options struct {
	Settings config.Connection
	Logger   log.Logger
	Binders  []Binder
	// Dial defaults to GRPCDialer().
	Dial DialFunc
	// Probe defaults to HealthProbe.
	Probe ProbeFunc
	// Sleep replaces the wait between connect attempts.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Info is the reportable connection state.
type Info struct {
	Connected bool   `json:"connected"`
	Endpoint  string `json:"endpoint"`
	// LastSuccessfulConnection is seconds since the last successful exchange,
	// nil before the first one.
	LastSuccessfulConnection     *float64 `json:"last_successful_connection"`
	ConnectionFailures           int      `json:"connection_failures"`
	HealthCheckIntervalSecs      float64  `json:"health_check_interval_secs"`
	ActiveRequests               int      `json:"active_requests"`
	MaxConcurrentRequests        int      `json:"max_concurrent_requests"`
	PerformanceMonitoringEnabled bool     `json:"performance_monitoring_enabled"`
}

// Manager connects, health-checks and replaces the core connection.
// Connect, EnsureConnected, HealthCheck and Drop are serialized.
type Manager struct {
	settings config.Connection
	log      log.Logger
	dial     DialFunc
	probe    ProbeFunc
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	mu      sync.Mutex
	cc      Conn
	binders []Binder

	connected   atomic.Bool
	failures    atomic.Int64
	lastSuccess atomic.Int64
}

// New creates a Manager. Nothing is dialed until Connect or EnsureConnected.
func New(o Options) *Manager {
	m := &Manager{
		settings: o.Settings,
		log:      log.Named(o.Logger, "conn"),
		dial:     o.Dial,
		probe:    o.Probe,
		sleep:    o.Sleep,
		now:      time.Now,
		binders:  append([]Binder(nil), o.Binders...),
	}
	if m.dial == nil {
		m.dial = GRPCDialer()
	}
	if m.probe == nil {
		m.probe = HealthProbe
	}
	return m
}

// AddBinder registers b and binds it to the current connection, if any.
func (m *Manager) AddBinder(b Binder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binders = append(m.binders, b)
	if m.cc != nil {
		b.Bind(m.cc)
	}
}

// Connect establishes the connection if there is none, retrying per the
// configured policy.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) error {
	if m.cc != nil {
		return nil
	}

	attempts := m.settings.Retry.Attempts()
	opts := []backoff.Option{backoff.WithName("connect to core"), backoff.WithLogger(m.log)}
	if m.sleep != nil {
		opts = append(opts, backoff.WithSleep(m.sleep))
	}
	cc, err := backoff.Retry(ctx, m.settings.Retry, func(ctx context.Context, attempt int) (Conn, error) {
		m.log.Debugf("connecting to core at %s (attempt %d/%d)", m.settings.Endpoint, attempt+1, attempts)
		return m.dial(ctx, m.settings.Endpoint, m.settings.ConnectTimeout)
	}, opts...)
	if err != nil {
		n := m.failures.Add(1)
		kind := rpcerr.KindOf(err)
		if kind != rpcerr.Timeout {
			kind = rpcerr.Transport
		}
		m.log.Errorf("connecting to core at %s failed (failures: %d): %v", m.settings.Endpoint, n, err)
		return rpcerr.Wrap(kind, "connect", err)
	}

	m.publishLocked(cc)
	m.MarkSuccess()
	m.log.Infof("connected to core at %s", m.settings.Endpoint)
	return nil
}

// EnsureConnected connects when there is no connection, and health-checks
// one that has been quiet for longer than the health check interval. A
// failed check drops the connection and reconnects.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cc == nil {
		return m.connectLocked(ctx)
	}
	if m.now().Sub(m.lastSuccessTime()) < m.settings.HealthCheckInterval {
		return nil
	}
	if err := m.healthLocked(ctx); err != nil {
		n := m.failures.Add(1)
		m.log.Warnf("health check failed (failures: %d): %v; reconnecting", n, err)
		m.dropLocked()
		return m.connectLocked(ctx)
	}
	return nil
}

// HealthCheck probes the current connection.
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthLocked(ctx)
}

func (m *Manager) healthLocked(ctx context.Context) error {
	if m.cc == nil {
		return rpcerr.New(rpcerr.Transport, "health", "not connected")
	}
	_, err := backoff.WithTimeout(ctx, m.settings.ConnectTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.probe(ctx, m.cc)
	})
	if err != nil {
		return err
	}
	m.lastSuccess.Store(m.now().UnixNano())
	return nil
}

// Drop closes and forgets the current connection.
func (m *Manager) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked()
}

func (m *Manager) dropLocked() {
	if m.cc == nil {
		return
	}
	old := m.cc
	m.publishLocked(nil)
	if err := old.Close(); err != nil {
		m.log.Debugf("closing old connection: %v", err)
	}
	m.log.Infof("dropped connection to core")
}

func (m *Manager) publishLocked(cc Conn) {
	m.cc = cc
	m.connected.Store(cc != nil)
	for _, b := range m.binders {
		if cc == nil {
			b.Bind(nil)
			continue
		}
		b.Bind(cc)
	}
}

// RecordFailure bumps the failure counter and returns the new value.
func (m *Manager) RecordFailure() int {
	return int(m.failures.Add(1))
}

// MarkSuccess resets the failure counter and stamps the last success.
func (m *Manager) MarkSuccess() {
	m.failures.Store(0)
	m.lastSuccess.Store(m.now().UnixNano())
}

// Failures returns the consecutive failure count.
func (m *Manager) Failures() int {
	return int(m.failures.Load())
}

// Connected reports whether a connection is currently published.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

func (m *Manager) lastSuccessTime() time.Time {
	ns := m.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Info snapshots the connection state. ActiveRequests is left for the
// caller to fill in.
func (m *Manager) Info() Info {
	info := Info{
		Connected:                    m.Connected(),
		Endpoint:                     m.settings.Endpoint,
		ConnectionFailures:           m.Failures(),
		HealthCheckIntervalSecs:      m.settings.HealthCheckInterval.Seconds(),
		MaxConcurrentRequests:        m.settings.MaxConcurrentRequests,
		PerformanceMonitoringEnabled: m.settings.Monitoring,
	}
	if last := m.lastSuccessTime(); !last.IsZero() {
		ago := m.now().Sub(last).Seconds()
		info.LastSuccessfulConnection = &ago
	}
	return info
}

// Close drops the connection.
func (m *Manager) Close() error {
	m.Drop()
	return nil
}
