// Package dispatch routes UI requests to service handlers. It enforces the
// concurrency ceiling, caches read-only results, keeps performance counters
// and retries once over a fresh connection when the transport fails.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lydakis/corehost/internal/cache"
	"github.com/lydakis/corehost/internal/config"
	"github.com/lydakis/corehost/internal/conn"
	"github.com/lydakis/corehost/internal/pkg/log"
	"github.com/lydakis/corehost/internal/rpcerr"
	"github.com/lydakis/corehost/internal/services"
	"github.com/lydakis/corehost/internal/stats"
)

// maxReconnectFailures is the failure count up to which a connection error
// triggers one reconnect-and-retry.
const maxReconnectFailures = 2

// Only pure reads are cached.
var cacheableMethods = map[string]bool{
	"getLatestState":      true,
	"getLatestMcpServers": true,
}

var sampleProcessFn = stats.SampleProcess

// Options configure a Dispatcher.
type Options struct {
	Settings config.Connection
	Services *services.Set
	Conn     *conn.Manager
	Logger   log.Logger
}

// Dispatcher is the single entry point for UI requests.
type Dispatcher struct {
	settings config.Connection
	services *services.Set
	conn     *conn.Manager
	log      log.Logger
	now      func() time.Time

	inFlight atomic.Int64

	// mu guards cache, perf and lastMaintenance.
	mu              sync.Mutex
	cache           *cache.Cache
	perf            *stats.Performance
	lastMaintenance time.Time
}

// New builds a Dispatcher and binds the service handlers to the manager's
// connection.
func New(o Options) *Dispatcher {
	d := &Dispatcher{
		settings:        o.Settings,
		services:        o.Services,
		conn:            o.Conn,
		log:             log.Named(o.Logger, "dispatch"),
		now:             time.Now,
		cache:           cache.New(o.Settings.CacheMaxEntries, o.Settings.CacheTTL),
		perf:            stats.NewPerformance(),
		lastMaintenance: time.Now(),
	}
	o.Conn.AddBinder(o.Services)
	return d
}

// Handle runs one request for service.method with payload. Subscription
// methods return their acknowledgement; items follow through opts.
func (d *Dispatcher) Handle(ctx context.Context, service, method string, payload any, opts services.StreamOptions) (result any, err error) {
	key := cache.Fingerprint(service, method, payload)

	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	if limit := d.settings.MaxConcurrentRequests; limit > 0 && n > int64(limit) {
		return nil, rpcerr.New(rpcerr.Capacity, "dispatch", "too many concurrent requests (limit %d)", limit)
	}

	start := d.now()
	defer func() { d.finish(service, method, start, err) }()

	cacheable := cacheableMethods[method]
	if cacheable {
		d.mu.Lock()
		v, ok := d.cache.Get(key)
		d.mu.Unlock()
		if ok {
			d.log.Debugf("cache hit for %s.%s", service, method)
			return v, nil
		}
	}

	st, ok := services.ParseServiceType(d.settings.Namespace, service)
	if !ok {
		return nil, rpcerr.New(rpcerr.UnknownService, "dispatch", "unknown service: %s", service)
	}
	h, err := d.services.Handler(st)
	if err != nil {
		return nil, err
	}

	if err := d.conn.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	result, err = h.Call(ctx, method, payload, opts)
	if err != nil {
		failures := d.conn.RecordFailure()
		if !rpcerr.IsConnection(err) || failures > maxReconnectFailures {
			return nil, err
		}
		d.log.Warnf("%s.%s failed with a connection error (failures: %d), reconnecting: %v", service, method, failures, err)
		d.conn.Drop()
		if cerr := d.conn.Connect(ctx); cerr != nil {
			return nil, fmt.Errorf("%w (reconnect failed: %v)", err, cerr)
		}
		result, err = h.Call(ctx, method, payload, opts)
		if err != nil {
			d.conn.RecordFailure()
			return nil, err
		}
	}

	d.conn.MarkSuccess()
	if cacheable {
		d.mu.Lock()
		d.cache.Put(key, result)
		d.mu.Unlock()
	}
	return result, nil
}

func (d *Dispatcher) finish(service, method string, start time.Time, err error) {
	elapsed := d.now().Sub(start)
	if d.settings.SlowRequestThreshold > 0 && elapsed > d.settings.SlowRequestThreshold {
		d.log.Warnf("slow request: %s.%s took %s", service, method, elapsed)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settings.Monitoring {
		d.perf.Record(elapsed, err == nil)
	}
	d.maintainLocked()
}

func (d *Dispatcher) maintainLocked() {
	now := d.now()
	if d.settings.CleanupInterval <= 0 || now.Sub(d.lastMaintenance) < d.settings.CleanupInterval {
		return
	}
	d.lastMaintenance = now
	if n := d.cache.CleanupExpired(); n > 0 {
		d.log.Debugf("purged %d expired cache entries", n)
	}
	if d.perf.ResetIfAbove(stats.ResetThreshold) {
		d.log.Infof("performance counters reset after %d requests", stats.ResetThreshold)
	}
}

// InFlight returns the number of requests currently being handled.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// Report is the full stats snapshot.
type Report struct {
	Connection    conn.Info                   `json:"connection"`
	Performance   stats.Report                `json:"performance"`
	Cache         cache.Stats                 `json:"cache"`
	Process       *stats.Process              `json:"process,omitempty"`
	Subscriptions []services.SubscriptionInfo `json:"subscriptions"`
}

// Stats snapshots connection, performance, cache and process state.
func (d *Dispatcher) Stats() Report {
	info := d.conn.Info()
	info.ActiveRequests = d.InFlight()

	d.mu.Lock()
	r := Report{
		Connection:  info,
		Performance: d.perf.Report(),
		Cache:       d.cache.Stats(),
	}
	d.mu.Unlock()

	if p, err := sampleProcessFn(); err == nil {
		r.Process = &p
	}
	r.Subscriptions = d.services.Registry().List()
	if r.Subscriptions == nil {
		r.Subscriptions = []services.SubscriptionInfo{}
	}
	return r
}

// ClearCache drops every cached result and the hit counters.
func (d *Dispatcher) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Clear()
	d.log.Infof("cache cleared")
}

// ResetStats zeroes the performance counters.
func (d *Dispatcher) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.perf.Reset()
	d.log.Infof("performance counters reset")
}

// ResetConnection drops the connection, clears cache and counters and
// connects again.
func (d *Dispatcher) ResetConnection(ctx context.Context) error {
	d.log.Infof("resetting connection")
	d.conn.Drop()
	d.mu.Lock()
	d.cache.Clear()
	d.perf.Reset()
	d.mu.Unlock()
	return d.conn.Connect(ctx)
}

// Unsubscribe cancels a live subscription.
func (d *Dispatcher) Unsubscribe(id string) error {
	if !d.services.Registry().Cancel(id) {
		return rpcerr.New(rpcerr.Stream, "unsubscribe", "no subscription %q", id)
	}
	return nil
}

// Close cancels every subscription, waits for them within ctx and drops
// the connection.
func (d *Dispatcher) Close(ctx context.Context) error {
	err := d.services.Registry().Shutdown(ctx)
	if cerr := d.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
