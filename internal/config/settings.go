package config

import (
	"os"
	"time"

	"github.com/lydakis/corehost/internal/backoff"
)

// Defaults for every optional setting.
const (
	DefaultEndpoint              = "127.0.0.1:26040"
	DefaultNamespace             = "cline"
	DefaultCodec                 = "proto"
	DefaultConnectTimeout        = 5 * time.Second
	DefaultRequestTimeout        = 10 * time.Second
	DefaultHealthCheckInterval   = 60 * time.Second
	DefaultMaxConcurrentRequests = 100
	DefaultSlowRequestThreshold  = time.Second
	DefaultCacheMaxEntries       = 1000
	DefaultCacheTTL              = 5 * time.Minute
	DefaultCleanupInterval       = 5 * time.Minute
	DefaultHostBridgeListen      = "127.0.0.1:26041"
	DefaultIdleShutdown          = 0
	DefaultLogLevel              = "info"
)

// Connection is the resolved, immutable configuration for the core client.
type Connection struct {
	Endpoint              string
	Namespace             string
	Codec                 string
	ConnectTimeout        time.Duration
	RequestTimeout        time.Duration
	HealthCheckInterval   time.Duration
	Retry                 backoff.Policy
	CacheMaxEntries       int
	CacheTTL              time.Duration
	CleanupInterval       time.Duration
	MaxConcurrentRequests int
	Monitoring            bool
	SlowRequestThreshold  time.Duration
}

// HostBridge is the resolved host bridge configuration.
type HostBridge struct {
	Enabled            bool
	Listen             string
	InteractionTimeout time.Duration
	WorkspacePaths     []string
	HostVersion        string
}

// Daemon is the resolved process configuration.
type Daemon struct {
	IdleShutdown time.Duration
	LogLevel     string
}

// DefaultConnection returns the connection settings used when nothing is
// configured.
func DefaultConnection() Connection {
	return Connection{
		Endpoint:              DefaultEndpoint,
		Namespace:             DefaultNamespace,
		Codec:                 DefaultCodec,
		ConnectTimeout:        DefaultConnectTimeout,
		RequestTimeout:        DefaultRequestTimeout,
		HealthCheckInterval:   DefaultHealthCheckInterval,
		Retry:                 backoff.Default(),
		CacheMaxEntries:       DefaultCacheMaxEntries,
		CacheTTL:              DefaultCacheTTL,
		CleanupInterval:       DefaultCleanupInterval,
		MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		Monitoring:            true,
		SlowRequestThreshold:  DefaultSlowRequestThreshold,
	}
}

// Connection resolves the core client settings. Call Validate first;
// unparsable values fall back to defaults here.
func (c *Config) Connection() Connection {
	out := DefaultConnection()
	if c == nil {
		return out
	}

	core := c.Core
	out.Endpoint = stringOr(core.Endpoint, out.Endpoint)
	out.Namespace = stringOr(core.Namespace, out.Namespace)
	out.Codec = stringOr(core.Codec, out.Codec)
	out.ConnectTimeout = durationOr(core.ConnectTimeout, out.ConnectTimeout)
	out.RequestTimeout = durationOr(core.RequestTimeout, out.RequestTimeout)
	out.HealthCheckInterval = durationOr(core.HealthCheckInterval, out.HealthCheckInterval)
	out.SlowRequestThreshold = durationOr(core.SlowRequestThreshold, out.SlowRequestThreshold)
	if core.MaxConcurrentRequests > 0 {
		out.MaxConcurrentRequests = core.MaxConcurrentRequests
	}
	if core.Monitoring != nil {
		out.Monitoring = *core.Monitoring
	}

	if core.Retry.MaxRetries != nil {
		out.Retry.MaxRetries = *core.Retry.MaxRetries
	}
	out.Retry.InitialDelay = durationOr(core.Retry.InitialDelay, out.Retry.InitialDelay)
	out.Retry.MaxDelay = durationOr(core.Retry.MaxDelay, out.Retry.MaxDelay)
	if core.Retry.Multiplier > 0 {
		out.Retry.Multiplier = core.Retry.Multiplier
	}

	if c.Cache.MaxEntries > 0 {
		out.CacheMaxEntries = c.Cache.MaxEntries
	}
	out.CacheTTL = durationOr(c.Cache.TTL, out.CacheTTL)
	out.CleanupInterval = durationOr(c.Cache.CleanupInterval, out.CleanupInterval)
	return out
}

// HostBridgeSettings resolves the host bridge settings. Workspace paths default to
// the current directory.
func (c *Config) HostBridgeSettings() HostBridge {
	out := HostBridge{Enabled: true, Listen: DefaultHostBridgeListen}
	if c != nil {
		hb := c.HostBridge
		if hb.Enabled != nil {
			out.Enabled = *hb.Enabled
		}
		out.Listen = stringOr(hb.Listen, out.Listen)
		out.InteractionTimeout = durationOr(hb.InteractionTimeout, 0)
		out.WorkspacePaths = append([]string(nil), hb.WorkspacePaths...)
		out.HostVersion = hb.HostVersion
	}
	if len(out.WorkspacePaths) == 0 {
		if cwd, err := os.Getwd(); err == nil {
			out.WorkspacePaths = []string{cwd}
		}
	}
	return out
}

// DaemonSettings resolves the process settings.
func (c *Config) DaemonSettings() Daemon {
	out := Daemon{IdleShutdown: DefaultIdleShutdown, LogLevel: DefaultLogLevel}
	if c == nil {
		return out
	}
	out.IdleShutdown = durationOr(c.Daemon.IdleShutdown, out.IdleShutdown)
	out.LogLevel = stringOr(c.Daemon.LogLevel, out.LogLevel)
	return out
}

// Default returns a Config with every field spelled out, as written by
// `corehost config init`.
func Default() *Config {
	retries := backoff.Default().MaxRetries
	monitoring := true
	enabled := true
	return &Config{
		Core: CoreConfig{
			Endpoint:              DefaultEndpoint,
			Namespace:             DefaultNamespace,
			Codec:                 DefaultCodec,
			ConnectTimeout:        DefaultConnectTimeout.String(),
			RequestTimeout:        DefaultRequestTimeout.String(),
			HealthCheckInterval:   DefaultHealthCheckInterval.String(),
			MaxConcurrentRequests: DefaultMaxConcurrentRequests,
			Monitoring:            &monitoring,
			SlowRequestThreshold:  DefaultSlowRequestThreshold.String(),
			Retry: RetryConfig{
				MaxRetries:   &retries,
				InitialDelay: backoff.Default().InitialDelay.String(),
				MaxDelay:     backoff.Default().MaxDelay.String(),
				Multiplier:   backoff.Default().Multiplier,
			},
		},
		Cache: CacheConfig{
			MaxEntries:      DefaultCacheMaxEntries,
			TTL:             DefaultCacheTTL.String(),
			CleanupInterval: DefaultCleanupInterval.String(),
		},
		HostBridge: HostBridgeConfig{
			Enabled:            &enabled,
			Listen:             DefaultHostBridgeListen,
			InteractionTimeout: "0s",
		},
		Daemon: DaemonConfig{
			IdleShutdown: "0s",
			LogLevel:     DefaultLogLevel,
		},
	}
}

// FillDefaults sets every unset field of cfg to its default, leaving
// configured values (including ${ENV} placeholders) untouched.
func FillDefaults(cfg *Config) {
	d := Default()
	fillString(&cfg.Core.Endpoint, d.Core.Endpoint)
	fillString(&cfg.Core.Namespace, d.Core.Namespace)
	fillString(&cfg.Core.Codec, d.Core.Codec)
	fillString(&cfg.Core.ConnectTimeout, d.Core.ConnectTimeout)
	fillString(&cfg.Core.RequestTimeout, d.Core.RequestTimeout)
	fillString(&cfg.Core.HealthCheckInterval, d.Core.HealthCheckInterval)
	fillString(&cfg.Core.SlowRequestThreshold, d.Core.SlowRequestThreshold)
	if cfg.Core.MaxConcurrentRequests == 0 {
		cfg.Core.MaxConcurrentRequests = d.Core.MaxConcurrentRequests
	}
	if cfg.Core.Monitoring == nil {
		cfg.Core.Monitoring = d.Core.Monitoring
	}
	if cfg.Core.Retry.MaxRetries == nil {
		cfg.Core.Retry.MaxRetries = d.Core.Retry.MaxRetries
	}
	fillString(&cfg.Core.Retry.InitialDelay, d.Core.Retry.InitialDelay)
	fillString(&cfg.Core.Retry.MaxDelay, d.Core.Retry.MaxDelay)
	if cfg.Core.Retry.Multiplier == 0 {
		cfg.Core.Retry.Multiplier = d.Core.Retry.Multiplier
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = d.Cache.MaxEntries
	}
	fillString(&cfg.Cache.TTL, d.Cache.TTL)
	fillString(&cfg.Cache.CleanupInterval, d.Cache.CleanupInterval)
	if cfg.HostBridge.Enabled == nil {
		cfg.HostBridge.Enabled = d.HostBridge.Enabled
	}
	fillString(&cfg.HostBridge.Listen, d.HostBridge.Listen)
	fillString(&cfg.HostBridge.InteractionTimeout, d.HostBridge.InteractionTimeout)
	fillString(&cfg.Daemon.IdleShutdown, d.Daemon.IdleShutdown)
	fillString(&cfg.Daemon.LogLevel, d.Daemon.LogLevel)
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
