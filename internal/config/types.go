package config

// Config is the top-level corehost configuration.
// Durations are Go duration strings ("5s", "1m30s").
type Config struct {
	Core       CoreConfig       `toml:"core"`
	Cache      CacheConfig      `toml:"cache"`
	HostBridge HostBridgeConfig `toml:"hostbridge"`
	Daemon     DaemonConfig     `toml:"daemon"`
}

// CoreConfig describes how to reach the core process.
type CoreConfig struct {
	Endpoint              string      `toml:"endpoint"`
	Namespace             string      `toml:"namespace"`
	Codec                 string      `toml:"codec"`
	ConnectTimeout        string      `toml:"connect_timeout"`
	RequestTimeout        string      `toml:"request_timeout"`
	HealthCheckInterval   string      `toml:"health_check_interval"`
	MaxConcurrentRequests int         `toml:"max_concurrent_requests"`
	Monitoring            *bool       `toml:"monitoring"`
	SlowRequestThreshold  string      `toml:"slow_request_threshold"`
	Retry                 RetryConfig `toml:"retry"`
}

// RetryConfig is the reconnection backoff policy.
type RetryConfig struct {
	MaxRetries   *int    `toml:"max_retries"`
	InitialDelay string  `toml:"initial_delay"`
	MaxDelay     string  `toml:"max_delay"`
	Multiplier   float64 `toml:"multiplier"`
}

// CacheConfig bounds the response cache.
type CacheConfig struct {
	MaxEntries      int    `toml:"max_entries"`
	TTL             string `toml:"ttl"`
	CleanupInterval string `toml:"cleanup_interval"`
}

// HostBridgeConfig configures the server the core calls back into.
type HostBridgeConfig struct {
	Enabled            *bool    `toml:"enabled"`
	Listen             string   `toml:"listen"`
	InteractionTimeout string   `toml:"interaction_timeout"`
	WorkspacePaths     []string `toml:"workspace_paths"`
	HostVersion        string   `toml:"host_version"`
}

// DaemonConfig holds process-level settings.
type DaemonConfig struct {
	IdleShutdown string `toml:"idle_shutdown"`
	LogLevel     string `toml:"log_level"`
}
