package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lydakis/corehost/internal/pkg/log"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error
	errs = append(errs, validateCore(cfg.Core)...)
	errs = append(errs, validateCache(cfg.Cache)...)
	errs = append(errs, validateHostBridge(cfg.HostBridge)...)
	errs = append(errs, validateDaemon(cfg.Daemon)...)
	return errors.Join(errs...)
}

// ValidateForCurrentEnv checks config invariants after expanding ${ENV_VAR}
// placeholders against the current process environment.
func ValidateForCurrentEnv(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	expanded := cloneConfig(cfg)
	expandConfigEnvVars(expanded)
	return Validate(expanded)
}

func cloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	cloned.HostBridge.WorkspacePaths = append([]string(nil), cfg.HostBridge.WorkspacePaths...)
	return &cloned
}

func validateCore(core CoreConfig) []error {
	var errs []error

	if core.Endpoint != "" {
		if err := validateHostPort(core.Endpoint); err != nil {
			errs = append(errs, fmt.Errorf("core.endpoint: invalid address %q: %w", core.Endpoint, err))
		}
	}
	if strings.ContainsAny(core.Namespace, " /") {
		errs = append(errs, fmt.Errorf("core.namespace: must not contain spaces or slashes, got %q", core.Namespace))
	}
	switch core.Codec {
	case "", "proto", "json":
	default:
		errs = append(errs, fmt.Errorf("core.codec: must be \"proto\" or \"json\", got %q", core.Codec))
	}

	errs = appendPositiveDuration(errs, "core.connect_timeout", core.ConnectTimeout)
	errs = appendPositiveDuration(errs, "core.request_timeout", core.RequestTimeout)
	errs = appendPositiveDuration(errs, "core.health_check_interval", core.HealthCheckInterval)
	errs = appendPositiveDuration(errs, "core.slow_request_threshold", core.SlowRequestThreshold)

	if core.MaxConcurrentRequests < 0 {
		errs = append(errs, fmt.Errorf("core.max_concurrent_requests: must be > 0, got %d", core.MaxConcurrentRequests))
	}

	retry := core.Retry
	if retry.MaxRetries != nil && *retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("core.retry.max_retries: must be >= 0, got %d", *retry.MaxRetries))
	}
	errs = appendNonNegativeDuration(errs, "core.retry.initial_delay", retry.InitialDelay)
	errs = appendNonNegativeDuration(errs, "core.retry.max_delay", retry.MaxDelay)
	if retry.Multiplier != 0 && retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("core.retry.multiplier: must be >= 1, got %g", retry.Multiplier))
	}
	if retry.InitialDelay != "" && retry.MaxDelay != "" {
		initial, ierr := time.ParseDuration(retry.InitialDelay)
		maxDelay, merr := time.ParseDuration(retry.MaxDelay)
		if ierr == nil && merr == nil && maxDelay < initial {
			errs = append(errs, fmt.Errorf("core.retry.max_delay: must be >= initial_delay (%s), got %s", initial, maxDelay))
		}
	}

	return errs
}

func validateCache(c CacheConfig) []error {
	var errs []error
	if c.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries: must be >= 0, got %d", c.MaxEntries))
	}
	errs = appendNonNegativeDuration(errs, "cache.ttl", c.TTL)
	errs = appendPositiveDuration(errs, "cache.cleanup_interval", c.CleanupInterval)
	return errs
}

func validateHostBridge(hb HostBridgeConfig) []error {
	var errs []error
	if hb.Listen != "" {
		if err := validateHostPort(hb.Listen); err != nil {
			errs = append(errs, fmt.Errorf("hostbridge.listen: invalid address %q: %w", hb.Listen, err))
		}
	}
	errs = appendNonNegativeDuration(errs, "hostbridge.interaction_timeout", hb.InteractionTimeout)
	for i, p := range hb.WorkspacePaths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("hostbridge.workspace_paths[%d]: must not be empty", i))
		}
	}
	return errs
}

func validateDaemon(d DaemonConfig) []error {
	var errs []error
	errs = appendNonNegativeDuration(errs, "daemon.idle_shutdown", d.IdleShutdown)
	if d.LogLevel != "" {
		if _, err := log.ParseLevel(d.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("daemon.log_level: %w", err))
		}
	}
	return errs
}

func validateHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port == "" {
		return errors.New("missing port")
	}
	return nil
}

func appendPositiveDuration(errs []error, field, value string) []error {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, fmt.Errorf("%s: invalid duration %q: %w", field, value, err))
	}
	if d <= 0 {
		return append(errs, fmt.Errorf("%s: must be > 0, got %q", field, value))
	}
	return errs
}

func appendNonNegativeDuration(errs []error, field, value string) []error {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, fmt.Errorf("%s: invalid duration %q: %w", field, value, err))
	}
	if d < 0 {
		return append(errs, fmt.Errorf("%s: must be >= 0, got %q", field, value))
	}
	return errs
}
