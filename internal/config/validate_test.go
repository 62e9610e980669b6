package config

import (
	"strings"
	"testing"
)

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	negative := -1
	cfg := &Config{
		Core: CoreConfig{
			Endpoint:       "no-port",
			Codec:          "msgpack",
			ConnectTimeout: "abc",
			RequestTimeout: "0s",
			Retry: RetryConfig{
				MaxRetries:   &negative,
				InitialDelay: "10s",
				MaxDelay:     "1s",
				Multiplier:   0.5,
			},
		},
		Cache:      CacheConfig{TTL: "-1s"},
		HostBridge: HostBridgeConfig{Listen: "bad", WorkspacePaths: []string{" "}},
		Daemon:     DaemonConfig{LogLevel: "chatty"},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() error = nil, want non-nil")
	}

	msg := err.Error()
	for _, want := range []string{
		"core.endpoint: invalid address",
		"core.codec: must be",
		"core.connect_timeout: invalid duration",
		"core.request_timeout: must be > 0",
		"core.retry.max_retries: must be >= 0",
		"core.retry.multiplier: must be >= 1",
		"core.retry.max_delay: must be >= initial_delay",
		"cache.ttl: must be >= 0",
		"hostbridge.listen: invalid address",
		"hostbridge.workspace_paths[0]: must not be empty",
		"daemon.log_level",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Validate() error = %q, want %q", msg, want)
		}
	}
}

func TestValidateForCurrentEnvExpandsPlaceholders(t *testing.T) {
	t.Setenv("CORE_ADDR", "127.0.0.1:7000")
	cfg := &Config{Core: CoreConfig{Endpoint: "${CORE_ADDR}"}}

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() error = nil, want invalid address before expansion")
	}
	if err := ValidateForCurrentEnv(cfg); err != nil {
		t.Fatalf("ValidateForCurrentEnv() error = %v", err)
	}
	if cfg.Core.Endpoint != "${CORE_ADDR}" {
		t.Fatalf("ValidateForCurrentEnv mutated config: %q", cfg.Core.Endpoint)
	}
}
