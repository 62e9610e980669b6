package paths

import (
	"path/filepath"
	"testing"
)

func TestRuntimeDirUsesXDGStateHomeFallback(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("XDG_STATE_HOME", "/tmp/state-home")
	t.Setenv("HOME", "/tmp/home")

	got := RuntimeDir()
	want := filepath.Join("/tmp/state-home", "corehost")
	if got != want {
		t.Fatalf("RuntimeDir() = %q, want %q", got, want)
	}
}

func TestRuntimeDirFallsBackToHomeLocalState(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/tmp/home")

	got := RuntimeDir()
	want := filepath.Join("/tmp/home", ".local", "state", "corehost")
	if got != want {
		t.Fatalf("RuntimeDir() = %q, want %q", got, want)
	}
}

func TestRuntimeDirPrefersXDGRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/tmp/xdg-runtime")
	t.Setenv("XDG_STATE_HOME", "/tmp/state-home")

	got := SocketPath()
	want := filepath.Join("/tmp/xdg-runtime", "corehost", "daemon.sock")
	if got != want {
		t.Fatalf("SocketPath() = %q, want %q", got, want)
	}
}

func TestConfigFileHonorsOverride(t *testing.T) {
	t.Setenv("COREHOST_CONFIG", "/etc/corehost.toml")
	if got := ConfigFile(); got != "/etc/corehost.toml" {
		t.Fatalf("ConfigFile() = %q, want override", got)
	}

	t.Setenv("COREHOST_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	want := filepath.Join("/tmp/cfg", "corehost", "config.toml")
	if got := ConfigFile(); got != want {
		t.Fatalf("ConfigFile() = %q, want %q", got, want)
	}
}
