package app

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Upstream != "" {
		t.Errorf("Upstream = %q, want proxying off by default", cfg.Upstream)
	}
	if !cfg.Watch || cfg.WatcherDebounce != 500*time.Millisecond {
		t.Errorf("watcher defaults = %v/%v", cfg.Watch, cfg.WatcherDebounce)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CONTRACTMOCK_PORT", "9090")
	t.Setenv("CONTRACTMOCK_UPSTREAM", "http://localhost:3000")
	t.Setenv("CONTRACTMOCK_UPSTREAM_TIMEOUT", "2s")
	t.Setenv("CONTRACTMOCK_WATCH", "false")

	cfg := DefaultConfig()
	if err := cfg.LoadEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Upstream != "http://localhost:3000" {
		t.Errorf("Upstream = %q", cfg.Upstream)
	}
	if cfg.UpstreamTimeout != 2*time.Second {
		t.Errorf("UpstreamTimeout = %v", cfg.UpstreamTimeout)
	}
	if cfg.Watch {
		t.Error("Watch should be off")
	}
}

func TestLoadEnv_RejectsMalformedValue(t *testing.T) {
	t.Setenv("CONTRACTMOCK_PORT", "not-a-number")

	cfg := DefaultConfig()
	if err := cfg.LoadEnv(); err == nil {
		t.Error("expected an error for a malformed port")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in).String(); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
