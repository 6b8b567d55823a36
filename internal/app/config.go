package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configurable parameters for the application. Every field
// can be set through CONTRACTMOCK_* environment variables; flags override
// the environment.
type Config struct {
	SpecFile     string `envconfig:"SPEC_FILE"`
	ScenariosDir string `envconfig:"SCENARIOS_DIR"`
	Port         int    `envconfig:"PORT"`

	Upstream        string        `envconfig:"UPSTREAM"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT"`

	DefaultScenario string `envconfig:"DEFAULT_SCENARIO"`
	TraceSize       int    `envconfig:"TRACE_SIZE"`
	LogLevel        string `envconfig:"LOG_LEVEL"`

	Watch           bool          `envconfig:"WATCH"`
	WatcherDebounce time.Duration `envconfig:"WATCHER_DEBOUNCE"`

	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SpecFile:     "./openapi.yaml",
		ScenariosDir: "./scenarios",
		Port:         8080,

		UpstreamTimeout: 10 * time.Second,

		TraceSize: 200,
		LogLevel:  "info",

		Watch:           true,
		WatcherDebounce: 500 * time.Millisecond,

		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadEnv overlays CONTRACTMOCK_* environment variables onto c.
func (c *Config) LoadEnv() error {
	if err := envconfig.Process("contractmock", c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}
