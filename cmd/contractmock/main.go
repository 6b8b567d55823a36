package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sophialabs/contractmock/internal/app"
)

func main() {
	cfg := app.DefaultConfig()
	if err := cfg.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read configuration: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.SpecFile, "spec", cfg.SpecFile, "path to the OpenAPI document")
	flag.StringVar(&cfg.ScenariosDir, "scenarios", cfg.ScenariosDir, "directory holding scenario YAML files")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Upstream, "upstream", cfg.Upstream, "upstream base URL to proxy unmatched requests to")
	flag.StringVar(&cfg.DefaultScenario, "default-scenario", cfg.DefaultScenario, "scenario to activate at startup")
	flag.IntVar(&cfg.TraceSize, "trace-size", cfg.TraceSize, "number of trace entries to keep")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload scenarios on file changes")
	flag.Parse()

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
