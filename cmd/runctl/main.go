// Package main runs the run service operator CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/dungeonrun/internal/cmd/runctl"
	entrypoint "github.com/louisbranch/dungeonrun/internal/platform/cmd"
	"github.com/louisbranch/dungeonrun/internal/platform/config"
	"github.com/louisbranch/dungeonrun/internal/platform/logging"
)

// logEnv reads the shared log variables with defaults suited to a terminal.
type logEnv struct {
	Level  string `env:"DUNGEONRUN_LOG_LEVEL" envDefault:"warn"`
	Format string `env:"DUNGEONRUN_LOG_FORMAT" envDefault:"console"`
}

func main() {
	var env logEnv
	if err := config.ParseEnv(&env); err != nil {
		config.Exitf("parse log env: %v", err)
	}
	logger, err := logging.New(logging.Config{Level: env.Level, Format: env.Format, Output: "stderr"}, nil)
	if err != nil {
		config.Exitf("configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRunctl, entrypoint.Telemetry{Logger: logger}, func(ctx context.Context) error {
		return runctl.Execute(ctx, os.Args[1:], runctl.Options{Out: os.Stdout, Logger: logger})
	})
	if err != nil {
		stop()
		config.Exitf("runctl: %v", err)
	}
}
