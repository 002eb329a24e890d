// Package main starts the run gRPC service process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	runcmd "github.com/louisbranch/dungeonrun/internal/cmd/run"
	"github.com/louisbranch/dungeonrun/internal/platform/config"
	"github.com/louisbranch/dungeonrun/internal/platform/logging"
)

func main() {
	cfg, err := runcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	logger, err := logging.New(cfg.Log, nil)
	if err != nil {
		config.Exitf("configure logging: %v", err)
	}
	logger = logger.With().Str("service", "run").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runcmd.Run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("failed to serve")
		stop()
		os.Exit(1)
	}
}
