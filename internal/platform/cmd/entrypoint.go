// Package cmd holds the startup plumbing shared by dungeonrun binaries.
package cmd

import (
	"context"
	"errors"
	"flag"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/louisbranch/dungeonrun/internal/platform/config"
	"github.com/louisbranch/dungeonrun/internal/platform/otel"
)

// Service names used for telemetry and logging.
const (
	ServiceRun    = "run"
	ServiceRunctl = "runctl"
)

const defaultFlushTimeout = 5 * time.Second

var (
	errNoTarget  = errors.New("config target is required")
	errNoFlags   = errors.New("flag set is required")
	errNoService = errors.New("service name is required")
	errNoRun     = errors.New("run function is required")
)

// Load fills cfg from the environment, lets bind register flags seeded with
// those values, and parses args. Flags win over the environment.
func Load[T any](cfg *T, fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *T)) error {
	if cfg == nil {
		return errNoTarget
	}
	if fs == nil {
		return errNoFlags
	}
	if err := config.ParseEnv(cfg); err != nil {
		return err
	}
	if bind != nil {
		bind(fs, cfg)
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// Telemetry controls RunWithTelemetry.
type Telemetry struct {
	// FlushTimeout bounds the span flush on exit.
	FlushTimeout time.Duration
	Logger       zerolog.Logger
}

// RunWithTelemetry installs tracing for service, calls run, and flushes
// pending spans after run returns.
func RunWithTelemetry(ctx context.Context, service string, tel Telemetry, run func(context.Context) error) error {
	if service = strings.TrimSpace(service); service == "" {
		return errNoService
	}
	if run == nil {
		return errNoRun
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer flush(shutdown, service, tel)
	return run(ctx)
}

func flush(shutdown func(context.Context) error, service string, tel Telemetry) {
	timeout := tel.FlushTimeout
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		tel.Logger.Warn().Err(err).Str("service", service).Msg("flush traces")
	}
}
