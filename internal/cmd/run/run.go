// Package run parses run service flags and launches the service.
package run

import (
	"context"
	"flag"

	"github.com/rs/zerolog"

	entrypoint "github.com/louisbranch/dungeonrun/internal/platform/cmd"
	"github.com/louisbranch/dungeonrun/internal/platform/logging"
	server "github.com/louisbranch/dungeonrun/internal/services/run/app"
)

// Config holds run command configuration.
type Config struct {
	Server server.Config
	Log    logging.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.Load(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Server.GRPCAddr, "addr", cfg.Server.GRPCAddr, "The run gRPC listen address")
	fs.StringVar(&cfg.Server.MetricsAddr, "metrics-addr", cfg.Server.MetricsAddr, "The metrics listen address; empty disables it")
	fs.StringVar(&cfg.Server.DBPath, "db", cfg.Server.DBPath, "The sqlite run store; empty keeps runs in memory")
	fs.StringVar(&cfg.Server.LayoutPath, "layout", cfg.Server.LayoutPath, "A YAML or TOML layout file")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format: json or console")
}

// Run starts the run gRPC service.
func Run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRun, entrypoint.Telemetry{Logger: logger}, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Server, logger)
	})
}
