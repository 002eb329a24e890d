// Package server wires the run engine, its storage, and the gRPC and metrics
// listeners.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/louisbranch/dungeonrun/internal/platform/config"
	platformgrpc "github.com/louisbranch/dungeonrun/internal/platform/grpc"
	"github.com/louisbranch/dungeonrun/internal/platform/logging"
	"github.com/louisbranch/dungeonrun/internal/platform/otel"
	"github.com/louisbranch/dungeonrun/internal/platform/timeouts"
	runservice "github.com/louisbranch/dungeonrun/internal/services/run/api/grpc/run"
	"github.com/louisbranch/dungeonrun/internal/services/run/dispatch"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/layout"
	"github.com/louisbranch/dungeonrun/internal/services/run/engine"
	"github.com/louisbranch/dungeonrun/internal/services/run/storage"
	runsqlite "github.com/louisbranch/dungeonrun/internal/services/run/storage/sqlite"
)

// Config is the runtime configuration of the run server.
type Config struct {
	GRPCAddr string `env:"DUNGEONRUN_GRPC_ADDR" envDefault:":8090"`
	// MetricsAddr serves /metrics. Empty disables the metrics listener.
	MetricsAddr string `env:"DUNGEONRUN_METRICS_ADDR" envDefault:":9090"`
	// DBPath is the sqlite file. Empty keeps runs in memory only.
	DBPath string `env:"DUNGEONRUN_DB_PATH" envDefault:"data/runs.db"`
	// LayoutPath is a YAML or TOML layout file. Empty uses the built-in one.
	LayoutPath     string `env:"DUNGEONRUN_LAYOUT_PATH"`
	RecorderBuffer int    `env:"DUNGEONRUN_RECORDER_BUFFER" envDefault:"256"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	return config.FromEnv[Config]()
}

// Server hosts the run gRPC API, the metrics endpoint, and the run store.
type Server struct {
	logger zerolog.Logger

	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server

	metricsListener net.Listener
	metricsServer   *http.Server

	registry *engine.Registry
	recorder *engine.AsyncRecorder
	store    *runsqlite.Store

	closeOnce sync.Once
}

// New builds a server from cfg. Stored runs are restored before New returns.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Server, error) {
	s := &Server{logger: logging.Component(logger, "server")}
	if err := s.init(ctx, cfg, logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) init(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	l, err := loadLayout(cfg.LayoutPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := engine.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	broker := dispatch.NewBroker()
	broker.OnDrop = func(dispatch.Envelope) { metrics.DispatchDropped() }
	groups := dispatch.NewGroupTracker()

	var recorder engine.Recorder
	if strings.TrimSpace(cfg.DBPath) != "" {
		store, err := openRunStore(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		s.store = store
		s.recorder = engine.NewAsyncRecorder(store, engine.RecorderOptions{
			Buffer:  cfg.RecorderBuffer,
			Timeout: timeouts.StoreWrite,
			Logger:  logging.Component(logger, "recorder"),
			Metrics: metrics,
		})
		recorder = s.recorder
	}

	s.registry, err = engine.NewRegistry(engine.Deps{
		Layout:     l,
		Dispatcher: dispatch.Multi{groups, broker},
		Presence:   groups,
		Recorder:   recorder,
		Logger:     logging.Component(logger, "engine"),
		Metrics:    metrics,
		Tracer:     otel.Tracer("dungeonrun/engine"),
	})
	if err != nil {
		return err
	}

	opts := runservice.Options{
		Groups: groups,
		Broker: broker,
		Logger: logging.Component(logger, "grpc"),
	}
	if s.store != nil {
		restored, err := restoreRuns(ctx, s.store, s.registry)
		if err != nil {
			return err
		}
		s.logger.Info().Int("runs", restored).Str("db_path", cfg.DBPath).Msg("restored runs")
		opts.Journal = s.store
	}

	s.listener, err = net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}
	s.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(platformgrpc.CallerUnaryInterceptor()),
		grpc.ChainStreamInterceptor(platformgrpc.CallerStreamInterceptor()),
	)
	runservice.RegisterRunServiceServer(s.grpcServer, runservice.NewService(s.registry, opts))
	s.health = platformgrpc.RegisterHealth(s.grpcServer, runservice.ServiceName)

	if strings.TrimSpace(cfg.MetricsAddr) != "" {
		s.metricsListener, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.MetricsAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		s.metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: timeouts.ReadHeader,
		}
	}
	return nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// MetricsAddr returns the metrics listener address, or "" when disabled.
func (s *Server) MetricsAddr() string {
	if s == nil || s.metricsListener == nil {
		return ""
	}
	return s.metricsListener.Addr().String()
}

// Run builds a server from cfg and serves it until ctx is canceled.
func Run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	server, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the listeners until ctx is canceled or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	serveErr := make(chan error, 2)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()
	if s.metricsServer != nil {
		go func() {
			err := s.metricsServer.Serve(s.metricsListener)
			if errors.Is(err, http.ErrServerClosed) {
				return
			}
			serveErr <- fmt.Errorf("serve metrics: %w", err)
		}()
		s.logger.Info().Str("addr", s.MetricsAddr()).Msg("metrics listening")
	}
	s.logger.Info().Str("addr", s.Addr()).Msg("run server listening")

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		if s.metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
			defer cancel()
			if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn().Err(err).Msg("shutdown metrics server")
			}
		}
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// Close stops the listeners, drains queued records, and closes the store.
// It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(s.close)
}

func (s *Server) close() {
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.metricsServer != nil {
		_ = s.metricsServer.Close()
	}
	if s.metricsListener != nil {
		_ = s.metricsListener.Close()
	}
	if s.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		if err := s.recorder.Close(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("drain run recorder")
		}
		cancel()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close run store")
		}
	}
}

func loadLayout(path string) (*layout.Layout, error) {
	if strings.TrimSpace(path) == "" {
		return layout.Default()
	}
	l, err := layout.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load layout %s: %w", path, err)
	}
	return l, nil
}

func openRunStore(ctx context.Context, path string) (*runsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := runsqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open run sqlite store: %w", err)
	}
	return store, nil
}

// restoreRuns adopts every stored run. The registry seeds the groups each
// restored phase implies.
func restoreRuns(ctx context.Context, loader storage.SnapshotLoader, registry *engine.Registry) (int, error) {
	snaps, err := loader.LoadSnapshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("load run snapshots: %w", err)
	}
	for _, snap := range snaps {
		if _, err := registry.Restore(snap.RunID, snap.State); err != nil {
			return 0, fmt.Errorf("restore run %s: %w", snap.RunID, err)
		}
	}
	return len(snaps), nil
}
