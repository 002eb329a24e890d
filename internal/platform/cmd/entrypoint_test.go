package cmd

import (
	"context"
	"errors"
	"flag"
	"io"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8090"`
	Layout  string `env:"CMD_TEST_LAYOUT" envDefault:"default"`
}

func bindTestFlags(fs *flag.FlagSet, cfg *testConfig) {
	fs.StringVar(&cfg.Address, "addr", cfg.Address, "address")
	fs.StringVar(&cfg.Layout, "layout", cfg.Layout, "layout")
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		args       []string
		wantAddr   string
		wantLayout string
	}{
		{name: "defaults", wantAddr: "127.0.0.1:8090", wantLayout: "default"},
		{name: "env", env: map[string]string{"CMD_TEST_LAYOUT": "env.yaml"}, wantAddr: "127.0.0.1:8090", wantLayout: "env.yaml"},
		{
			name:       "flag beats env",
			env:        map[string]string{"CMD_TEST_ADDRESS": "env:9000", "CMD_TEST_LAYOUT": "env.yaml"},
			args:       []string{"-addr", "flag:9001"},
			wantAddr:   "flag:9001",
			wantLayout: "env.yaml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var cfg testConfig
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			if err := Load(&cfg, fs, tt.args, bindTestFlags); err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.Address != tt.wantAddr || cfg.Layout != tt.wantLayout {
				t.Fatalf("cfg = %+v, want addr %q layout %q", cfg, tt.wantAddr, tt.wantLayout)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	if err := Load[testConfig](nil, flag.NewFlagSet("t", flag.ContinueOnError), nil, nil); !errors.Is(err, errNoTarget) {
		t.Fatalf("nil target error = %v", err)
	}
	if err := Load(&testConfig{}, nil, nil, bindTestFlags); !errors.Is(err, errNoFlags) {
		t.Fatalf("nil flags error = %v", err)
	}
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := Load(&testConfig{}, fs, []string{"-unknown"}, bindTestFlags); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestRunWithTelemetry(t *testing.T) {
	t.Setenv("DUNGEONRUN_OTEL_ENDPOINT", "")
	noop := func(context.Context) error { return nil }

	if err := RunWithTelemetry(context.Background(), " ", Telemetry{}, noop); !errors.Is(err, errNoService) {
		t.Fatalf("blank service error = %v", err)
	}
	if err := RunWithTelemetry(context.Background(), ServiceRun, Telemetry{}, nil); !errors.Is(err, errNoRun) {
		t.Fatalf("nil run error = %v", err)
	}

	stopped := errors.New("stopped")
	called := false
	err := RunWithTelemetry(context.Background(), ServiceRun, Telemetry{}, func(context.Context) error {
		called = true
		return stopped
	})
	if !called || !errors.Is(err, stopped) {
		t.Fatalf("called = %v, err = %v, want %v", called, err, stopped)
	}
}
