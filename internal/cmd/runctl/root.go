// Package runctl implements the operator CLI for the run service.
package runctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	gogrpc "google.golang.org/grpc"

	"github.com/louisbranch/dungeonrun/internal/platform/config"
	platformgrpc "github.com/louisbranch/dungeonrun/internal/platform/grpc"
	"github.com/louisbranch/dungeonrun/internal/platform/timeouts"
	runservice "github.com/louisbranch/dungeonrun/internal/services/run/api/grpc/run"
)

// Config holds the environment defaults of runctl. Flags override them.
type Config struct {
	Addr    string        `env:"DUNGEONRUN_ADDR" envDefault:"127.0.0.1:8090"`
	ActorID string        `env:"DUNGEONRUN_ACTOR_ID"`
	Locale  string        `env:"DUNGEONRUN_LOCALE"`
	Timeout time.Duration `env:"DUNGEONRUN_REQUEST_TIMEOUT"`
}

// ConnectFunc opens a client connection to addr.
type ConnectFunc func(ctx context.Context, addr string) (*gogrpc.ClientConn, error)

// Options are the process dependencies of the CLI.
type Options struct {
	Out    io.Writer
	Logger zerolog.Logger
	// Connect defaults to a health-checked dial.
	Connect ConnectFunc
}

type cli struct {
	opts Options
	cfg  Config
	json bool
}

// Execute runs runctl with args.
func Execute(ctx context.Context, args []string, opts Options) error {
	root, err := NewRootCommand(opts)
	if err != nil {
		return err
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the runctl command tree.
func NewRootCommand(opts Options) (*cobra.Command, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	cfg, err := config.FromEnv[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse runctl env: %w", err)
	}
	c := &cli{opts: opts, cfg: cfg}
	if c.opts.Connect == nil {
		c.opts.Connect = c.dial
	}

	root := &cobra.Command{
		Use:           "runctl",
		Short:         "Operate dungeon runs on a run server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)
	flags := root.PersistentFlags()
	flags.StringVar(&c.cfg.Addr, "addr", c.cfg.Addr, "run server address")
	flags.StringVar(&c.cfg.ActorID, "actor", c.cfg.ActorID, "actor id sent with every call")
	flags.StringVar(&c.cfg.Locale, "locale", c.cfg.Locale, "locale for error messages")
	flags.DurationVar(&c.cfg.Timeout, "timeout", c.cfg.Timeout, "per-call timeout")
	flags.BoolVar(&c.json, "json", false, "print JSON")

	root.AddCommand(
		c.newCreateCommand(),
		c.newListCommand(),
		c.newShowCommand(),
		c.newEndCommand(),
		c.newNotifyCommand(),
		c.newOverrideCommand(),
		c.newGetCommand(),
		c.newPositionCommand(),
		c.newGroupsCommand(),
		c.newHistoryCommand(),
		c.newWatchCommand(),
		newPhasesCommand(c),
		newSignalsCommand(c),
	)
	return root, nil
}

func (c *cli) dial(ctx context.Context, addr string) (*gogrpc.ClientConn, error) {
	return platformgrpc.Dial(ctx, platformgrpc.DialConfig{
		Addr:    addr,
		Service: runservice.ServiceName,
		Timeout: timeouts.GRPCDial,
		Logger:  c.opts.Logger,
	})
}

// withClient connects, decorates ctx with the caller metadata, and runs fn.
// bounded calls get the request timeout.
func (c *cli) withClient(cmd *cobra.Command, bounded bool, fn func(ctx context.Context, client *runservice.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := c.opts.Connect(ctx, c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.cfg.Addr, err)
	}
	defer conn.Close()

	if bounded {
		timeout := c.cfg.Timeout
		if timeout <= 0 {
			timeout = timeouts.GRPCRequest
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = platformgrpc.OutgoingCaller(ctx, c.cfg.ActorID, c.cfg.Locale)
	return fn(ctx, runservice.NewClient(conn))
}

// print writes v as indented JSON under --json, or runs text otherwise.
func (c *cli) print(v any, text func(w io.Writer)) error {
	if c.json {
		enc := json.NewEncoder(c.opts.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(c.opts.Out)
	return nil
}
