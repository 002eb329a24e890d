package runctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	runservice "github.com/louisbranch/dungeonrun/internal/services/run/api/grpc/run"
)

func (c *cli) newNotifyCommand() *cobra.Command {
	var (
		role    string
		payload string
	)
	cmd := &cobra.Command{
		Use:   "notify <run-id> <signal>",
		Short: "Deliver one signal to a run",
		Example: `  runctl notify run-1 crates.revealed --role crate_helper --payload '{"remaining":3}'
  runctl notify run-1 waves.member_died --role wave_member --payload '{"member_id":"w1-ghoul-1"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &runservice.NotifyRequest{RunID: args[0], Type: args[1], Role: role}
			if p := strings.TrimSpace(payload); p != "" {
				if !json.Valid([]byte(p)) {
					return fmt.Errorf("payload is not valid JSON")
				}
				req.Payload = json.RawMessage(p)
			}
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				out, err := client.Notify(ctx, req)
				if err != nil {
					return err
				}
				return c.print(out, func(w io.Writer) { writeOutcome(w, out) })
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role of the emitter")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func (c *cli) newOverrideCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "override <run-id> <phase>",
		Short: "Force a run into a phase",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				out, err := client.Override(ctx, &runservice.OverrideRequest{RunID: args[0], Phase: args[1]})
				if err != nil {
					return err
				}
				return c.print(out, func(w io.Writer) { writeOutcome(w, out) })
			})
		},
	}
}

func (c *cli) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id> <key>",
		Short: "Read one query key of a run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				resp, err := client.Get(ctx, &runservice.GetRequest{RunID: args[0], Key: args[1]})
				if err != nil {
					return err
				}
				return c.print(resp, func(w io.Writer) { fmt.Fprintf(w, "%s = %d\n", resp.Key, resp.Value) })
			})
		},
	}
}

func (c *cli) newPositionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "position <run-id> [phase]",
		Short: "Show where the key actor resumes for a phase",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &runservice.PositionRequest{RunID: args[0]}
			if len(args) == 2 {
				req.Phase = args[1]
			}
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				resp, err := client.Position(ctx, req)
				if err != nil {
					return err
				}
				return c.print(resp, func(w io.Writer) { fmt.Fprintf(w, "%s\t%s\n", resp.Phase, resp.Position) })
			})
		},
	}
}

func (c *cli) newGroupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "groups <run-id>",
		Short: "List the actor groups present in a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				resp, err := client.Groups(ctx, &runservice.RunRequest{RunID: args[0]})
				if err != nil {
					return err
				}
				return c.print(resp, func(w io.Writer) {
					for _, g := range resp.Groups {
						fmt.Fprintln(w, g)
					}
				})
			})
		},
	}
}

func writeOutcome(w io.Writer, out *runservice.OutcomeView) {
	if !out.Accepted {
		fmt.Fprintf(w, "rejected in %s: %s %s\n", out.From, out.RejectionCode, out.RejectionMessage)
		return
	}
	verb := "advanced"
	switch {
	case out.Overridden:
		verb = "overridden"
	case out.Regressed:
		verb = "recovered"
	case out.From == out.To:
		verb = "stayed"
	}
	fmt.Fprintf(w, "%s %s -> %s (seq %d)\n", verb, out.From, out.To, out.Seq)
	for _, a := range out.Effects {
		fmt.Fprintf(w, "  %s\n", actionText(a))
	}
}
