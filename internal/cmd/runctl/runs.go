package runctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	runservice "github.com/louisbranch/dungeonrun/internal/services/run/api/grpc/run"
)

func (c *cli) newCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create [run-id]",
		Short: "Start a run; an omitted id is generated",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &runservice.CreateRunRequest{}
			if len(args) == 1 {
				req.RunID = args[0]
			}
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				view, err := client.CreateRun(ctx, req)
				if err != nil {
					return err
				}
				return c.print(view, func(w io.Writer) { writeRun(w, view) })
			})
		},
	}
}

func (c *cli) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List run ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				resp, err := client.ListRuns(ctx, &runservice.ListRunsRequest{})
				if err != nil {
					return err
				}
				return c.print(resp, func(w io.Writer) {
					for _, id := range resp.RunIDs {
						fmt.Fprintln(w, id)
					}
				})
			})
		},
	}
}

func (c *cli) newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the state of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				view, err := client.GetRun(ctx, &runservice.RunRequest{RunID: args[0]})
				if err != nil {
					return err
				}
				return c.print(view, func(w io.Writer) { writeRun(w, view) })
			})
		},
	}
}

func (c *cli) newEndCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "end <run-id>",
		Short: "Tear a run down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				resp, err := client.EndRun(ctx, &runservice.RunRequest{RunID: args[0]})
				if err != nil {
					return err
				}
				return c.print(resp, func(w io.Writer) { fmt.Fprintf(w, "ended %s\n", args[0]) })
			})
		},
	}
}

func (c *cli) newHistoryCommand() *cobra.Command {
	var (
		pageSize  int32
		pageToken string
		all       bool
	)
	cmd := &cobra.Command{
		Use:   "history <run-id>",
		Short: "Page through the recorded transitions of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, true, func(ctx context.Context, client *runservice.Client) error {
				out := &runservice.HistoryResponse{}
				token := pageToken
				for {
					resp, err := client.History(ctx, &runservice.HistoryRequest{RunID: args[0], PageSize: pageSize, PageToken: token})
					if err != nil {
						return err
					}
					out.Transitions = append(out.Transitions, resp.Transitions...)
					out.NextPageToken = resp.NextPageToken
					if !all || resp.NextPageToken == "" {
						break
					}
					token = resp.NextPageToken
				}
				return c.print(out, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "SEQ\tCAUSE\tFROM\tTO\tEFFECTS\tRECORDED")
					for _, row := range out.Transitions {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", row.Seq, row.Cause, row.From, row.To,
							len(row.Effects), row.RecordedAt.Format(time.RFC3339))
					}
					_ = tw.Flush()
					if out.NextPageToken != "" {
						fmt.Fprintf(w, "next page: %s\n", out.NextPageToken)
					}
				})
			})
		},
	}
	cmd.Flags().Int32Var(&pageSize, "page-size", 0, "rows per page")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "resume from a previous page")
	cmd.Flags().BoolVar(&all, "all", false, "follow every page")
	return cmd
}

func (c *cli) newWatchCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch [run-id]",
		Short: "Stream dispatched actions; an omitted id watches every run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &runservice.RunRequest{}
			if len(args) == 1 {
				req.RunID = args[0]
			}
			return c.withClient(cmd, false, func(ctx context.Context, client *runservice.Client) error {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				stream, err := client.Watch(ctx, req)
				if err != nil {
					return err
				}
				for seen := 0; count <= 0 || seen < count; seen++ {
					event, err := stream.Recv()
					if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
						return nil
					}
					if err != nil {
						return err
					}
					if err := c.print(event, func(w io.Writer) {
						fmt.Fprintf(w, "%s\t%d\t%s\n", event.RunID, event.Seq, actionText(event.Action))
					}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many events")
	return cmd
}

func writeRun(w io.Writer, view *runservice.RunView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", view.RunID)
	fmt.Fprintf(tw, "phase\t%s (%d)\n", view.Phase, view.PhaseOrdinal)
	fmt.Fprintf(tw, "seq\t%d\n", view.Seq)
	fmt.Fprintf(tw, "remaining\t%d\n", view.Remaining)
	fmt.Fprintf(tw, "recalls\t%d\n", view.Recalls)
	if len(view.Bosses) > 0 {
		fmt.Fprintf(tw, "bosses\t%s\n", strings.Join(view.Bosses, ", "))
	}
	if len(view.DeadMembers) > 0 {
		fmt.Fprintf(tw, "dead\t%s\n", strings.Join(view.DeadMembers, ", "))
	}
	if view.LastOverride != "" {
		fmt.Fprintf(tw, "last override\t%s\n", view.LastOverride)
	}
	_ = tw.Flush()
}

func actionText(a runservice.ActionView) string {
	parts := []string{a.Kind}
	for _, v := range []string{a.Actor, a.Group, a.Sequence, a.Phase} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if a.Position != nil {
		parts = append(parts, a.Position.String())
	}
	return strings.Join(parts, " ")
}
