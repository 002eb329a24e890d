package runctl

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
)

type phaseRow struct {
	Ordinal int    `json:"ordinal"`
	Phase   string `json:"phase"`
	Title   string `json:"title"`
	Stable  string `json:"stable"`
}

type signalRow struct {
	Type    string   `json:"type"`
	Roles   []string `json:"roles"`
	Window  string   `json:"window"`
	Forward bool     `json:"forward"`
}

var titler = cases.Title(language.English)

// phaseTitle turns a phase label into display text.
func phaseTitle(p progress.Phase) string {
	return titler.String(strings.ReplaceAll(p.String(), "_", " "))
}

func phaseRows() []phaseRow {
	rows := make([]phaseRow, 0, progress.Count)
	for _, p := range progress.Phases() {
		rows = append(rows, phaseRow{
			Ordinal: int(p),
			Phase:   p.String(),
			Title:   phaseTitle(p),
			Stable:  progress.StableStateOf(p).String(),
		})
	}
	return rows
}

func newPhasesCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "phases",
		Short: "List the run phases and the stable phase each recovers to",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			rows := phaseRows()
			return c.print(rows, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tPHASE\tTITLE\tRECOVERS TO")
				for _, r := range rows {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Ordinal, r.Phase, r.Title, r.Stable)
				}
				_ = tw.Flush()
			})
		},
	}
}

func newSignalsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "signals",
		Short: "List the signal catalog",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			defs := signal.Definitions()
			rows := make([]signalRow, 0, len(defs))
			for _, d := range defs {
				roles := make([]string, 0, len(d.Roles))
				for _, r := range d.Roles {
					roles = append(roles, string(r))
				}
				rows = append(rows, signalRow{Type: string(d.Type), Roles: roles, Window: d.Window.String(), Forward: d.Forward})
			}
			return c.print(rows, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SIGNAL\tROLES\tFORWARD\tPHASES")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", r.Type, strings.Join(r.Roles, ","), r.Forward, r.Window)
				}
				_ = tw.Flush()
			})
		},
	}
}
