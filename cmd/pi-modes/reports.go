// ABOUTME: metrics, workflows and hybrids subcommands: read-only reports rendered for the terminal
// ABOUTME: Markdown output goes through glamour at the terminal width

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mauromedda/pi-modes/internal/commands"
	"github.com/mauromedda/pi-modes/internal/config"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/telemetry"
)

func newMetricsCmd(g *globalFlags) *cobra.Command {
	var (
		path string
		raw  bool
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show time-in-mode, transition and productivity metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = config.MetricsFile()
			}
			agg, err := telemetry.Load(path)
			if err != nil {
				return err
			}
			tracker := telemetry.NewTracker()
			defer tracker.Close()
			if agg != nil {
				tracker.Restore(*agg)
			}

			summary := tracker.FormatSummary(modes.Default())
			out := cmd.OutOrStdout()
			if raw {
				fmt.Fprint(out, summary)
				return nil
			}
			fmt.Fprintln(out, g.renderer().Render(summary, terminalWidth(out)))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Metrics file (default: the global metrics file)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without rendering")
	return cmd
}

// dispatch runs a console command against a throwaway session and prints it.
func dispatch(cmd *cobra.Command, g *globalFlags, line string) error {
	sess, err := g.session()
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := commands.NewRegistry().Dispatch(sess, line)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.Markdown {
		fmt.Fprintln(out, g.renderer().Render(res.Output, terminalWidth(out)))
		return nil
	}
	fmt.Fprint(out, res.Output)
	return nil
}

func newWorkflowsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List built-in and user workflows",
		Long: `Lists workflow definitions. User workflows are YAML files in
~/.pi-modes/workflows, .pi-modes/workflows and the workflows/ directory of each
preset_dirs entry; a user workflow with a built-in id replaces the built-in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return dispatch(cmd, g, "/workflow list")
		},
	}
}

func newHybridsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hybrids [mode|hybrid]...",
		Short: "List hybrids, show one, or compose one from modes",
		Example: `  pi-modes hybrids
  pi-modes hybrids secure-builder
  pi-modes hybrids debugger security`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return dispatch(cmd, g, "/hybrid list")
			}
			return dispatch(cmd, g, "/hybrid "+strings.Join(args, " "))
		},
	}
}
