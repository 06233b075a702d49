// ABOUTME: classify and simulate subcommands: run transcripts through the classifier and controller
// ABOUTME: Simulation uses a virtual clock so cooldown and hysteresis apply between turns

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mauromedda/pi-modes/internal/commands"
	"github.com/mauromedda/pi-modes/internal/engine"
	"github.com/mauromedda/pi-modes/internal/events"
	"github.com/mauromedda/pi-modes/internal/intent"
	"github.com/mauromedda/pi-modes/internal/session"
)

func newSessionID() string {
	return uuid.NewString()
}

// readTurns parses a transcript from path, or stdin when path is "" or "-".
func readTurns(cmd *cobra.Command, path string) ([]session.Turn, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening transcript: %w", err)
		}
		defer f.Close()
		r = f
	}
	turns, err := session.ReadTranscript(r)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("transcript has no turns")
	}
	return turns, nil
}

func newClassifyCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify [transcript]",
		Short: "Classify the trailing window of a transcript",
		Long: `Reads a transcript (JSON lines or "role: text" lines, stdin by default)
and prints the recommended mode, per-mode confidence and the signals behind it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			turns, err := readTurns(cmd, firstArg(args))
			if err != nil {
				return err
			}
			sess, err := g.session()
			if err != nil {
				return err
			}
			defer sess.Close()

			a := sess.Classifier().Analyze(turns)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			printAnalysis(cmd.OutOrStdout(), sess, a)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the analysis as JSON")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func printAnalysis(w io.Writer, sess *engine.Session, a intent.Analysis) {
	reg := sess.Registry()
	fmt.Fprintf(w, "Mode:       %s (%.2f)\n", reg.Lookup(a.Mode).Label(), a.Confidence)
	if a.Explicit != "" {
		fmt.Fprintf(w, "Requested:  %s\n", reg.Lookup(a.Explicit).Name)
	}
	fmt.Fprintf(w, "Turns:      %d\n", a.Turns)
	var flags []string
	for _, f := range []struct {
		on   bool
		name string
	}{{a.HasCode, "code"}, {a.HasError, "errors"}, {a.ToolUsage, "tools"}, {a.Security, "security"}} {
		if f.on {
			flags = append(flags, f.name)
		}
	}
	if len(flags) > 0 {
		fmt.Fprintf(w, "Signals:    %s\n", strings.Join(flags, ", "))
	}
	if len(a.Keywords) > 0 {
		fmt.Fprintf(w, "Keywords:   %s\n", strings.Join(a.Keywords, ", "))
	}

	fmt.Fprintln(w, "Scores:")
	ids := reg.IDs()
	sort.SliceStable(ids, func(i, j int) bool { return a.Scores[ids[i]] > a.Scores[ids[j]] })
	for _, id := range ids {
		fmt.Fprintf(w, "  %-12s %.2f %s\n", id, a.Scores[id], bar(a.Scores[id]))
	}
	if alts := sess.Classifier().AlternativesFrom(a, a.Mode, 2); len(alts) > 0 {
		fmt.Fprintln(w, "Alternatives:")
		for _, alt := range alts {
			fmt.Fprintf(w, "  %-12s %.2f %s\n", alt.Mode, alt.Confidence, alt.Rationale)
		}
	}
}

func bar(v float64) string {
	return strings.Repeat("█", int(v*20+0.5))
}

// virtualClock advances only when told to.
type virtualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Step moves the clock to at when it is later, else by d.
func (c *virtualClock) Step(at time.Time, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if at.After(c.now) {
		c.now = at
		return
	}
	c.now = c.now.Add(d)
}

func newSimulateCmd(g *globalFlags) *cobra.Command {
	var (
		step    time.Duration
		metrics bool
	)
	cmd := &cobra.Command{
		Use:   "simulate [transcript]",
		Short: "Replay a transcript through the mode controller",
		Long: `Feeds each turn to a fresh session and prints the classification and the
controller's decision. Tool calls are observed before their turn is added.
User turns starting with / run console commands (for example /focus debugger 10).
Turns without timestamps are spaced --step apart on a virtual clock.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			turns, err := readTurns(cmd, firstArg(args))
			if err != nil {
				return err
			}
			clock := &virtualClock{now: time.Now()}
			sess, err := g.session(engine.WithClock(clock.Now), engine.WithPlainAnimation())
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			simulate(out, sess, clock, turns, step)
			if metrics {
				fmt.Fprintln(out)
				fmt.Fprintln(out, g.renderer().Render(sess.MetricsSummary(), terminalWidth(out)))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&step, "step", 30*time.Second, "Virtual time between turns without timestamps")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Print the metrics summary at the end")
	return cmd
}

func simulate(w io.Writer, sess *engine.Session, clock *virtualClock, turns []session.Turn, step time.Duration) {
	reg := sess.Registry()
	cmds := commands.NewRegistry()
	unsubscribe := sess.Bus().Subscribe(func(e events.Event) {
		switch e.Kind {
		case events.AnimationCompleted:
			fmt.Fprintf(w, "      · %s\n", e.Message)
		case events.ModeSwitchBlocked:
			fmt.Fprintf(w, "      · blocked: %s\n", e.Reason)
		case events.FocusEnded:
			fmt.Fprintf(w, "      · focus ended (%s)\n", e.Reason)
		}
	})
	defer unsubscribe()

	for i, turn := range turns {
		clock.Step(turn.At, step)
		text := strings.TrimSpace(turn.Text())
		if turn.Role == session.RoleUser && commands.IsCommand(text) {
			res, err := cmds.Dispatch(sess, text)
			if err != nil {
				fmt.Fprintf(w, "%3d %-9s %s: %v\n", i+1, turn.Role, text, err)
				continue
			}
			fmt.Fprintf(w, "%3d %-9s %s\n", i+1, turn.Role, text)
			if !res.Markdown && res.Output != "" {
				for _, line := range strings.Split(strings.TrimRight(res.Output, "\n"), "\n") {
					fmt.Fprintf(w, "      %s\n", line)
				}
			}
			continue
		}

		for _, call := range turn.ToolCalls {
			if dec, ok := sess.ObserveToolCall(call); ok && dec.Allowed {
				fmt.Fprintf(w, "%3d %-9s tool %s → %s\n", i+1, turn.Role, call.Name, reg.Lookup(dec.Transition.To).Name)
			}
		}

		res := sess.AddTurn(turn)
		a, dec := res.Analysis, res.Decision
		outcome := "stay"
		switch {
		case dec.Allowed:
			outcome = "→ " + reg.Lookup(dec.Transition.To).Name
		case dec.Code != "":
			outcome = "stay (" + string(dec.Code) + ")"
		}
		fmt.Fprintf(w, "%3d %-9s %-11s %.2f  %s\n", i+1, turn.Role, reg.Lookup(a.Mode).Name, a.Confidence, outcome)
		if res.Suggestion != nil {
			fmt.Fprintf(w, "      💡 %s\n", sess.FormatSuggestion(*res.Suggestion))
		}
	}
	fmt.Fprintf(w, "Final mode: %s after %d transitions\n", sess.Controller().Mode().Label(), len(sess.Controller().History()))
}
