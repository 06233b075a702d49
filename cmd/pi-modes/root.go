// ABOUTME: Root cobra command, shared flags and session construction for subcommands
// ABOUTME: Settings load in PersistentPreRunE; the log level comes from --verbose or log_level

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/mauromedda/pi-modes/internal/config"
	"github.com/mauromedda/pi-modes/internal/engine"
	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/ui"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbose bool
	project string
	style   string

	settings *config.Settings
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "pi-modes",
		Short: "Adaptive operational modes for a coding assistant",
		Long: `pi-modes classifies conversation turns into behavioral modes
(assistant, planner, implementer, debugger, reviewer, security, researcher)
and switches between them under cooldown, hysteresis and confidence rules.

Run without arguments to start the interactive console.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(g, "")
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&g.project, "project", "", "Project root holding .pi-modes/ (default: working directory)")
	pf.StringVar(&g.style, "style", "", "Glamour style for markdown output (default: auto)")

	root.AddCommand(
		newTUICmd(g),
		newClassifyCmd(g),
		newSimulateCmd(g),
		newMetricsCmd(g),
		newWorkflowsCmd(g),
		newHybridsCmd(g),
	)
	return root
}

// load resolves the project root, reads settings and applies the log level.
func (g *globalFlags) load() error {
	if g.project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		g.project = cwd
	}
	settings, err := config.Load(g.project)
	if err != nil {
		return err
	}
	g.settings = settings

	switch {
	case g.verbose:
		pilog.SetLevel(pilog.LevelDebug)
	case settings.LogLevel != "":
		lvl, err := zapcore.ParseLevel(settings.LogLevel)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		pilog.SetLevel(lvl)
	}
	return nil
}

// session builds a session for the project with extra options.
func (g *globalFlags) session(opts ...engine.Option) (*engine.Session, error) {
	return engine.New(g.settings, append([]engine.Option{engine.WithProjectRoot(g.project)}, opts...)...)
}

// renderer returns a markdown renderer honoring --style.
func (g *globalFlags) renderer() *ui.MarkdownRenderer {
	return ui.NewMarkdownRenderer(g.style)
}

// terminalWidth returns the width of w when it is a terminal, else the default.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return ui.DefaultWidth
}

func newTUICmd(g *globalFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive mode console",
		Long: `Starts the interactive console. Plain input is classified as a user turn;
lines starting with / are commands (try /help). Mode history and snapshots are
kept per session so a later run with the same --session resumes where it left off.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(g, sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to create or resume (default: a new id)")
	return cmd
}

func runConsole(g *globalFlags, sessionID string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("the console needs an interactive terminal; use simulate for transcripts")
	}
	if sessionID == "" {
		sessionID = newSessionID()
	}
	opts := []engine.Option{engine.WithSessionID(sessionID), engine.WithWatch()}
	if !g.settings.Modes.Metrics.Disabled {
		opts = append(opts, engine.WithMetricsPath(config.MetricsFile()))
	}
	// Log lines would corrupt the screen; send them to the session directory.
	logPath := filepath.Join(config.SessionDir(sessionID), "pi-modes.log")
	if err := config.EnsureDir(filepath.Dir(logPath)); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	pilog.SetOutput(logFile)
	defer pilog.SetOutput(os.Stderr)

	sess, err := g.session(opts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	pilog.Info("session %s", sessionID)
	return ui.Run(sess)
}
