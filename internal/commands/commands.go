// ABOUTME: Slash command registry and dispatch for mode control inside a session
// ABOUTME: Commands cover switching, auto-switch, focus, workflows, hybrids, findings and reports

package commands

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mauromedda/pi-modes/internal/engine"
	"github.com/mauromedda/pi-modes/internal/hybrid"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/workflow"
)

// ErrUsage reports malformed command arguments.
var ErrUsage = errors.New("usage")

// Result is the output of a command.
type Result struct {
	Output   string
	Markdown bool // Output is markdown meant for a renderer
	Quit     bool
}

func text(format string, args ...any) (Result, error) {
	return Result{Output: fmt.Sprintf(format, args...)}, nil
}

// Command represents a slash command.
type Command struct {
	Name        string
	Usage       string
	Description string
	Execute     func(s *engine.Session, args string) (Result, error)
}

// Registry holds all registered slash commands.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry creates a registry with all core commands registered.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]*Command)}
	r.registerCoreCommands()
	return r
}

// Register adds cmd, replacing any command with the same name.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
}

// Get returns a command by name.
func (r *Registry) Get(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// List returns all commands sorted by name.
func (r *Registry) List() []*Command {
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Dispatch parses a "/command args" input, looks up the command, and executes it.
func (r *Registry) Dispatch(s *engine.Session, input string) (Result, error) {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return Result{}, fmt.Errorf("not a command: %q", input)
	}

	name, args, _ := strings.Cut(input[1:], " ")
	cmd, ok := r.commands[strings.ToLower(name)]
	if !ok {
		return Result{}, fmt.Errorf("unknown command: /%s", name)
	}
	return cmd.Execute(s, strings.TrimSpace(args))
}

// IsCommand returns true if input starts with '/'.
func IsCommand(input string) bool {
	return len(input) > 0 && input[0] == '/'
}

func usage(cmd string) error {
	return fmt.Errorf("%w: %s", ErrUsage, cmd)
}

func (r *Registry) registerCoreCommands() {
	core := []*Command{
		{
			Name:        "help",
			Description: "Show available commands",
			Execute: func(_ *engine.Session, _ string) (Result, error) {
				var b strings.Builder
				b.WriteString("Available commands:\n")
				for _, cmd := range r.List() {
					name := "/" + cmd.Name
					if cmd.Usage != "" {
						name += " " + cmd.Usage
					}
					fmt.Fprintf(&b, "  %-32s %s\n", name, cmd.Description)
				}
				return Result{Output: b.String()}, nil
			},
		},
		{
			Name:        "mode",
			Usage:       "[name]",
			Description: "Show the active mode or switch to another",
			Execute:     modeCmd,
		},
		{
			Name:        "modes",
			Description: "List modes and their aliases",
			Execute: func(s *engine.Session, _ string) (Result, error) {
				current := s.Controller().Current()
				var b strings.Builder
				for _, m := range s.Registry().Modes() {
					marker := " "
					if m.ID == current {
						marker = "*"
					}
					fmt.Fprintf(&b, "%s %-16s %s\n", marker, m.Label(), strings.Join(m.Aliases, ", "))
				}
				return Result{Output: b.String()}, nil
			},
		},
		{
			Name:        "auto",
			Usage:       "[on|off]",
			Description: "Toggle or set automatic mode switching",
			Execute:     autoCmd,
		},
		{
			Name:        "focus",
			Usage:       "<mode> <minutes> | extend <minutes> | off",
			Description: "Lock a mode for a while",
			Execute:     focusCmd,
		},
		{
			Name:        "workflow",
			Usage:       "list | start <id> | next | skip | back | pause | resume | stop",
			Description: "Drive a multi-step workflow",
			Execute:     workflowCmd,
		},
		{
			Name:        "hybrid",
			Usage:       "list | <id> | delete <id> | <mode> <mode>...",
			Description: "List, show, delete or compose hybrids",
			Execute:     hybridCmd,
		},
		{
			Name:        "suggest",
			Description: "Evaluate suggestion rules now",
			Execute: func(s *engine.Session, _ string) (Result, error) {
				sg, ok := s.Suggest()
				if !ok {
					return text("No suggestion.")
				}
				return text("%s", s.FormatSuggestion(sg))
			},
		},
		{
			Name:        "task",
			Usage:       "<text>",
			Description: "Set the task carried into snapshots",
			Execute: func(s *engine.Session, args string) (Result, error) {
				if args == "" {
					return Result{}, usage("/task <text>")
				}
				s.SetTask(args)
				return text("Task set.")
			},
		},
		{
			Name:        "finding",
			Usage:       "<topic>: <text>",
			Description: "Record a finding for the next switch",
			Execute: func(s *engine.Session, args string) (Result, error) {
				topic, line, ok := strings.Cut(args, ":")
				if !ok || strings.TrimSpace(topic) == "" || strings.TrimSpace(line) == "" {
					return Result{}, usage("/finding <topic>: <text>")
				}
				s.AddFinding(topic, line)
				return text("Finding recorded under %s.", strings.TrimSpace(topic))
			},
		},
		{
			Name:        "tool",
			Usage:       "<name> [path]",
			Description: "Check whether the active mode permits a tool call",
			Execute: func(s *engine.Session, args string) (Result, error) {
				fields := strings.Fields(args)
				if len(fields) == 0 {
					return Result{}, usage("/tool <name> [path]")
				}
				callArgs := map[string]any{}
				if len(fields) > 1 {
					callArgs["path"] = fields[1]
				}
				v := s.ValidateToolCall(fields[0], callArgs)
				if v.Allowed {
					return text("%s: allowed", fields[0])
				}
				return text("%s: denied (%s)", fields[0], v.Reason)
			},
		},
		{
			Name:        "history",
			Description: "Show recent transitions",
			Execute: func(s *engine.Session, _ string) (Result, error) {
				hist := s.Controller().History()
				if len(hist) == 0 {
					return text("No transitions yet.")
				}
				var b strings.Builder
				for _, tr := range hist {
					fmt.Fprintf(&b, "%s  %s → %s  %s %.2f\n", tr.At.Format(time.TimeOnly),
						s.Registry().Lookup(tr.From).Name, s.Registry().Lookup(tr.To).Name, tr.Trigger, tr.Confidence)
				}
				return Result{Output: b.String()}, nil
			},
		},
		{
			Name:        "metrics",
			Description: "Show the mode metrics summary",
			Execute: func(s *engine.Session, _ string) (Result, error) {
				return Result{Output: s.MetricsSummary(), Markdown: true}, nil
			},
		},
		{
			Name:        "continuity",
			Description: "Show the context prepared for the active mode",
			Execute: func(s *engine.Session, _ string) (Result, error) {
				if c := s.Continuity(); c != "" {
					return Result{Output: c, Markdown: true}, nil
				}
				return text("No continuity context yet.")
			},
		},
		{
			Name:        "summary",
			Description: "Summarize the session so far",
			Execute: func(s *engine.Session, _ string) (Result, error) {
				return Result{Output: s.ContinuitySummary(), Markdown: true}, nil
			},
		},
		{
			Name:        "exit",
			Description: "Exit",
			Execute: func(_ *engine.Session, _ string) (Result, error) {
				return Result{Output: "Bye.", Quit: true}, nil
			},
		},
	}
	for _, cmd := range core {
		r.Register(cmd)
	}
}

func modeCmd(s *engine.Session, args string) (Result, error) {
	if args == "" {
		m := s.Controller().Mode()
		return text("%s: %s", m.Label(), m.Persona)
	}
	id, ok := s.Registry().Resolve(args)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", engine.ErrUnknownMode, args)
	}
	dec := s.Controller().Switch(id, modes.TriggerExplicit)
	if !dec.Allowed {
		return text("Not switched: %s", dec.Reason)
	}
	return text("Switched to %s.", s.Registry().Lookup(dec.Transition.To).Label())
}

func autoCmd(s *engine.Session, args string) (Result, error) {
	ctrl := s.Controller()
	on := !ctrl.AutoSwitch()
	switch strings.ToLower(args) {
	case "":
	case "on", "true", "1":
		on = true
	case "off", "false", "0":
		on = false
	default:
		return Result{}, usage("/auto [on|off]")
	}
	ctrl.SetAutoSwitch(on)
	if on {
		return text("Auto-switch on.")
	}
	return text("Auto-switch off.")
}

func parseMinutes(s string) (time.Duration, error) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: minutes must be a positive number, got %q", ErrUsage, s)
	}
	return time.Duration(n * float64(time.Minute)), nil
}

func focusCmd(s *engine.Session, args string) (Result, error) {
	fields := strings.Fields(args)
	lock := s.Focus()
	switch {
	case len(fields) == 0:
		st := lock.Status()
		if !st.Active {
			return text("No focus lock.")
		}
		return text("Focused on %s, %s left.", s.Registry().Lookup(st.Mode).Name, st.Remaining.Round(time.Second))
	case len(fields) == 1 && fields[0] == "off":
		lock.Release()
		return text("Focus released.")
	case len(fields) == 2 && fields[0] == "extend":
		d, err := parseMinutes(fields[1])
		if err != nil {
			return Result{}, err
		}
		if err := lock.Extend(d); err != nil {
			return Result{}, err
		}
		return text("Focus extended by %s.", d)
	case len(fields) == 2:
		d, err := parseMinutes(fields[1])
		if err != nil {
			return Result{}, err
		}
		if err := s.StartFocus(fields[0], d); err != nil {
			return Result{}, err
		}
		return text("Focus locked for %s.", d)
	}
	return Result{}, usage("/focus <mode> <minutes> | extend <minutes> | off")
}

func workflowCmd(s *engine.Session, args string) (Result, error) {
	wf := s.Workflows()
	sub, rest, _ := strings.Cut(args, " ")
	var (
		p   workflow.Progress
		err error
	)
	switch sub {
	case "", "status":
		var ok bool
		if p, ok = wf.Progress(); !ok {
			return text("No active workflow.")
		}
		return text("%s", formatProgress(s, p))
	case "list":
		var b strings.Builder
		for _, d := range wf.Catalog().List() {
			ids := make([]string, 0, len(d.Steps))
			for _, st := range d.Steps {
				ids = append(ids, st.ID)
			}
			fmt.Fprintf(&b, "%-16s %s (%s)\n", d.ID, d.Title(), strings.Join(ids, " → "))
		}
		return Result{Output: b.String()}, nil
	case "start":
		if rest == "" {
			return Result{}, usage("/workflow start <id>")
		}
		p, err = wf.Start(strings.TrimSpace(rest))
	case "next":
		p, err = wf.Advance()
	case "skip":
		p, err = wf.Skip()
	case "back":
		p, err = wf.Retreat()
	case "pause":
		if err := wf.Pause(); err != nil {
			return Result{}, err
		}
		return text("Workflow paused.")
	case "resume":
		if err := wf.Resume(); err != nil {
			return Result{}, err
		}
		return text("Workflow resumed.")
	case "stop":
		if err := wf.Stop(); err != nil {
			return Result{}, err
		}
		return text("Workflow stopped.")
	default:
		return Result{}, usage("/workflow list | start <id> | next | skip | back | pause | resume | stop")
	}
	if err != nil {
		return Result{}, err
	}
	return text("%s", formatProgress(s, p))
}

func formatProgress(s *engine.Session, p workflow.Progress) string {
	if p.Done {
		return fmt.Sprintf("%s complete in %s: %d completed, %d skipped.",
			p.Title, p.Elapsed.Round(time.Second), p.Completed, p.Skipped)
	}
	name := p.Step.Name
	if name == "" {
		name = p.Step.ID
	}
	out := fmt.Sprintf("%s step %d/%d: %s (%s)", p.Title, p.Index+1, p.Total,
		name, s.Registry().Lookup(p.Step.Mode).Label())
	if p.Step.Optional {
		out += ", optional"
	}
	if p.Paused {
		out += ", paused"
	}
	if p.Decision.Transition.To != "" && !p.Decision.Allowed && p.Decision.Reason != "" {
		out += fmt.Sprintf(". Mode unchanged: %s", p.Decision.Reason)
	}
	if p.Step.Instructions != "" {
		out += "\n  " + p.Step.Instructions
	}
	return out
}

func hybridCmd(s *engine.Session, args string) (Result, error) {
	comp := s.Hybrids()
	fields := strings.Fields(args)
	if len(fields) == 0 || fields[0] == "list" {
		var b strings.Builder
		for _, h := range comp.List() {
			fmt.Fprintf(&b, "%-28s %-10s %s\n", h.ID, h.Origin, h.Label())
		}
		return Result{Output: b.String()}, nil
	}
	if fields[0] == "delete" {
		if len(fields) != 2 {
			return Result{}, fmt.Errorf("%w: /hybrid delete <id>", ErrUsage)
		}
		if err := comp.Delete(fields[1]); err != nil {
			return Result{}, err
		}
		return Result{Output: fmt.Sprintf("Deleted hybrid %s.\n", fields[1])}, nil
	}
	if len(fields) == 1 {
		if h, ok := comp.Get(fields[0]); ok {
			return Result{Output: describeHybrid(h), Markdown: true}, nil
		}
	}
	bases := make([]modes.ID, 0, len(fields))
	for _, f := range fields {
		id, ok := s.Registry().Resolve(f)
		if !ok {
			return Result{}, fmt.Errorf("%w: %q", hybrid.ErrUnknownMode, f)
		}
		bases = append(bases, id)
	}
	h, err := comp.Compose(bases...)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: describeHybrid(h), Markdown: true}, nil
}

func describeHybrid(h hybrid.Hybrid) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", h.Name)
	if h.Description != "" {
		fmt.Fprintf(&b, "%s %s\n\n", h.Icon, h.Description)
	}
	fmt.Fprintf(&b, "*%s* · temperature %.1f (%s)\n\n", h.Origin, h.Temperature, h.Class)
	fmt.Fprintf(&b, "You are %s.\n\n", h.Persona)
	fmt.Fprintf(&b, "**Tools:** %s\n", strings.Join(h.AllowedTools, ", "))
	if len(h.DeniedTools) > 0 {
		fmt.Fprintf(&b, "**Denied:** %s\n", strings.Join(h.DeniedTools, ", "))
	}
	b.WriteString("\n")
	b.WriteString(h.Instructions)
	return b.String()
}
