// ABOUTME: AppModel is the interactive mode console: a prompt, a scrollback log and the status bar
// ABOUTME: Session calls run inside tea.Cmds so bus publishes never block the program goroutine

package ui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mauromedda/pi-modes/internal/commands"
	"github.com/mauromedda/pi-modes/internal/engine"
	"github.com/mauromedda/pi-modes/internal/events"
	"github.com/mauromedda/pi-modes/internal/session"
)

// maxLogLines bounds the scrollback.
const maxLogLines = 500

// AppModel is the root model of the console.
type AppModel struct {
	sess     *engine.Session
	commands *commands.Registry
	md       *MarkdownRenderer
	status   StatusModel

	input   []rune
	log     []string
	overlay string
	busy    bool

	width, height int
	quitting      bool
}

// NewAppModel creates the console for sess.
func NewAppModel(sess *engine.Session, md *MarkdownRenderer) AppModel {
	status := NewStatusModel(sess.Registry()).
		WithState(sess.State()).
		WithFocus(sess.Focus().Status())
	if p, ok := sess.Workflows().Progress(); ok {
		status = status.WithWorkflow(p)
	}
	if sg, ok := sess.LastSuggestion(); ok {
		status = status.WithSuggestion(&sg)
	}
	return AppModel{
		sess:     sess,
		commands: commands.NewRegistry(),
		md:       md,
		status:   status,
	}
}

// Init returns nil; the console waits for input.
func (m AppModel) Init() tea.Cmd {
	return nil
}

// Update routes keys, command results and bus events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.status = m.forward(msg)

	case EventMsg:
		m.status = m.forward(msg)
		m = m.onEvent(msg.Event)

	case SuggestionMsg:
		m.status = m.forward(msg)

	case TurnMsg:
		m.busy = false
		m = m.onTurn(msg)

	case NoticeMsg:
		m.busy = false
		if msg.Err != nil {
			m = m.appendLog(Styles().Error.Render("✗ " + msg.Err.Error()))
		} else if msg.Text != "" {
			m = m.appendLog(msg.Text)
		}

	case overlayMsg:
		m.busy = false
		m.overlay = string(msg)

	case quitMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

type overlayMsg string

type quitMsg struct{}

func (m AppModel) forward(msg tea.Msg) StatusModel {
	next, _ := m.status.Update(msg)
	return next.(StatusModel)
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEsc:
		if m.overlay != "" {
			m.overlay = ""
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	}
	if m.overlay != "" {
		m.overlay = ""
	}

	switch msg.Type {
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyCtrlU:
		m.input = nil
	case tea.KeyEnter:
		line := strings.TrimSpace(string(m.input))
		m.input = nil
		if line == "" || m.busy {
			return m, nil
		}
		m.busy = true
		m = m.appendLog(Styles().Prompt.Render("› ") + line)
		return m, m.submit(line)
	}
	return m, nil
}

// submit runs a slash command or feeds line as a user turn.
func (m AppModel) submit(line string) tea.Cmd {
	sess, reg, md, width := m.sess, m.commands, m.md, m.width
	if commands.IsCommand(line) {
		return func() tea.Msg {
			res, err := reg.Dispatch(sess, line)
			switch {
			case err != nil:
				return NoticeMsg{Err: err}
			case res.Quit:
				return quitMsg{}
			case res.Markdown:
				return overlayMsg(md.Render(res.Output, width))
			}
			return NoticeMsg{Text: strings.TrimRight(res.Output, "\n")}
		}
	}
	return func() tea.Msg {
		res := sess.AddTurn(session.NewTextTurn(session.RoleUser, line))
		return TurnMsg{Input: line, Result: res}
	}
}

func (m AppModel) onTurn(msg TurnMsg) AppModel {
	s := Styles()
	reg := m.sess.Registry()
	a := msg.Result.Analysis
	line := fmt.Sprintf("  %s %.2f", reg.Lookup(a.Mode).Name, a.Confidence)
	if len(a.Keywords) > 0 {
		line += s.Muted.Render(" [" + strings.Join(a.Keywords, ", ") + "]")
	}
	dec := msg.Result.Decision
	switch {
	case dec.Allowed:
		line += s.Success.Render(" → switched")
	case dec.Reason != "":
		line += s.Muted.Render(" · " + dec.Reason)
	}
	m = m.appendLog(line)
	next, _ := m.status.Update(SuggestionMsg{Suggestion: msg.Result.Suggestion})
	m.status = next.(StatusModel)
	return m
}

func (m AppModel) onEvent(e events.Event) AppModel {
	s := Styles()
	switch e.Kind {
	case events.AnimationCompleted:
		m = m.appendLog(s.Info.Render(e.Message))
	case events.ModeSwitchBlocked:
		m = m.appendLog(s.Error.Render("blocked: " + e.Reason))
	case events.FocusEnded:
		m = m.appendLog(s.Warning.Render("focus ended (" + e.Reason + ")"))
	case events.WorkflowStarted, events.WorkflowStepChanged:
		if p, ok := m.sess.Workflows().Progress(); ok {
			m.status = m.status.WithWorkflow(p)
		}
		if e.Instructions != "" {
			m = m.appendLog(s.Muted.Render("step " + e.Step + ": " + e.Instructions))
		}
	case events.WorkflowCompleted:
		m = m.appendLog(s.Success.Render(fmt.Sprintf("workflow %s complete: %d completed, %d skipped",
			e.Workflow, e.Completed, e.Skipped)))
	}
	return m
}

func (m AppModel) appendLog(line string) AppModel {
	m.log = append(m.log, line)
	if over := len(m.log) - maxLogLines; over > 0 {
		m.log = append([]string(nil), m.log[over:]...)
	}
	return m
}

// View renders the scrollback (or overlay), the prompt and the status bar.
func (m AppModel) View() string {
	if m.quitting {
		return ""
	}
	s := Styles()
	status := m.status.View()
	prompt := s.Prompt.Render("› ") + string(m.input) + "█"
	if m.busy {
		prompt = s.Muted.Render("… working")
	}

	var body string
	if m.overlay != "" {
		body = m.overlay + "\n" + s.Muted.Render("esc to close")
	} else {
		body = strings.Join(m.tail(strings.Count(status, "\n")+3), "\n")
	}
	return body + "\n\n" + prompt + "\n" + status
}

// tail returns the log lines that fit above reserved rows.
func (m AppModel) tail(reserved int) []string {
	if m.height <= 0 {
		return m.log
	}
	room := max(m.height-reserved, 1)
	if len(m.log) <= room {
		return m.log
	}
	return m.log[len(m.log)-room:]
}

// Run starts the console for sess and blocks until the user exits.
func Run(sess *engine.Session, opts ...tea.ProgramOption) error {
	m := NewAppModel(sess, NewMarkdownRenderer(""))
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithOutput(os.Stderr)}, opts...)...)
	unsubscribe := Bridge(sess.Bus(), p)
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("bubble tea: %w", err)
	}
	return nil
}
