// ABOUTME: StatusModel is a Bubble Tea leaf rendering the active mode, focus lock and workflow
// ABOUTME: State is fed by EventMsg values from the bus bridge; no direct session access

package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mauromedda/pi-modes/internal/controller"
	"github.com/mauromedda/pi-modes/internal/events"
	"github.com/mauromedda/pi-modes/internal/focus"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/suggest"
	"github.com/mauromedda/pi-modes/internal/workflow"
)

// StatusModel renders a two-line status bar.
// Line 1: mode badge, auto-switch flag, focus countdown, workflow step.
// Line 2: the latest animation or block message, else the pending suggestion.
type StatusModel struct {
	reg        *modes.Registry
	mode       modes.ID
	autoSwitch bool

	focusMode      modes.ID
	focusRemaining time.Duration

	workflow  string
	step      string
	stepIndex int
	total     int
	paused    bool

	banner     string
	bannerErr  bool
	suggestion *suggest.Suggestion
	width      int
}

// NewStatusModel creates a status bar showing the registry default.
func NewStatusModel(reg *modes.Registry) StatusModel {
	return StatusModel{reg: reg, mode: reg.Default(), autoSwitch: true}
}

// WithState seeds the mode and auto-switch flag from a controller snapshot.
func (m StatusModel) WithState(st controller.State) StatusModel {
	m.mode = st.Current
	m.autoSwitch = st.AutoSwitch
	return m
}

// WithFocus seeds the focus countdown.
func (m StatusModel) WithFocus(st focus.Status) StatusModel {
	if st.Active {
		m.focusMode = st.Mode
		m.focusRemaining = st.Remaining
	}
	return m
}

// WithWorkflow seeds the workflow position.
func (m StatusModel) WithWorkflow(p workflow.Progress) StatusModel {
	m.workflow = p.Workflow
	m.step = p.Step.ID
	m.stepIndex = p.Index
	m.total = p.Total
	m.paused = p.Paused
	return m
}

// WithSuggestion sets the pending suggestion.
func (m StatusModel) WithSuggestion(sg *suggest.Suggestion) StatusModel {
	m.suggestion = sg
	return m
}

// Mode returns the mode currently displayed.
func (m StatusModel) Mode() modes.ID { return m.mode }

// Init returns nil; no commands needed for a leaf model.
func (m StatusModel) Init() tea.Cmd {
	return nil
}

// Update applies bus events, suggestions and resizes.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m = m.apply(msg.Event)
	case SuggestionMsg:
		m.suggestion = msg.Suggestion
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m StatusModel) apply(e events.Event) StatusModel {
	switch e.Kind {
	case events.ModeChanged:
		m.mode = e.Transition.To
		m.suggestion = nil
	case events.ModeSwitchBlocked:
		m.banner = fmt.Sprintf("Switch to %s blocked: %s", m.reg.Lookup(e.Transition.To).Name, e.Reason)
		m.bannerErr = true
	case events.AutoSwitchChanged:
		m.autoSwitch = e.AutoSwitch
	case events.AnimationStarted, events.AnimationCompleted:
		m.banner = e.Message
		m.bannerErr = false
	case events.FocusStarted, events.FocusExtended, events.FocusCountdown:
		m.focusMode = e.Mode
		m.focusRemaining = e.Remaining
	case events.FocusEnded:
		m.focusMode = ""
		m.focusRemaining = 0
	case events.WorkflowStarted, events.WorkflowStepChanged:
		if e.Workflow != m.workflow {
			m.total = 0
		}
		m.workflow = e.Workflow
		m.step = e.Step
		m.stepIndex = e.StepIndex
		m.paused = false
	case events.WorkflowPaused:
		m.paused = true
	case events.WorkflowResumed:
		m.paused = false
	case events.WorkflowStopped, events.WorkflowCompleted:
		m.workflow, m.step, m.stepIndex, m.total, m.paused = "", "", 0, 0, false
	}
	return m
}

// View renders the status bar.
func (m StatusModel) View() string {
	s := Styles()

	parts := []string{badge(m.reg.Lookup(m.mode))}
	if m.autoSwitch {
		parts = append(parts, s.Success.Render("auto"))
	} else {
		parts = append(parts, s.Muted.Render("manual"))
	}
	if m.focusMode != "" {
		parts = append(parts, s.Warning.Render(fmt.Sprintf("🔒 %s %s",
			m.reg.Lookup(m.focusMode).Name, formatClock(m.focusRemaining))))
	}
	if m.workflow != "" {
		pos := fmt.Sprintf("%d", m.stepIndex+1)
		if m.total > 0 {
			pos = fmt.Sprintf("%d/%d", m.stepIndex+1, m.total)
		}
		wf := fmt.Sprintf("⛭ %s %s %s", m.workflow, pos, m.step)
		if m.paused {
			wf += " (paused)"
		}
		parts = append(parts, s.Info.Render(wf))
	}
	line1 := strings.Join(parts, s.Muted.Render("  "))

	var line2 string
	switch {
	case m.banner != "" && m.bannerErr:
		line2 = s.Error.Render(m.banner)
	case m.banner != "":
		line2 = s.Muted.Render(m.banner)
	}
	if m.suggestion != nil {
		hint := s.Suggestion.Render(fmt.Sprintf("💡 %s: %s (%.0f%%)",
			m.reg.Lookup(m.suggestion.Mode).Name, m.suggestion.Reason, m.suggestion.Confidence*100))
		if line2 != "" {
			line2 += s.Muted.Render("  ")
		}
		line2 += hint
	}

	if m.width > 0 {
		clip := lipgloss.NewStyle().MaxWidth(m.width)
		line1 = clip.Render(line1)
		line2 = clip.Render(line2)
	}
	if line2 == "" {
		return line1
	}
	return line1 + "\n" + line2
}

// formatClock renders d as m:ss, rounding up to whole seconds.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
