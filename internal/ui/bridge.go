// ABOUTME: Event bus to Bubble Tea bridge: forwards controller events as tea.Msg
// ABOUTME: Publishers must not run on the program goroutine, since Send blocks until Update reads

package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mauromedda/pi-modes/internal/engine"
	"github.com/mauromedda/pi-modes/internal/events"
	"github.com/mauromedda/pi-modes/internal/suggest"
)

// EventMsg wraps a bus event for delivery to the program.
type EventMsg struct {
	Event events.Event
}

// TurnMsg carries the outcome of a submitted turn.
type TurnMsg struct {
	Input  string
	Result engine.TurnResult
}

// SuggestionMsg replaces the displayed suggestion. A nil Suggestion clears it.
type SuggestionMsg struct {
	Suggestion *suggest.Suggestion
}

// NoticeMsg is a one-line status report from a command.
type NoticeMsg struct {
	Text string
	Err  error
}

// ProgramSender is the subset of *tea.Program used by the bridge.
type ProgramSender interface {
	Send(msg tea.Msg)
}

// Bridge subscribes to bus and sends every event to program as an EventMsg.
// The returned function unsubscribes.
func Bridge(bus *events.Bus, program ProgramSender) func() {
	return bus.Subscribe(func(e events.Event) {
		program.Send(EventMsg{Event: e})
	})
}
