// ABOUTME: Lipgloss styles for the mode status view
// ABOUTME: Mode badges take the mode's own color; everything else uses a fixed palette

package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mauromedda/pi-modes/internal/modes"
)

// Palette groups the styles used by the status and app views.
type Palette struct {
	Muted      lipgloss.Style
	Info       lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Suggestion lipgloss.Style
	Prompt     lipgloss.Style
}

var palette = Palette{
	Muted:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Info:       lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	Warning:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	Success:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	Suggestion: lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Italic(true),
	Prompt:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
}

// Styles returns the shared palette.
func Styles() Palette { return palette }

// badge renders a mode label in the mode's color.
func badge(m modes.Mode) string {
	st := lipgloss.NewStyle().Bold(true)
	if m.Color != "" {
		st = st.Foreground(lipgloss.Color(m.Color))
	}
	return st.Render(m.Label())
}
