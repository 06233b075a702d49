// ABOUTME: Mode-specific continuity text built from stored snapshots and their findings
// ABOUTME: Reintroduced into the prompt right after a switch so the new mode picks up context

package snapshot

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mauromedda/pi-modes/internal/modes"
)

// Layout orders and titles findings for a target mode.
type Layout struct {
	Title  string
	Topics []string // preferred topic order; other topics follow alphabetically
}

// genericLayout applies to modes without a layout of their own.
var genericLayout = Layout{Title: "Carried-over context"}

// DefaultLayouts returns a fresh copy of the built-in finding layouts.
func DefaultLayouts() map[modes.ID]Layout {
	return map[modes.ID]Layout{
		modes.Debugger:    {Title: "Debugging context", Topics: []string{"errors", "hypotheses", "attempts", "files"}},
		modes.Implementer: {Title: "Implementation context", Topics: []string{"tasks", "decisions", "files", "issues"}},
		modes.Reviewer:    {Title: "Review context", Topics: []string{"files", "changes", "issues", "tests"}},
		modes.Security:    {Title: "Security context", Topics: []string{"vulnerabilities", "issues", "files"}},
		modes.Planner:     {Title: "Planning context", Topics: []string{"goals", "decisions", "open-questions"}},
		modes.Researcher:  {Title: "Research context", Topics: []string{"questions", "sources", "notes"}},
	}
}

func (m *Manager) layoutFor(id modes.ID) Layout {
	if l, ok := m.layouts[id]; ok {
		return l
	}
	return genericLayout
}

func topicOrder(l Layout, f Findings) []string {
	var out []string
	for _, k := range l.Topics {
		if len(f[k]) > 0 {
			out = append(out, k)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(f)) {
		if len(f[k]) > 0 && !slices.Contains(l.Topics, k) {
			out = append(out, k)
		}
	}
	return out
}

// FormatFindings renders f under headings suited to the target mode.
// Empty findings render as "".
func (m *Manager) FormatFindings(to modes.ID, f Findings) string {
	l := m.layoutFor(to)
	topics := topicOrder(l, f)
	if len(topics) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", l.Title)
	for _, k := range topics {
		fmt.Fprintf(&b, "\n**%s**\n", topicTitle(k))
		for _, line := range f[k] {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

// topicTitle renders "open-questions" as "Open Questions". A Caser is not
// safe for concurrent use, so one is built per call.
func topicTitle(k string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(k, "-", " "))
}

// FindingsFor merges the findings of every cached snapshot targeting to,
// oldest first.
func (m *Manager) FindingsFor(to modes.ID) Findings {
	var sets []Findings
	for _, s := range m.List() {
		if s.To == to && len(s.Findings) > 0 {
			sets = append(sets, s.Findings)
		}
	}
	return mergeFindings(sets...)
}

// Continuity renders the text reintroduced after switching into s.To.
func (m *Manager) Continuity(reg *modes.Registry, s Snapshot, findings Findings) string {
	from, to := reg.Lookup(s.From), reg.Lookup(s.To)

	var b strings.Builder
	fmt.Fprintf(&b, "Switched from %s to %s (%s", from.Name, to.Name, s.Trigger)
	if s.Trigger == modes.TriggerHeuristic || s.Trigger == modes.TriggerTool {
		fmt.Fprintf(&b, ", confidence %.2f", s.Confidence)
	}
	b.WriteString(").\n")
	if s.Task != "" {
		fmt.Fprintf(&b, "Current task: %s\n", s.Task)
	}
	if len(s.Skills) > 0 {
		fmt.Fprintf(&b, "Active skills: %s\n", strings.Join(s.Skills, ", "))
	}
	if len(s.Excerpt) > 0 {
		b.WriteString("\nRecent context:\n")
		for _, l := range s.Excerpt {
			text := l.Text
			if len(l.Tools) > 0 {
				tools := "[tools: " + strings.Join(l.Tools, ", ") + "]"
				text = strings.TrimSpace(text + " " + tools)
			}
			fmt.Fprintf(&b, "- %s: %s\n", l.Role, text)
		}
	}
	if f := m.FormatFindings(s.To, findings); f != "" {
		b.WriteString("\n")
		b.WriteString(f)
	}
	return b.String()
}
