// ABOUTME: Derived metric views: top modes, top transitions, productivity totals
// ABOUTME: FormatSummary renders a markdown session summary for terminal rendering

package telemetry

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mauromedda/pi-modes/internal/modes"
)

// ModeRank is one row of TopModes.
type ModeRank struct {
	Mode    modes.ID
	Total   time.Duration
	Entries int
	Average time.Duration
}

// PairRank is one row of TopTransitions.
type PairRank struct {
	Pair          modes.Pair
	Count         int
	AvgConfidence float64
	Triggers      map[modes.Trigger]int
}

// Productivity totals the mode-specific counters.
type Productivity struct {
	FilesTouched       int
	NetLines           int
	TestsWritten       int
	Commits            int
	BugsFound          int
	FixesApplied       int
	FixSuccessRate     float64
	AvgTimeToFix       time.Duration
	FilesReviewed      int
	IssuesFound        int
	TasksPlanned       int
	DocsWritten        int
	Transitions        int
	TransitionsPerHour float64
}

// TopModes returns up to n modes by cumulative time, then entries, then id.
// Time in the open visit counts up to now.
func (t *Tracker) TopModes(n int) []ModeRank {
	snap := t.Snapshot()
	now := t.clock()

	ranks := make([]ModeRank, 0, len(snap.Modes))
	for id, s := range snap.Modes {
		total := s.Total
		if id == snap.Current && !snap.CurrentSince.IsZero() && now.After(snap.CurrentSince) {
			total += now.Sub(snap.CurrentSince)
		}
		ranks = append(ranks, ModeRank{Mode: id, Total: total, Entries: s.Entries, Average: s.Average})
	}
	slices.SortFunc(ranks, func(a, b ModeRank) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Entries, a.Entries); c != 0 {
			return c
		}
		return cmp.Compare(a.Mode, b.Mode)
	})
	if n > 0 && len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

// TopTransitions returns up to n pairs by count, then confidence, then key.
func (t *Tracker) TopTransitions(n int) []PairRank {
	snap := t.Snapshot()

	ranks := make([]PairRank, 0, len(snap.Transitions))
	for key, s := range snap.Transitions {
		pair, err := modes.ParsePair(key)
		if err != nil {
			continue
		}
		ranks = append(ranks, PairRank{Pair: pair, Count: s.Count, AvgConfidence: s.AvgConfidence, Triggers: s.Triggers})
	}
	slices.SortFunc(ranks, func(a, b PairRank) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(b.AvgConfidence, a.AvgConfidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Pair.String(), b.Pair.String())
	})
	if n > 0 && len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

// Productivity totals the counters.
func (t *Tracker) Productivity() Productivity {
	snap := t.Snapshot()
	now := t.clock()

	p := Productivity{
		FilesTouched:   snap.Implementer.FilesCreated + snap.Implementer.FilesModified + snap.Implementer.FilesDeleted,
		NetLines:       snap.Implementer.LinesAdded - snap.Implementer.LinesRemoved,
		TestsWritten:   snap.Implementer.TestsWritten,
		Commits:        snap.Implementer.Commits,
		BugsFound:      sumSeverities(snap.Debugger.Bugs),
		FixesApplied:   snap.Debugger.FixesApplied,
		FixSuccessRate: snap.Debugger.SuccessRate,
		AvgTimeToFix:   snap.Debugger.AvgTimeToFix,
		FilesReviewed:  snap.Reviewer.FilesReviewed,
		IssuesFound:    sumSeverities(snap.Reviewer.Issues),
		TasksPlanned:   snap.Planner.TasksPlanned,
		DocsWritten:    snap.Planner.DocsWritten,
		Transitions:    snap.TotalTransitions,
	}
	if hours := now.Sub(snap.Started).Hours(); hours > 0 {
		p.TransitionsPerHour = float64(snap.TotalTransitions) / hours
	}
	return p
}

func sumSeverities(m map[Severity]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// FormatSummary renders a markdown summary. reg supplies mode labels.
func (t *Tracker) FormatSummary(reg *modes.Registry) string {
	top := t.TopModes(0)
	pairs := t.TopTransitions(5)
	p := t.Productivity()
	snap := t.Snapshot()

	var b strings.Builder
	b.WriteString("# Mode Summary\n\n")

	if len(top) == 0 {
		b.WriteString("No mode activity recorded yet.\n")
		return b.String()
	}

	var tracked time.Duration
	for _, r := range top {
		tracked += r.Total
	}
	fmt.Fprintf(&b, "**%d** transitions over **%s** of tracked time", p.Transitions, formatDuration(tracked))
	if snap.Current != "" {
		fmt.Fprintf(&b, " · currently in **%s**", reg.Lookup(snap.Current).Label())
	}
	b.WriteString("\n\n")

	b.WriteString("## Time in mode\n\n")
	b.WriteString("| Mode | Time | Share | Entries | Avg visit |\n")
	b.WriteString("|------|------|-------|---------|-----------|\n")
	for _, r := range top {
		share := 0.0
		if tracked > 0 {
			share = float64(r.Total) / float64(tracked) * 100
		}
		fmt.Fprintf(&b, "| %s | %s | %.0f%% | %d | %s |\n",
			reg.Lookup(r.Mode).Label(), formatDuration(r.Total), share, r.Entries, formatDuration(r.Average))
	}

	if len(pairs) > 0 {
		b.WriteString("\n## Top transitions\n\n")
		b.WriteString("| Transition | Count | Avg confidence | Triggers |\n")
		b.WriteString("|------------|-------|----------------|----------|\n")
		for _, r := range pairs {
			fmt.Fprintf(&b, "| %s → %s | %d | %.2f | %s |\n",
				reg.Lookup(r.Pair.From).Name, reg.Lookup(r.Pair.To).Name, r.Count, r.AvgConfidence, formatTriggers(r.Triggers))
		}
	}

	b.WriteString("\n## Productivity\n\n")
	fmt.Fprintf(&b, "- Files: %d created, %d modified, %d deleted\n",
		snap.Implementer.FilesCreated, snap.Implementer.FilesModified, snap.Implementer.FilesDeleted)
	fmt.Fprintf(&b, "- Lines: +%d / -%d (net %+d)\n", snap.Implementer.LinesAdded, snap.Implementer.LinesRemoved, p.NetLines)
	fmt.Fprintf(&b, "- Tests written: %d, commits: %d\n", p.TestsWritten, p.Commits)
	if p.FixesApplied > 0 || p.BugsFound > 0 || snap.Debugger.ErrorsAnalyzed > 0 {
		fmt.Fprintf(&b, "- Debugging: %d errors analyzed, %d bugs found%s, %d fixes (%.0f%% success, avg %s)\n",
			snap.Debugger.ErrorsAnalyzed, p.BugsFound, formatSeverities(snap.Debugger.Bugs),
			p.FixesApplied, p.FixSuccessRate*100, formatDuration(p.AvgTimeToFix))
	}
	if p.FilesReviewed > 0 || p.IssuesFound > 0 {
		fmt.Fprintf(&b, "- Review: %d files, %d issues%s, %d suggestions\n",
			p.FilesReviewed, p.IssuesFound, formatSeverities(snap.Reviewer.Issues), snap.Reviewer.Suggestions)
	}
	if p.TasksPlanned > 0 || p.DocsWritten > 0 || snap.Planner.DecisionsRecorded > 0 {
		fmt.Fprintf(&b, "- Planning: %d tasks, %d decisions, %d docs\n",
			p.TasksPlanned, snap.Planner.DecisionsRecorded, p.DocsWritten)
	}
	return b.String()
}

func formatTriggers(m map[modes.Trigger]int) string {
	var parts []string
	for _, tr := range modes.Triggers() {
		if n := m[tr]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", tr, n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func formatSeverities(m map[Severity]int) string {
	var parts []string
	for _, s := range slices.Backward(Severities()) {
		if n := m[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// formatDuration renders d rounded to seconds, or "0s".
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
