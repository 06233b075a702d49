// ABOUTME: Metrics aggregate: time-in-mode, per-pair transition stats and mode-specific counters
// ABOUTME: Serialises losslessly as one JSON document; Clone and normalize keep maps non-nil

package telemetry

import (
	"maps"
	"time"

	"github.com/mauromedda/pi-modes/internal/modes"
)

// aggregateVersion is bumped when the persisted shape changes incompatibly.
const aggregateVersion = 1

// Severity grades bugs and review issues.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists severities from least to most severe.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ModeStats is cumulative time spent in one mode.
type ModeStats struct {
	Entries  int           `json:"entries"`
	Visits   int           `json:"visits"` // completed visits contributing to Total
	Total    time.Duration `json:"total_ns"`
	Average  time.Duration `json:"average_ns"`
	LastSeen time.Time     `json:"last_seen"`
}

// PairStats summarises transitions between two modes.
type PairStats struct {
	Count         int                   `json:"count"`
	AvgConfidence float64               `json:"avg_confidence"`
	Triggers      map[modes.Trigger]int `json:"triggers"`
}

// DebuggerStats counts debugging activity.
type DebuggerStats struct {
	ErrorsAnalyzed int              `json:"errors_analyzed"`
	Bugs           map[Severity]int `json:"bugs"`
	FixesApplied   int              `json:"fixes_applied"`
	SuccessRate    float64          `json:"success_rate"`
	AvgTimeToFix   time.Duration    `json:"avg_time_to_fix_ns"`
}

// ImplementerStats counts implementation activity.
type ImplementerStats struct {
	FilesCreated  int `json:"files_created"`
	FilesModified int `json:"files_modified"`
	FilesDeleted  int `json:"files_deleted"`
	LinesAdded    int `json:"lines_added"`
	LinesRemoved  int `json:"lines_removed"`
	TestsWritten  int `json:"tests_written"`
	Commits       int `json:"commits"`
}

// ReviewerStats counts review activity.
type ReviewerStats struct {
	FilesReviewed int              `json:"files_reviewed"`
	Issues        map[Severity]int `json:"issues"`
	Suggestions   int              `json:"suggestions"`
}

// PlannerStats counts planning activity.
type PlannerStats struct {
	TasksPlanned      int `json:"tasks_planned"`
	DecisionsRecorded int `json:"decisions_recorded"`
	DocsWritten       int `json:"docs_written"`
}

// Aggregate is the full metrics state.
type Aggregate struct {
	Version          int                    `json:"version"`
	Started          time.Time              `json:"started"`
	Current          modes.ID               `json:"current"`
	CurrentSince     time.Time              `json:"current_since"`
	TotalTransitions int                    `json:"total_transitions"`
	Modes            map[modes.ID]ModeStats `json:"modes"`
	Transitions      map[string]PairStats   `json:"transitions"` // keyed "from->to"
	Debugger         DebuggerStats          `json:"debugger"`
	Implementer      ImplementerStats       `json:"implementer"`
	Reviewer         ReviewerStats          `json:"reviewer"`
	Planner          PlannerStats           `json:"planner"`
}

// NewAggregate returns an empty aggregate with all maps allocated.
func NewAggregate() Aggregate {
	var a Aggregate
	a.normalize()
	return a
}

// normalize allocates nil maps so decoded and fresh aggregates compare equal.
func (a *Aggregate) normalize() {
	if a.Version == 0 {
		a.Version = aggregateVersion
	}
	if a.Modes == nil {
		a.Modes = make(map[modes.ID]ModeStats)
	}
	if a.Transitions == nil {
		a.Transitions = make(map[string]PairStats)
	}
	for k, p := range a.Transitions {
		if p.Triggers == nil {
			p.Triggers = make(map[modes.Trigger]int)
			a.Transitions[k] = p
		}
	}
	if a.Debugger.Bugs == nil {
		a.Debugger.Bugs = make(map[Severity]int)
	}
	if a.Reviewer.Issues == nil {
		a.Reviewer.Issues = make(map[Severity]int)
	}
}

// Clone returns a deep copy.
func (a Aggregate) Clone() Aggregate {
	c := a
	c.Modes = maps.Clone(a.Modes)
	c.Transitions = make(map[string]PairStats, len(a.Transitions))
	for k, p := range a.Transitions {
		p.Triggers = maps.Clone(p.Triggers)
		c.Transitions[k] = p
	}
	c.Debugger.Bugs = maps.Clone(a.Debugger.Bugs)
	c.Reviewer.Issues = maps.Clone(a.Reviewer.Issues)
	c.normalize()
	return c
}

// runningAvg folds value into an average over prevCount samples.
func runningAvg(prevAvg float64, prevCount int, value float64) float64 {
	return (prevAvg*float64(prevCount) + value) / float64(prevCount+1)
}
