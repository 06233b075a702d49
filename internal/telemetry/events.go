// ABOUTME: Typed mode-specific metric events (debugger, implementer, reviewer, planner)
// ABOUTME: Validation rejects unknown kinds, bad severities and negative counts without mutating state

package telemetry

import (
	"errors"
	"fmt"
	"time"
)

// EventKind names a mode-specific metric event.
type EventKind string

const (
	// Debugger
	ErrorAnalyzed EventKind = "error_analyzed"
	BugFound      EventKind = "bug_found"
	FixApplied    EventKind = "fix_applied"

	// Implementer
	FileCreated  EventKind = "file_created"
	FileModified EventKind = "file_modified"
	FileDeleted  EventKind = "file_deleted"
	LinesAdded   EventKind = "lines_added"
	LinesRemoved EventKind = "lines_removed"
	TestWritten  EventKind = "test_written"
	Commit       EventKind = "commit"

	// Reviewer
	FileReviewed   EventKind = "file_reviewed"
	IssueFound     EventKind = "issue_found"
	SuggestionMade EventKind = "suggestion_made"

	// Planner
	TaskPlanned      EventKind = "task_planned"
	DecisionRecorded EventKind = "decision_recorded"
	DocWritten       EventKind = "doc_written"
)

// EventKinds lists every kind in vocabulary order.
func EventKinds() []EventKind {
	return []EventKind{
		ErrorAnalyzed, BugFound, FixApplied,
		FileCreated, FileModified, FileDeleted, LinesAdded, LinesRemoved, TestWritten, Commit,
		FileReviewed, IssueFound, SuggestionMade,
		TaskPlanned, DecisionRecorded, DocWritten,
	}
}

// Event is one mode-specific observation.
type Event struct {
	Kind      EventKind
	Severity  Severity      // BugFound, IssueFound
	Success   bool          // FixApplied
	TimeToFix time.Duration // FixApplied
	Count     int           // LinesAdded, LinesRemoved
}

// Validation errors.
var (
	ErrUnknownEvent = errors.New("unknown metric event")
	ErrInvalidEvent = errors.New("invalid metric event")
)

func (e Event) validate() error {
	switch e.Kind {
	case BugFound, IssueFound:
		if !e.Severity.Valid() {
			return fmt.Errorf("%w: %s needs a severity, got %q", ErrInvalidEvent, e.Kind, e.Severity)
		}
	case FixApplied:
		if e.TimeToFix < 0 {
			return fmt.Errorf("%w: negative time to fix", ErrInvalidEvent)
		}
	case LinesAdded, LinesRemoved:
		if e.Count < 0 {
			return fmt.Errorf("%w: negative line count %d", ErrInvalidEvent, e.Count)
		}
	case ErrorAnalyzed, FileCreated, FileModified, FileDeleted, TestWritten, Commit,
		FileReviewed, SuggestionMade, TaskPlanned, DecisionRecorded, DocWritten:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Kind)
	}
	return nil
}

// apply folds a validated event into a.
func (a *Aggregate) apply(e Event) {
	switch e.Kind {
	case ErrorAnalyzed:
		a.Debugger.ErrorsAnalyzed++
	case BugFound:
		a.Debugger.Bugs[e.Severity]++
	case FixApplied:
		d := &a.Debugger
		success := 0.0
		if e.Success {
			success = 1
		}
		d.SuccessRate = runningAvg(d.SuccessRate, d.FixesApplied, success)
		d.AvgTimeToFix = time.Duration(runningAvg(float64(d.AvgTimeToFix), d.FixesApplied, float64(e.TimeToFix)))
		d.FixesApplied++
	case FileCreated:
		a.Implementer.FilesCreated++
	case FileModified:
		a.Implementer.FilesModified++
	case FileDeleted:
		a.Implementer.FilesDeleted++
	case LinesAdded:
		a.Implementer.LinesAdded += e.Count
	case LinesRemoved:
		a.Implementer.LinesRemoved += e.Count
	case TestWritten:
		a.Implementer.TestsWritten++
	case Commit:
		a.Implementer.Commits++
	case FileReviewed:
		a.Reviewer.FilesReviewed++
	case IssueFound:
		a.Reviewer.Issues[e.Severity]++
	case SuggestionMade:
		a.Reviewer.Suggestions++
	case TaskPlanned:
		a.Planner.TasksPlanned++
	case DecisionRecorded:
		a.Planner.DecisionsRecorded++
	case DocWritten:
		a.Planner.DocsWritten++
	}
}
