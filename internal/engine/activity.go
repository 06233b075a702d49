// ABOUTME: Derives mode-specific metric events from turns and their tool calls
// ABOUTME: Only activity that fits the active mode is counted

package engine

import (
	"strings"

	"github.com/mauromedda/pi-modes/internal/intent"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
	"github.com/mauromedda/pi-modes/internal/telemetry"
)

var deleteTools = map[string]bool{"delete": true, "delete_file": true, "rm": true}

var readTools = map[string]bool{"read": true, "view": true, "cat": true}

// activityEvents maps one turn to metric events for the active mode.
func activityEvents(current modes.ID, turn session.Turn) []telemetry.Event {
	var out []telemetry.Event
	if current == modes.Debugger && intent.HasErrorText(turn) {
		out = append(out, telemetry.Event{Kind: telemetry.ErrorAnalyzed})
	}
	for _, call := range turn.ToolCalls {
		name := strings.ToLower(call.Name)
		switch {
		case name == "git_commit":
			out = append(out, telemetry.Event{Kind: telemetry.Commit})
		case session.IsWriteTool(name):
			kind := telemetry.FileModified
			if current == modes.Planner {
				kind = telemetry.DocWritten
			}
			out = append(out, telemetry.Event{Kind: kind})
		case deleteTools[name]:
			out = append(out, telemetry.Event{Kind: telemetry.FileDeleted})
		case readTools[name] && current == modes.Reviewer && session.PathArg(call.Args) != "":
			out = append(out, telemetry.Event{Kind: telemetry.FileReviewed})
		}
	}
	return out
}

func (s *Session) recordTurnActivity(turn session.Turn) {
	for _, e := range activityEvents(s.ctrl.Current(), turn) {
		if err := s.tracker.Record(e); err != nil {
			engineLog.Debug("dropping metric %s: %v", e.Kind, err)
		}
	}
}
