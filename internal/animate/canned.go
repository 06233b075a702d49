// ABOUTME: Hand-written messages for common mode pairs, preferred over the generic formatter
// ABOUTME: Each format string takes the styled target mode label once

package animate

import "github.com/mauromedda/pi-modes/internal/modes"

// Canned holds the loading and completion format strings for one pair.
type Canned struct {
	Loading    string
	Completion string
}

// DefaultCanned returns a fresh copy of the built-in pair messages.
func DefaultCanned() map[modes.Pair]Canned {
	return map[modes.Pair]Canned{
		{From: modes.Implementer, To: modes.Debugger}: {
			Loading:    "Something broke. Handing over to %s to trace it...",
			Completion: "%s is on it: reproduce first, then fix.",
		},
		{From: modes.Debugger, To: modes.Implementer}: {
			Loading:    "Root cause found. Back to %s to apply the fix...",
			Completion: "%s ready: smallest change, tests alongside.",
		},
		{From: modes.Planner, To: modes.Implementer}: {
			Loading:    "Plan ready. %s is picking up the first task...",
			Completion: "%s active: working through the plan step by step.",
		},
		{From: modes.Implementer, To: modes.Reviewer}: {
			Loading:    "Changes in place. Asking %s for a second look...",
			Completion: "%s active: findings will be grouped by severity.",
		},
		{From: modes.Reviewer, To: modes.Implementer}: {
			Loading:    "Review done. %s is addressing the findings...",
			Completion: "%s active: working through review feedback.",
		},
		{From: modes.Reviewer, To: modes.Security}: {
			Loading:    "Review surfaced a risk. Escalating to %s...",
			Completion: "%s active: assuming hostile input from here.",
		},
		{From: modes.Assistant, To: modes.Planner}: {
			Loading:    "Let's map this out. Switching to %s...",
			Completion: "%s active: milestones, risks and open questions first.",
		},
	}
}
