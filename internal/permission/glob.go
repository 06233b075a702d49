// ABOUTME: Per-mode tool permission: exact name, trailing-wildcard prefix, universal allow
// ABOUTME: Deny patterns apply only when the mode lacks the universal allow sentinel

package permission

import (
	"strings"

	"github.com/mauromedda/pi-modes/internal/modes"
)

// MatchToolPattern matches a tool name against a pattern, case-insensitively.
// "*" matches everything; a trailing "*" matches by prefix.
func MatchToolPattern(pattern, name string) bool {
	if pattern == modes.AllTools {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix)
	}
	return strings.EqualFold(pattern, name)
}

// Universal reports whether patterns contain the universal-allow sentinel.
func Universal(patterns []string) bool {
	for _, p := range patterns {
		if p == modes.AllTools {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if MatchToolPattern(p, name) {
			return true
		}
	}
	return false
}

// IsToolAllowed reports whether m permits tool.
func IsToolAllowed(m modes.Mode, tool string) bool {
	if Universal(m.AllowedTools) {
		return true
	}
	if matchAny(m.DeniedTools, tool) {
		return false
	}
	return matchAny(m.AllowedTools, tool)
}

// FilterTools returns the subset of tools m permits, preserving input order.
// With a universal allow the input is returned as a fresh copy.
func FilterTools(m modes.Mode, tools []string) []string {
	if Universal(m.AllowedTools) {
		return append([]string(nil), tools...)
	}
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		if IsToolAllowed(m, t) {
			out = append(out, t)
		}
	}
	return out
}

// MatchesTrigger reports whether tool matches any of m's trigger-tool patterns.
func MatchesTrigger(m modes.Mode, tool string) bool {
	return matchAny(m.TriggerTools, tool)
}
