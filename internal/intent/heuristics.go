// ABOUTME: Per-turn feature extraction: lexicon hits, explicit requests, code, error and security text
// ABOUTME: Matching is case-insensitive substring search; explicit names resolve through the registry

package intent

import (
	"regexp"
	"strings"

	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
)

// explicitPatterns capture the requested mode name.
var explicitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:switch|change|go|move)\s+(?:to|into)\s+(?:the\s+)?([\w-]+)\s+mode\b`),
	regexp.MustCompile(`(?i)\buse\s+(?:the\s+)?([\w-]+)\s+mode\b`),
	regexp.MustCompile(`(?i)^\s*/mode\s+([\w-]+)`),
}

var errorPattern = regexp.MustCompile(`(?im)(panic:|traceback \(most recent call last\)|\bexception\b|\berror:|stack trace|segmentation fault|nil pointer dereference|\bundefined: |^--- fail|^fail\s|exit status [1-9]|\btypeerror\b)`)

var securityPattern = regexp.MustCompile(`(?i)(\bcve-\d{4}-\d+|\bxss\b|\bcsrf\b|sql injection|command injection|\bvulnerab\w*|\bexploit\w*|\bsecrets?\b|\bcredentials?\b|\bowasp\b|\bsanitiz\w*|privilege escalation|\bauth(?:n|z)\b)`)

// turnFeatures are the raw observations for one turn.
type turnFeatures struct {
	hits     map[modes.ID]int      // lexicon match count per mode
	keywords map[modes.ID][]string // distinct matched entries per mode
	explicit modes.ID
	hasCode  bool
	hasError bool
	security string // first security term, empty when none
	tools    bool
}

// ExplicitRequest returns the mode a text explicitly asks for. Only exact
// ids, names and aliases count; "go into edit mode" asks for nothing.
func ExplicitRequest(reg *modes.Registry, text string) (modes.ID, bool) {
	for _, p := range explicitPatterns {
		for _, line := range strings.Split(text, "\n") {
			m := p.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if id, ok := reg.ResolveExact(m[1]); ok {
				return id, true
			}
		}
	}
	return "", false
}

func extract(reg *modes.Registry, turn session.Turn) turnFeatures {
	text := turn.Text()
	lower := strings.ToLower(text)

	f := turnFeatures{
		hits:     make(map[modes.ID]int, reg.Len()),
		keywords: make(map[modes.ID][]string, reg.Len()),
		hasCode:  turn.HasCodeBlock(),
		hasError: errorPattern.MatchString(text),
		tools:    turn.HasToolCalls(),
	}
	for _, m := range reg.Modes() {
		for _, entry := range m.Lexicon {
			n := strings.Count(lower, strings.ToLower(entry))
			if n == 0 {
				continue
			}
			f.hits[m.ID] += n
			f.keywords[m.ID] = append(f.keywords[m.ID], entry)
		}
	}
	if turn.Role == session.RoleUser || turn.Role == "" {
		if id, ok := ExplicitRequest(reg, text); ok {
			f.explicit = id
		}
	}
	if loc := securityPattern.FindString(text); loc != "" {
		f.security = strings.ToLower(loc)
	}
	for _, call := range turn.ToolCalls {
		if call.Failed || errorPattern.MatchString(call.Output) {
			f.hasError = true
		}
	}
	return f
}

// HasErrorText reports whether turn carries error output or a failed tool call.
func HasErrorText(turn session.Turn) bool {
	if errorPattern.MatchString(turn.Text()) {
		return true
	}
	for _, call := range turn.ToolCalls {
		if call.Failed || errorPattern.MatchString(call.Output) {
			return true
		}
	}
	return false
}

// SecurityTerm returns the first security term in text, lower-cased, or "".
func SecurityTerm(text string) string {
	return strings.ToLower(securityPattern.FindString(text))
}
