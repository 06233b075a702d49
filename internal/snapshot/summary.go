// ABOUTME: Full-session continuity summary for reinjection after long-context compression
// ABOUTME: Goal, key knowledge lines, file-operation log and plan lines, rendered as an escaped block

package snapshot

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
)

// Summary limits.
const (
	maxKnowledge = 12
	maxPlan      = 20
	maxLineWidth = 200
)

var (
	knowledgePattern = regexp.MustCompile(`(?i)^(?:note:|important:|decision:|decided\b|we (?:decided|agreed|chose)\b|remember\b|the root cause\b|root cause:|constraint:|must\b|always\b|never\b)`)
	planPattern      = regexp.MustCompile(`^(?:[-*]\s+\[[ xX]\]\s+|\d+[.)]\s+|(?i:step\s+\d+:)\s*)`)
)

// Summary is the condensed state of a whole session.
type Summary struct {
	Mode      modes.ID
	Goal      string
	Knowledge []string
	FileOps   session.FileOps
	Plan      []string
	Turns     int
}

// Summarize extracts the continuity summary from all turns.
func Summarize(turns []session.Turn, current modes.ID) Summary {
	s := Summary{Mode: current, Turns: len(turns), FileOps: session.ExtractFileOps(turns)}
	seenK := make(map[string]bool)
	seenP := make(map[string]bool)

	for _, t := range turns {
		if s.Goal == "" && (t.Role == session.RoleUser || t.Role == "") {
			s.Goal = Truncate(strings.Join(strings.Fields(t.Text()), " "), maxLineWidth)
		}
		for _, p := range t.Parts {
			if p.Kind == session.PartCode {
				continue
			}
			for _, raw := range strings.Split(p.Text, "\n") {
				line := strings.TrimSpace(raw)
				if line == "" {
					continue
				}
				switch {
				case planPattern.MatchString(line):
					if !seenP[line] {
						seenP[line] = true
						s.Plan = append(s.Plan, Truncate(line, maxLineWidth))
					}
				case knowledgePattern.MatchString(line):
					if !seenK[line] {
						seenK[line] = true
						s.Knowledge = append(s.Knowledge, Truncate(line, maxLineWidth))
					}
				}
			}
		}
	}
	// Later lines supersede earlier ones.
	if len(s.Knowledge) > maxKnowledge {
		s.Knowledge = s.Knowledge[len(s.Knowledge)-maxKnowledge:]
	}
	if len(s.Plan) > maxPlan {
		s.Plan = s.Plan[len(s.Plan)-maxPlan:]
	}
	return s
}

// Render produces the <session-continuity> block. Content is HTML-escaped
// so conversation text cannot close or forge the block.
func (s Summary) Render() string {
	esc := html.EscapeString
	var b strings.Builder
	fmt.Fprintf(&b, "<session-continuity mode=%q turns=\"%d\">\n", esc(string(s.Mode)), s.Turns)
	if s.Goal != "" {
		fmt.Fprintf(&b, "<goal>%s</goal>\n", esc(s.Goal))
	}
	if len(s.Knowledge) > 0 {
		b.WriteString("<key-knowledge>\n")
		for _, k := range s.Knowledge {
			fmt.Fprintf(&b, "- %s\n", esc(k))
		}
		b.WriteString("</key-knowledge>\n")
	}
	if len(s.FileOps.Log) > 0 {
		b.WriteString("<file-operations>\n")
		for _, op := range s.FileOps.Log {
			if op.Tool != "" {
				fmt.Fprintf(&b, "- %s %s (%s)\n", op.Kind, esc(op.Path), esc(op.Tool))
			} else {
				fmt.Fprintf(&b, "- %s %s\n", op.Kind, esc(op.Path))
			}
		}
		b.WriteString("</file-operations>\n")
	}
	if len(s.Plan) > 0 {
		b.WriteString("<plan>\n")
		for _, p := range s.Plan {
			fmt.Fprintf(&b, "%s\n", esc(p))
		}
		b.WriteString("</plan>\n")
	}
	b.WriteString("</session-continuity>")
	return b.String()
}
