// ABOUTME: Top-K alternate modes for the current context, each with a one-line rationale
// ABOUTME: Rationales derive from the same flags the classifier sets (error, code, tool usage)

package intent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
)

// Alternatives returns up to k modes other than current, highest confidence
// first, ties in declaration order. Modes scoring zero are omitted.
func (c *Classifier) Alternatives(turns []session.Turn, current modes.ID, k int) []Alternative {
	return c.AlternativesFrom(c.Analyze(turns), current, k)
}

// AlternativesFrom ranks alternates from an existing analysis.
func (c *Classifier) AlternativesFrom(a Analysis, current modes.ID, k int) []Alternative {
	if k <= 0 {
		return nil
	}
	var out []Alternative
	for _, id := range c.reg.IDs() {
		if id == current || a.Scores[id] <= 0 {
			continue
		}
		out = append(out, Alternative{Mode: id, Confidence: a.Scores[id], Rationale: c.rationale(a, id)})
	}
	// Stable sort keeps declaration order among equal scores.
	slices.SortStableFunc(out, func(x, y Alternative) int {
		switch {
		case x.Confidence > y.Confidence:
			return -1
		case x.Confidence < y.Confidence:
			return 1
		default:
			return 0
		}
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func (c *Classifier) rationale(a Analysis, id modes.ID) string {
	name := c.reg.Lookup(id).Name
	switch {
	case a.Explicit == id:
		return fmt.Sprintf("you asked for %s mode", name)
	case id == modes.Debugger && a.HasError:
		return "error output in recent turns suggests debugging"
	case id == modes.Implementer && a.HasCode:
		return "code blocks in recent turns suggest implementation work"
	case (id == modes.Security || id == modes.Reviewer) && a.Security:
		return "security-sensitive vocabulary suggests a closer audit"
	case id == modes.Implementer && a.ToolUsage:
		return "recent tool usage suggests hands-on changes"
	}
	if kws := a.Matches[id]; len(kws) > 0 {
		if len(kws) > 3 {
			kws = kws[:3]
		}
		return fmt.Sprintf("mentions of %s fit %s mode", strings.Join(kws, ", "), name)
	}
	return fmt.Sprintf("context partially matches %s mode", name)
}
