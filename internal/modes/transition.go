// ABOUTME: Trigger kinds, mode pairs, and the immutable transition record
// ABOUTME: Transition records are what session resume and metrics persist

package modes

import (
	"fmt"
	"strings"
	"time"
)

// Trigger is the cause of a transition.
type Trigger string

const (
	TriggerHeuristic Trigger = "heuristic" // classifier recommendation
	TriggerManual    Trigger = "manual"    // user command without explicit phrasing
	TriggerTool      Trigger = "tool"      // tool activity implied the mode
	TriggerExplicit  Trigger = "explicit"  // "switch to X mode", "/mode X", workflows, focus
)

// Triggers lists every trigger kind.
func Triggers() []Trigger {
	return []Trigger{TriggerHeuristic, TriggerManual, TriggerTool, TriggerExplicit}
}

// Valid reports whether t is a known trigger kind.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerHeuristic, TriggerManual, TriggerTool, TriggerExplicit:
		return true
	}
	return false
}

// Pair is an ordered (from, to) mode pair.
type Pair struct {
	From ID
	To   ID
}

// String renders the pair as "from->to".
func (p Pair) String() string {
	return string(p.From) + "->" + string(p.To)
}

// ParsePair parses "from->to". Either side may be Any.
func ParsePair(s string) (Pair, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "->")
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if !ok || from == "" || to == "" {
		return Pair{}, fmt.Errorf("invalid mode pair %q: want \"from->to\"", s)
	}
	return Pair{From: ID(from), To: ID(to)}, nil
}

// Transition records an accepted mode switch.
type Transition struct {
	From       ID
	To         ID
	At         time.Time
	Trigger    Trigger
	Confidence float64
}

// Pair returns the (from, to) pair of the transition.
func (t Transition) Pair() Pair {
	return Pair{From: t.From, To: t.To}
}
