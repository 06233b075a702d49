// ABOUTME: Classification types: per-mode confidence map and the context analysis result
// ABOUTME: Signals record which keywords and boosts contributed to a mode's score

package intent

import "github.com/mauromedda/pi-modes/internal/modes"

// Scores maps every registered mode to a confidence in [0, 1].
type Scores map[modes.ID]float64

// Analysis is the classifier's view of the trailing turn window.
type Analysis struct {
	Mode       modes.ID              // recommended mode (argmax)
	Confidence float64
	Scores     Scores
	Keywords   []string              // lexicon entries that matched for Mode, first-seen order
	Matches    map[modes.ID][]string // matched lexicon entries for every mode
	Signals    []Signal              // contributions to Mode's raw score
	HasCode    bool                  // a fenced code block appears in the window
	HasError   bool                  // error text or a failed tool call appears in the window
	ToolUsage  bool                  // a turn in the window invoked a tool
	Security   bool                  // security vocabulary appears in the window
	Explicit   modes.ID              // mode explicitly requested by the most recent turn, if any
	Turns      int                   // number of turns analysed
}

// Signal represents a factor that contributed to classification.
type Signal struct {
	Name   string  // "keyword_match", "explicit_request", "code_block", "error_text", "security_terms"
	Weight float64 // recency-weighted contribution before normalisation
	Detail string  // the matched keyword or pattern
	Turn   int     // index within the window, oldest = 0
}

// Alternative is a non-current mode worth considering, with a one-line rationale.
type Alternative struct {
	Mode       modes.ID
	Confidence float64
	Rationale  string
}
