// ABOUTME: Advisory transition suggester: ordered rules over derived context flags, first match wins
// ABOUTME: Never switches modes; honours disabled targets, disabled pairs and a confidence floor

package suggest

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/mauromedda/pi-modes/internal/intent"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
)

// DefaultWindow is the number of trailing turns Derive inspects.
const DefaultWindow = 5

// autoApplyConfidence is the floor for auto-applied debugging suggestions.
const autoApplyConfidence = 0.85

var (
	planCompletePattern = regexp.MustCompile(`(?i)(plan is (?:complete|done|ready|final)|plan looks good|let'?s (?:start|begin) (?:implementing|coding|building)|ready to implement|go ahead and (?:implement|build)|approved? the plan)`)
	performancePattern  = regexp.MustCompile(`(?i)(\bslow\b|latency|\bperformance\b|\bbottleneck|memory leak|\bprofil\w*|high cpu|too long to|\boptimi[sz]\w*|\btimeouts?\b)`)
	reviewPattern       = regexp.MustCompile(`(?i)(\breview\b|look over|sanity check|second pair of eyes|pull request|\bpr\b|before (?:i|we) merge|code quality)`)
	technicalPattern    = regexp.MustCompile(`(?i)(\bfunction\b|\bstruct\b|\binterface\b|\bendpoint\b|\bmethod\b|\bclass\b|\bgoroutine\b|\bmigration\b|\bschema\b|\bhandler\b|\bapi\b|\brefactor\w*)`)
)

// Context is the set of flags the rules evaluate.
type Context struct {
	Current          modes.ID
	RecentErrors     int  // turns in the window with error text or failed tools
	TechnicalTerms   bool // implementation vocabulary
	CodeBlocks       bool
	PlanComplete     bool   // phrasing that declares a plan finished
	SecurityTerm     string // first security term, empty when none
	PerformanceTerms bool
	ReviewRequest    bool
	FilesWritten     int // write-tool calls in the window
}

// Derive computes the flags from the trailing turn window.
func Derive(turns []session.Turn, current modes.ID) Context {
	c := Context{Current: current}
	window := session.Window(turns, DefaultWindow)
	for i, t := range window {
		text := t.Text()
		if intent.HasErrorText(t) {
			c.RecentErrors++
		}
		if t.HasCodeBlock() {
			c.CodeBlocks = true
		}
		if technicalPattern.MatchString(text) {
			c.TechnicalTerms = true
		}
		if term := intent.SecurityTerm(text); term != "" && c.SecurityTerm == "" {
			c.SecurityTerm = term
		}
		if performancePattern.MatchString(text) {
			c.PerformanceTerms = true
		}
		for _, call := range t.ToolCalls {
			if session.IsWriteTool(call.Name) && !call.Failed {
				c.FilesWritten++
			}
		}
		// Phrasing flags only count from the latest user turn.
		if i == len(window)-1 && (t.Role == session.RoleUser || t.Role == "") {
			c.PlanComplete = planCompletePattern.MatchString(text)
			c.ReviewRequest = reviewPattern.MatchString(text)
		}
	}
	return c
}

// Suggestion is an advisory switch. AutoApply suggestions may be enacted
// without confirmation; all others need the user's consent.
type Suggestion struct {
	Mode       modes.ID
	Reason     string
	Confidence float64
	AutoApply  bool
	Rule       string
}

// Rule proposes a suggestion when its condition holds.
type Rule struct {
	Name  string
	Match func(Context) (Suggestion, bool)
}

// DefaultRules returns the built-in rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "repeated-errors", Match: func(c Context) (Suggestion, bool) {
			if c.RecentErrors < 2 || c.Current == modes.Debugger {
				return Suggestion{}, false
			}
			conf := min(0.8+0.05*float64(c.RecentErrors), 0.95)
			return Suggestion{
				Mode:       modes.Debugger,
				Reason:     fmt.Sprintf("%d recent turns show errors", c.RecentErrors),
				Confidence: conf,
				AutoApply:  conf >= autoApplyConfidence,
			}, true
		}},
		{Name: "security-vocabulary", Match: func(c Context) (Suggestion, bool) {
			if c.SecurityTerm == "" || c.Current == modes.Security {
				return Suggestion{}, false
			}
			return Suggestion{
				Mode:       modes.Security,
				Reason:     fmt.Sprintf("%q came up; a security pass may be worthwhile", c.SecurityTerm),
				Confidence: 0.75,
			}, true
		}},
		{Name: "plan-complete", Match: func(c Context) (Suggestion, bool) {
			if !c.PlanComplete || c.Current != modes.Planner {
				return Suggestion{}, false
			}
			return Suggestion{Mode: modes.Implementer, Reason: "the plan looks complete", Confidence: 0.8}, true
		}},
		{Name: "review-request", Match: func(c Context) (Suggestion, bool) {
			if !c.ReviewRequest || c.Current == modes.Reviewer {
				return Suggestion{}, false
			}
			conf := 0.7
			if c.Current == modes.Implementer && c.FilesWritten > 0 {
				conf = 0.8
			}
			return Suggestion{Mode: modes.Reviewer, Reason: "you asked for a review of recent changes", Confidence: conf}, true
		}},
		{Name: "single-error", Match: func(c Context) (Suggestion, bool) {
			if c.RecentErrors != 1 || c.Current == modes.Debugger {
				return Suggestion{}, false
			}
			return Suggestion{Mode: modes.Debugger, Reason: "an error showed up in a recent turn", Confidence: 0.65}, true
		}},
		{Name: "performance-vocabulary", Match: func(c Context) (Suggestion, bool) {
			if !c.PerformanceTerms || c.Current == modes.Debugger {
				return Suggestion{}, false
			}
			return Suggestion{Mode: modes.Debugger, Reason: "performance symptoms call for profiling", Confidence: 0.6}, true
		}},
		{Name: "technical-terms", Match: func(c Context) (Suggestion, bool) {
			if c.Current != modes.Assistant || !(c.TechnicalTerms || c.CodeBlocks) {
				return Suggestion{}, false
			}
			return Suggestion{Mode: modes.Implementer, Reason: "the conversation turned to implementation details", Confidence: 0.6}, true
		}},
	}
}

// Suppression holds the user's opt-outs.
type Suppression struct {
	DisabledModes []modes.ID
	DisabledPairs []modes.Pair // From may be modes.Any
	MinConfidence float64
}

// ParseSuppression builds a Suppression from settings strings. Malformed
// pairs are returned as an error alongside the usable entries.
func ParseSuppression(disabledModes, disabledPairs []string, minConfidence float64) (Suppression, error) {
	s := Suppression{MinConfidence: minConfidence}
	for _, m := range disabledModes {
		s.DisabledModes = append(s.DisabledModes, modes.ID(strings.ToLower(strings.TrimSpace(m))))
	}
	var bad []string
	for _, p := range disabledPairs {
		pair, err := modes.ParsePair(strings.ToLower(p))
		if err != nil {
			bad = append(bad, p)
			continue
		}
		s.DisabledPairs = append(s.DisabledPairs, pair)
	}
	if len(bad) > 0 {
		return s, fmt.Errorf("invalid suggestion pairs: %s", strings.Join(bad, ", "))
	}
	return s, nil
}

// suppressed reports whether s must not be offered from current.
func (p Suppression) suppressed(current modes.ID, s Suggestion) bool {
	if s.Confidence < p.MinConfidence || slices.Contains(p.DisabledModes, s.Mode) {
		return true
	}
	for _, pair := range p.DisabledPairs {
		if pair.To == s.Mode && (pair.From == current || pair.From == modes.Any) {
			return true
		}
	}
	return false
}

// Suggester evaluates rules against derived context.
type Suggester struct {
	reg   *modes.Registry
	rules []Rule
	sup   Suppression
}

// New creates a suggester with the built-in rules.
func New(reg *modes.Registry, sup Suppression) *Suggester {
	return &Suggester{reg: reg, rules: DefaultRules(), sup: sup}
}

// WithRules replaces the rule list.
func (s *Suggester) WithRules(rules []Rule) *Suggester {
	s.rules = rules
	return s
}

// Suppression returns the active opt-outs.
func (s *Suggester) Suppression() Suppression { return s.sup }

// Evaluate returns the first matching rule's suggestion. Suppressed or
// invalid matches are skipped so a lower-priority rule may still apply.
func (s *Suggester) Evaluate(c Context) (Suggestion, bool) {
	for _, r := range s.rules {
		sg, ok := r.Match(c)
		if !ok {
			continue
		}
		if sg.Mode == c.Current || !s.reg.Has(sg.Mode) || s.sup.suppressed(c.Current, sg) {
			continue
		}
		sg.Rule = r.Name
		return sg, true
	}
	return Suggestion{}, false
}

// Suggest derives the context from turns and evaluates it.
func (s *Suggester) Suggest(turns []session.Turn, current modes.ID) (Suggestion, bool) {
	return s.Evaluate(Derive(turns, current))
}

// Format renders a suggestion for display.
func (s *Suggester) Format(sg Suggestion) string {
	m := s.reg.Lookup(sg.Mode)
	action := "switch with /mode " + string(sg.Mode)
	if sg.AutoApply {
		action = "switching automatically"
	}
	return fmt.Sprintf("Suggestion: %s mode (%.0f%%): %s; %s", m.Label(), sg.Confidence*100, sg.Reason, action)
}
