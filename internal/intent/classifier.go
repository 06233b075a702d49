// ABOUTME: Context classifier: trailing turn window to per-mode confidence with recency weighting
// ABOUTME: Lexicon hits are capped per turn; explicit, code, error and security boosts add before clamping

package intent

import (
	"math"
	"strings"

	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
)

// Config holds the classifier's tunables.
type Config struct {
	Window        int     // trailing turns analysed (default 5)
	MatchCap      int     // per-turn lexicon hit cap (default 3)
	RecencyBase   float64 // weight = RecencyBase^index, oldest = 0 (default 1.5)
	Normalizer    float64 // raw score divisor (default 5.0)
	ExplicitBoost float64 // added to the requested mode (default 4.0)
	CodeBoost     float64 // added to the implementer when a code block is present (default 0.6)
	ErrorBoost    float64 // added to the debugger when error text is present (default 0.8)
	SecurityBoost float64 // added to security and reviewer on security vocabulary (default 0.6)
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		Window:        5,
		MatchCap:      3,
		RecencyBase:   1.5,
		Normalizer:    5.0,
		ExplicitBoost: 4.0,
		CodeBoost:     0.6,
		ErrorBoost:    0.8,
		SecurityBoost: 0.6,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.MatchCap <= 0 {
		c.MatchCap = d.MatchCap
	}
	if c.RecencyBase <= 0 {
		c.RecencyBase = d.RecencyBase
	}
	if c.Normalizer <= 0 {
		c.Normalizer = d.Normalizer
	}
	if c.ExplicitBoost == 0 {
		c.ExplicitBoost = d.ExplicitBoost
	}
	if c.CodeBoost == 0 {
		c.CodeBoost = d.CodeBoost
	}
	if c.ErrorBoost == 0 {
		c.ErrorBoost = d.ErrorBoost
	}
	if c.SecurityBoost == 0 {
		c.SecurityBoost = d.SecurityBoost
	}
	return c
}

// Classifier scores conversation windows against a mode registry.
// It holds no mutable state; Analyze is a pure function of its input.
type Classifier struct {
	reg *modes.Registry
	cfg Config
}

// NewClassifier creates a classifier over reg, applying defaults to zero fields.
func NewClassifier(reg *modes.Registry, cfg Config) *Classifier {
	return &Classifier{reg: reg, cfg: cfg.withDefaults()}
}

// Config returns the effective tunables.
func (c *Classifier) Config() Config { return c.cfg }

// Registry returns the registry the classifier scores against.
func (c *Classifier) Registry() *modes.Registry { return c.reg }

// Analyze scores the trailing window of turns.
func (c *Classifier) Analyze(turns []session.Turn) Analysis {
	window := session.Window(turns, c.cfg.Window)
	ids := c.reg.IDs()

	raw := make(map[modes.ID]float64, len(ids))
	signals := make(map[modes.ID][]Signal, len(ids))
	keywords := make(map[modes.ID][]string, len(ids))
	seenKW := make(map[modes.ID]map[string]bool, len(ids))
	a := Analysis{Turns: len(window)}

	add := func(id modes.ID, w float64, sig Signal) {
		if !c.reg.Has(id) {
			return
		}
		raw[id] += w
		sig.Weight = w
		signals[id] = append(signals[id], sig)
	}

	for i, turn := range window {
		f := extract(c.reg, turn)
		weight := math.Pow(c.cfg.RecencyBase, float64(i))

		for _, id := range ids {
			n := f.hits[id]
			if n == 0 {
				continue
			}
			n = min(n, c.cfg.MatchCap)
			per := float64(n) / float64(c.cfg.MatchCap)
			for _, kw := range f.keywords[id] {
				if seenKW[id] == nil {
					seenKW[id] = make(map[string]bool)
				}
				if !seenKW[id][kw] {
					seenKW[id][kw] = true
					keywords[id] = append(keywords[id], kw)
				}
			}
			add(id, per*weight, Signal{Name: "keyword_match", Detail: strings.Join(f.keywords[id], ", "), Turn: i})
		}

		if f.explicit != "" {
			add(f.explicit, c.cfg.ExplicitBoost*weight, Signal{Name: "explicit_request", Detail: string(f.explicit), Turn: i})
		}
		if f.hasCode {
			a.HasCode = true
			add(modes.Implementer, c.cfg.CodeBoost*weight, Signal{Name: "code_block", Turn: i})
		}
		if f.hasError {
			a.HasError = true
			add(modes.Debugger, c.cfg.ErrorBoost*weight, Signal{Name: "error_text", Turn: i})
		}
		if f.security != "" {
			a.Security = true
			add(modes.Security, c.cfg.SecurityBoost*weight, Signal{Name: "security_terms", Detail: f.security, Turn: i})
			add(modes.Reviewer, c.cfg.SecurityBoost*weight, Signal{Name: "security_terms", Detail: f.security, Turn: i})
		}
		if f.tools {
			a.ToolUsage = true
		}
		if i == len(window)-1 {
			a.Explicit = f.explicit
		}
	}

	a.Scores = make(Scores, len(ids))
	for _, id := range ids {
		a.Scores[id] = clamp01(raw[id] / c.cfg.Normalizer)
	}

	a.Mode, a.Confidence = c.argmax(a.Scores, a.Explicit)
	a.Keywords = keywords[a.Mode]
	a.Matches = keywords
	a.Signals = signals[a.Mode]
	return a
}

// Scores returns only the confidence map for turns.
func (c *Classifier) Scores(turns []session.Turn) Scores {
	return c.Analyze(turns).Scores
}

// argmax picks the highest score; ties go to the explicit request, then to
// declaration order. An all-zero map yields the default mode.
func (c *Classifier) argmax(scores Scores, explicit modes.ID) (modes.ID, float64) {
	best := c.reg.Default()
	bestScore := 0.0
	found := false
	for _, id := range c.reg.IDs() {
		s := scores[id]
		if s <= 0 {
			continue
		}
		if !found || s > bestScore {
			best, bestScore, found = id, s, true
		}
	}
	if !found {
		return c.reg.Default(), 0
	}
	if explicit != "" && scores[explicit] == bestScore {
		return explicit, bestScore
	}
	return best, bestScore
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
