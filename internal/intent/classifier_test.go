// ABOUTME: Tests for the windowed classifier: bounds, defaults, recency, boosts and tie-breaks
// ABOUTME: Covers explicit requests against heavily loaded lexicons and the tunable normaliser

package intent

import (
	"math"
	"testing"

	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
)

func user(texts ...string) []session.Turn {
	out := make([]session.Turn, len(texts))
	for i, s := range texts {
		out[i] = session.NewTextTurn(session.RoleUser, s)
	}
	return out
}

func newTestClassifier() *Classifier {
	return NewClassifier(modes.Default(), Config{})
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAnalyze_MapCoversEveryModeInRange(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	inputs := [][]session.Turn{
		nil,
		user("hello"),
		user("plan plan plan plan", "design the architecture", "switch to security mode"),
		user("panic: nil pointer dereference", "the build is broken", "fix the crash", "error: exit status 1", "debug it"),
		user("review for xss and csrf and sql injection", "exploit the secret"),
	}
	for i, turns := range inputs {
		a := c.Analyze(turns)
		if len(a.Scores) != modes.Default().Len() {
			t.Errorf("input %d: %d scores, want %d", i, len(a.Scores), modes.Default().Len())
		}
		for id, s := range a.Scores {
			if s < 0 || s > 1 {
				t.Errorf("input %d: score[%s] = %v out of [0,1]", i, id, s)
			}
		}
	}
}

func TestAnalyze_NoKeywordsYieldsDefault(t *testing.T) {
	t.Parallel()

	a := newTestClassifier().Analyze(user("ok", "sure thing", "yes", "next one", "sounds good"))
	if a.Mode != modes.Assistant || a.Confidence != 0 {
		t.Errorf("got %s at %v, want assistant at 0", a.Mode, a.Confidence)
	}
}

func TestAnalyze_NoKeywordsYieldsConfiguredDefault(t *testing.T) {
	t.Parallel()

	reg, err := modes.Default().WithDefault(modes.Planner)
	if err != nil {
		t.Fatal(err)
	}
	a := NewClassifier(reg, Config{}).Analyze(user("ok"))
	if a.Mode != modes.Planner || a.Confidence != 0 {
		t.Errorf("got %s at %v, want planner at 0", a.Mode, a.Confidence)
	}
}

func TestAnalyze_ExplicitRequest(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()

	single := c.Analyze(user("switch to debugger mode"))
	if single.Mode != modes.Debugger || single.Confidence < 0.8 {
		t.Errorf("single turn: %s at %v, want debugger >= 0.8", single.Mode, single.Confidence)
	}
	if single.Explicit != modes.Debugger {
		t.Errorf("Explicit = %q, want debugger", single.Explicit)
	}

	windowed := c.Analyze(user("ok", "sure thing", "yes", "next one", "sounds good", "switch to debugger mode"))
	if windowed.Mode != modes.Debugger || windowed.Confidence < 0.8 {
		t.Errorf("windowed: %s at %v, want debugger >= 0.8", windowed.Mode, windowed.Confidence)
	}
}

func TestAnalyze_ExplicitBeatsLoadedLexicon(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	for _, target := range modes.Default().IDs() {
		t.Run(string(target), func(t *testing.T) {
			t.Parallel()
			turns := user(
				"plan the architecture design roadmap strategy",
				"the build is broken, panic: crash, fix the bug",
				"review the pull request feedback for xss and csrf",
				"research and explain how does it compare",
				"plan plan plan, switch to "+string(target)+" mode",
			)
			a := c.Analyze(turns)
			if a.Mode != target {
				t.Errorf("Mode = %s (%.2f), want %s; scores %v", a.Mode, a.Confidence, target, a.Scores)
			}
		})
	}
}

func TestAnalyze_ExplicitOnlyFromMostRecentTurn(t *testing.T) {
	t.Parallel()

	a := newTestClassifier().Analyze(user("switch to reviewer mode", "ok"))
	if a.Explicit != "" {
		t.Errorf("Explicit = %q, want empty for an older request", a.Explicit)
	}
	if a.Mode != modes.Reviewer {
		t.Errorf("Mode = %s, want reviewer from the boost", a.Mode)
	}
}

func TestAnalyze_ModeLikePhrasesAreNotExplicit(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	for _, text := range []string{
		"go into edit mode",
		"switch to safe mode",
		"use the vim mode",
		"change to dark mode",
		"/mode turbo",
	} {
		t.Run(text, func(t *testing.T) {
			t.Parallel()
			a := c.Analyze(user(text))
			if a.Explicit != "" {
				t.Errorf("Explicit = %q, want empty", a.Explicit)
			}
			if a.Confidence >= 0.8 {
				t.Errorf("Confidence = %.2f, want no explicit boost (mode %s)", a.Confidence, a.Mode)
			}
		})
	}

	if a := c.Analyze(user("use the dev mode")); a.Explicit != modes.Implementer {
		t.Errorf("alias request: Explicit = %q, want implementer", a.Explicit)
	}
}

func TestAnalyze_WindowDropsOldTurns(t *testing.T) {
	t.Parallel()

	a := newTestClassifier().Analyze(user("switch to debugger mode", "debug the crash", "ok", "yes", "sure thing", "next one", "sounds good"))
	if a.Mode != modes.Assistant || a.Confidence != 0 {
		t.Errorf("got %s at %v, want default at 0", a.Mode, a.Confidence)
	}
	if a.Turns != 5 {
		t.Errorf("Turns = %d, want 5", a.Turns)
	}
}

func TestAnalyze_RecencyFavoursLaterTurns(t *testing.T) {
	t.Parallel()

	a := newTestClassifier().Analyze(user(
		"the build is broken with a crash",
		"let's plan the roadmap and design the approach",
	))
	if a.Mode != modes.Planner {
		t.Fatalf("Mode = %s, want planner", a.Mode)
	}
	// planner: capped 3/3 * 1.5 / 5; debugger: 2/3 * 1 / 5
	if !approx(a.Scores[modes.Planner], 0.3) {
		t.Errorf("planner = %v, want 0.3", a.Scores[modes.Planner])
	}
	if !approx(a.Scores[modes.Debugger], 2.0/15.0) {
		t.Errorf("debugger = %v, want %v", a.Scores[modes.Debugger], 2.0/15.0)
	}
}

func TestAnalyze_PerTurnCap(t *testing.T) {
	t.Parallel()

	a := newTestClassifier().Analyze(user("plan plan plan plan plan plan"))
	if !approx(a.Scores[modes.Planner], 0.2) {
		t.Errorf("planner = %v, want 0.2 (capped)", a.Scores[modes.Planner])
	}
}

func TestAnalyze_Boosts(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()

	errA := c.Analyze(user("panic: runtime error: index out of range"))
	if errA.Mode != modes.Debugger || !errA.HasError {
		t.Errorf("error text: %s hasError=%v", errA.Mode, errA.HasError)
	}
	// "panic" + "error" = 2/3, plus error boost 0.8
	if !approx(errA.Scores[modes.Debugger], (2.0/3.0+0.8)/5) {
		t.Errorf("debugger = %v", errA.Scores[modes.Debugger])
	}

	codeTurn := session.Turn{Role: session.RoleAssistant, Parts: []session.Part{
		{Kind: session.PartText, Text: "here is the change"},
		{Kind: session.PartCode, Lang: "go", Text: "x := 1"},
	}}
	codeA := c.Analyze([]session.Turn{codeTurn})
	if codeA.Mode != modes.Implementer || !codeA.HasCode || !approx(codeA.Confidence, 0.12) {
		t.Errorf("code block: %s at %v hasCode=%v", codeA.Mode, codeA.Confidence, codeA.HasCode)
	}

	secA := c.Analyze(user("is this vulnerable to SQL injection?"))
	if secA.Mode != modes.Security || !secA.Security {
		t.Errorf("security: %s security=%v", secA.Mode, secA.Security)
	}
	if !approx(secA.Scores[modes.Reviewer], 0.12) {
		t.Errorf("reviewer = %v, want 0.12 from the security boost", secA.Scores[modes.Reviewer])
	}
}

func TestAnalyze_ToolUsageFlag(t *testing.T) {
	t.Parallel()

	turn := session.Turn{Role: session.RoleAssistant, ToolCalls: []session.ToolCall{{Name: "read", Args: map[string]any{"path": "x.go"}}}}
	if a := newTestClassifier().Analyze([]session.Turn{turn}); !a.ToolUsage {
		t.Error("expected ToolUsage")
	}
}

func TestAnalyze_TieBreakDeclarationOrder(t *testing.T) {
	t.Parallel()

	// One planner hit and one implementer hit in the same turn tie.
	a := newTestClassifier().Analyze(user("roadmap for the endpoint"))
	if a.Scores[modes.Planner] != a.Scores[modes.Implementer] {
		t.Fatalf("expected a tie, got %v", a.Scores)
	}
	if a.Mode != modes.Planner {
		t.Errorf("Mode = %s, want planner (declared first)", a.Mode)
	}
}

func TestAnalyze_NormalizerIsTunable(t *testing.T) {
	t.Parallel()

	turns := user("let's plan")
	def := NewClassifier(modes.Default(), Config{}).Analyze(turns)
	half := NewClassifier(modes.Default(), Config{Normalizer: 2.5}).Analyze(turns)
	if !approx(half.Scores[modes.Planner], 2*def.Scores[modes.Planner]) {
		t.Errorf("normalizer 2.5 score %v, want twice %v", half.Scores[modes.Planner], def.Scores[modes.Planner])
	}
}

func TestAnalyze_KeywordsAndSignals(t *testing.T) {
	t.Parallel()

	a := newTestClassifier().Analyze(user("design the roadmap", "design again"))
	if a.Mode != modes.Planner {
		t.Fatalf("Mode = %s", a.Mode)
	}
	if len(a.Keywords) != 2 || a.Keywords[0] != "design" || a.Keywords[1] != "roadmap" {
		t.Errorf("Keywords = %v, want [design roadmap]", a.Keywords)
	}
	if len(a.Signals) != 2 || a.Signals[1].Turn != 1 || !approx(a.Signals[1].Weight, 1.5/3) {
		t.Errorf("Signals = %+v", a.Signals)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	got := NewClassifier(modes.Default(), Config{Window: 3}).Config()
	if got.Window != 3 || got.Normalizer != 5.0 || got.MatchCap != 3 || got.RecencyBase != 1.5 {
		t.Errorf("Config = %+v", got)
	}
}
