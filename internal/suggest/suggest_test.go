// ABOUTME: Tests for the advisory suggester: flag derivation, rule priority, auto-apply, suppression
// ABOUTME: Table-driven over synthetic contexts plus a few derived from real turn windows

package suggest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
)

func userTurns(texts ...string) []session.Turn {
	out := make([]session.Turn, len(texts))
	for i, s := range texts {
		out[i] = session.NewTextTurn(session.RoleUser, s)
	}
	return out
}

func TestDerive(t *testing.T) {
	t.Parallel()

	turns := userTurns(
		"panic: nil pointer dereference",
		"the handler is slow under load",
	)
	turns = append(turns,
		session.Turn{Role: session.RoleTool, ToolCalls: []session.ToolCall{
			{Name: "write", Args: map[string]any{"file_path": "a.go"}},
			{Name: "bash", Failed: true},
		}},
		session.NewTextTurn(session.RoleUser, "Any XSS risk? Please review before we merge."),
	)

	got := Derive(turns, modes.Implementer)
	want := Context{
		Current:          modes.Implementer,
		RecentErrors:     2,
		TechnicalTerms:   true,
		SecurityTerm:     "xss",
		PerformanceTerms: true,
		ReviewRequest:    true,
		FilesWritten:     1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Derive mismatch (-want +got):\n%s", diff)
	}
}

func TestDerive_PhrasingOnlyFromLatestUserTurn(t *testing.T) {
	t.Parallel()

	turns := userTurns("the plan is complete", "what about naming?")
	if Derive(turns, modes.Planner).PlanComplete {
		t.Error("plan-complete phrasing in an older turn should not count")
	}
	if !Derive(userTurns("ok", "The plan looks good, let's start implementing"), modes.Planner).PlanComplete {
		t.Error("plan-complete phrasing in the latest turn should count")
	}
}

func TestEvaluate_Rules(t *testing.T) {
	t.Parallel()

	s := New(modes.Default(), Suppression{})
	tests := []struct {
		name     string
		ctx      Context
		wantMode modes.ID
		wantRule string
		auto     bool
	}{
		{"repeated errors auto-apply", Context{Current: modes.Implementer, RecentErrors: 3}, modes.Debugger, "repeated-errors", true},
		{"errors outrank security", Context{Current: modes.Assistant, RecentErrors: 2, SecurityTerm: "xss"}, modes.Debugger, "repeated-errors", true},
		{"security", Context{Current: modes.Implementer, SecurityTerm: "csrf"}, modes.Security, "security-vocabulary", false},
		{"plan complete in planner", Context{Current: modes.Planner, PlanComplete: true}, modes.Implementer, "plan-complete", false},
		{"review request", Context{Current: modes.Implementer, ReviewRequest: true, FilesWritten: 2}, modes.Reviewer, "review-request", false},
		{"single error needs confirmation", Context{Current: modes.Assistant, RecentErrors: 1}, modes.Debugger, "single-error", false},
		{"performance", Context{Current: modes.Implementer, PerformanceTerms: true}, modes.Debugger, "performance-vocabulary", false},
		{"technical chat", Context{Current: modes.Assistant, TechnicalTerms: true}, modes.Implementer, "technical-terms", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sg, ok := s.Evaluate(tt.ctx)
			if !ok {
				t.Fatal("expected a suggestion")
			}
			if sg.Mode != tt.wantMode || sg.Rule != tt.wantRule || sg.AutoApply != tt.auto {
				t.Errorf("got %+v", sg)
			}
			if sg.Confidence <= 0 || sg.Confidence > 1 {
				t.Errorf("confidence %v out of range", sg.Confidence)
			}
		})
	}
}

func TestEvaluate_NoMatch(t *testing.T) {
	t.Parallel()

	s := New(modes.Default(), Suppression{})
	for _, c := range []Context{
		{Current: modes.Assistant},
		{Current: modes.Debugger, RecentErrors: 4},
		{Current: modes.Implementer, PlanComplete: true},
		{Current: modes.Implementer, TechnicalTerms: true},
	} {
		if sg, ok := s.Evaluate(c); ok {
			t.Errorf("Evaluate(%+v) = %+v, want none", c, sg)
		}
	}
}

func TestEvaluate_OnlyErrorDrivenSuggestionsAutoApply(t *testing.T) {
	t.Parallel()

	s := New(modes.Default(), Suppression{})
	for _, c := range []Context{
		{Current: modes.Assistant, SecurityTerm: "exploit"},
		{Current: modes.Planner, PlanComplete: true},
		{Current: modes.Assistant, ReviewRequest: true},
		{Current: modes.Assistant, PerformanceTerms: true},
	} {
		if sg, ok := s.Evaluate(c); ok && sg.AutoApply {
			t.Errorf("%s must not auto-apply", sg.Rule)
		}
	}
}

func TestSuppression(t *testing.T) {
	t.Parallel()

	sup, err := ParseSuppression([]string{"Security"}, []string{"implementer->reviewer", "*->implementer"}, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	s := New(modes.Default(), sup)

	// Security disabled: the review rule is next in line.
	sg, ok := s.Evaluate(Context{Current: modes.Assistant, SecurityTerm: "xss", ReviewRequest: true})
	if !ok || sg.Mode != modes.Reviewer {
		t.Errorf("got %+v, %v; want reviewer", sg, ok)
	}

	// implementer->reviewer disabled; single-error is below the floor.
	if sg, ok := s.Evaluate(Context{Current: modes.Implementer, ReviewRequest: true, RecentErrors: 1}); ok {
		t.Errorf("got %+v, want none", sg)
	}

	// Wildcard pair disables implementer from anywhere.
	if sg, ok := s.Evaluate(Context{Current: modes.Planner, PlanComplete: true}); ok {
		t.Errorf("got %+v, want none", sg)
	}
}

func TestParseSuppression_BadPairs(t *testing.T) {
	t.Parallel()

	sup, err := ParseSuppression(nil, []string{"nope", "planner->implementer"}, 0)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("err = %v", err)
	}
	if len(sup.DisabledPairs) != 1 {
		t.Errorf("usable pairs = %+v", sup.DisabledPairs)
	}
}

func TestSuggest_FromTurnsAndFormat(t *testing.T) {
	t.Parallel()

	s := New(modes.Default(), Suppression{})
	turns := userTurns("error: exit status 1", "still failing: panic: boom")
	sg, ok := s.Suggest(turns, modes.Implementer)
	if !ok || sg.Mode != modes.Debugger || !sg.AutoApply {
		t.Fatalf("Suggest = %+v, %v", sg, ok)
	}
	out := s.Format(sg)
	if !strings.Contains(out, "Debugger") || !strings.Contains(out, "switching automatically") {
		t.Errorf("Format = %q", out)
	}

	sg.AutoApply = false
	if out := s.Format(sg); !strings.Contains(out, "/mode debugger") {
		t.Errorf("Format = %q", out)
	}
}
