// ABOUTME: Tests for the mode registry, name resolution, and transition records
// ABOUTME: Covers declaration order, immutability, fuzzy lookup, and the easyjson codec

package modes

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mailru/easyjson"
)

func TestDefault_DeclarationOrder(t *testing.T) {
	t.Parallel()

	r := Default()
	want := []ID{Assistant, Planner, Implementer, Debugger, Reviewer, Security, Researcher}
	if diff := cmp.Diff(want, r.IDs()); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}
	if r.Default() != Assistant {
		t.Errorf("Default() = %q, want %q", r.Default(), Assistant)
	}
	if r.Index(Debugger) != 3 {
		t.Errorf("Index(debugger) = %d, want 3", r.Index(Debugger))
	}
	if r.Index("nope") != -1 {
		t.Errorf("Index(unknown) = %d, want -1", r.Index("nope"))
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	r := Default()
	m, ok := r.Get(Reviewer)
	if !ok {
		t.Fatal("reviewer not registered")
	}
	m.AllowedTools[0] = "bash"
	m.Lexicon = nil

	again, _ := r.Get(Reviewer)
	if again.AllowedTools[0] != "read" {
		t.Errorf("registry mutated through Get: %v", again.AllowedTools)
	}
	if len(again.Lexicon) == 0 {
		t.Error("registry lexicon cleared through Get")
	}
}

func TestDefault_IndependentInstances(t *testing.T) {
	t.Parallel()

	a, b := Default(), Default()
	if a == b {
		t.Fatal("Default() must build a fresh registry per call")
	}
}

func TestNewRegistry_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		def  ID
		list []Mode
		want error
	}{
		{"empty", Assistant, nil, ErrEmptyRegistry},
		{"duplicate", "a", []Mode{{ID: "a"}, {ID: "a"}}, ErrDuplicateMode},
		{"unknown default", "zzz", []Mode{{ID: "a"}}, ErrUnknownDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRegistry(tt.def, tt.list...)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewRegistry_FillsDisplayName(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry("code-reviewer", Mode{ID: "code-reviewer"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := r.Lookup("code-reviewer").Name; got != "Code Reviewer" {
		t.Errorf("Name = %q, want %q", got, "Code Reviewer")
	}
	if got := r.Lookup("missing_mode").Name; got != "Missing Mode" {
		t.Errorf("placeholder Name = %q, want %q", got, "Missing Mode")
	}
}

func TestWithDefault(t *testing.T) {
	t.Parallel()

	r := Default()
	p, err := r.WithDefault(Planner)
	if err != nil {
		t.Fatalf("WithDefault: %v", err)
	}
	if p.Default() != Planner || r.Default() != Assistant {
		t.Errorf("defaults = %q/%q, want planner/assistant", p.Default(), r.Default())
	}
	if _, err := r.WithDefault("ghost"); !errors.Is(err, ErrUnknownDefault) {
		t.Errorf("err = %v, want ErrUnknownDefault", err)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	r := Default()
	tests := []struct {
		in   string
		want ID
		ok   bool
	}{
		{"debugger", Debugger, true},
		{"Debugger", Debugger, true},
		{"debug", Debugger, true},
		{"plan", Planner, true},
		{"code", Implementer, true},
		{"review", Reviewer, true},
		{"sec", Security, true},
		{"Researcher mode", Researcher, true},
		{"debuger", Debugger, true},
		{"reviewr", Reviewer, true},
		{"", "", false},
		{"zz", "", false},
		{"xylophone", "", false},
		{"edit", "", false},
		{"safe", "", false},
		{"dark mode", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := r.Resolve(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestResolveExact(t *testing.T) {
	t.Parallel()

	r := Default()
	tests := []struct {
		in   string
		want ID
		ok   bool
	}{
		{"security", Security, true},
		{"Security Mode", Security, true},
		{"dev", Implementer, true},
		{"debuger", "", false},
		{"edit", "", false},
	}
	for _, tt := range tests {
		got, ok := r.ResolveExact(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ResolveExact(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParsePair(t *testing.T) {
	t.Parallel()

	p, err := ParsePair(" planner -> implementer ")
	if err != nil {
		t.Fatalf("ParsePair: %v", err)
	}
	if p != (Pair{From: Planner, To: Implementer}) {
		t.Errorf("pair = %+v", p)
	}
	if p.String() != "planner->implementer" {
		t.Errorf("String() = %q", p.String())
	}
	for _, bad := range []string{"", "planner", "->x", "x->"} {
		if _, err := ParsePair(bad); err == nil {
			t.Errorf("ParsePair(%q) expected error", bad)
		}
	}
}

func TestTriggerValid(t *testing.T) {
	t.Parallel()

	for _, tr := range Triggers() {
		if !tr.Valid() {
			t.Errorf("%q should be valid", tr)
		}
	}
	if Trigger("psychic").Valid() {
		t.Error("unknown trigger reported valid")
	}
}

func TestTransition_JSONShape(t *testing.T) {
	t.Parallel()

	tr := Transition{
		From:       Assistant,
		To:         Debugger,
		At:         time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Trigger:    TriggerExplicit,
		Confidence: 1,
	}
	data, err := easyjson.Marshal(tr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"from":"assistant","to":"debugger","at":"2026-10-19T12:00:00Z","trigger":"explicit","confidence":1}`
	if string(data) != want {
		t.Errorf("json = %s\nwant  %s", data, want)
	}
}

func TestTransition_DecodeViaEncodingJSON(t *testing.T) {
	t.Parallel()

	in := `[{"from":"planner","to":"implementer","at":"2026-10-19T12:00:00.5Z","trigger":"heuristic","confidence":0.8125,"extra":{"x":[1,2]}},null]`
	var got []Transition
	if err := json.Unmarshal([]byte(in), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	want := Transition{
		From:       Planner,
		To:         Implementer,
		At:         time.Date(2026, 10, 19, 12, 0, 0, 500_000_000, time.UTC),
		Trigger:    TriggerHeuristic,
		Confidence: 0.8125,
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("decoded mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Transition{}, got[1]); diff != "" {
		t.Errorf("null element should decode to zero value:\n%s", diff)
	}
}

func TestTransition_DecodeError(t *testing.T) {
	t.Parallel()

	var tr Transition
	if err := easyjson.Unmarshal([]byte(`{"from":`), &tr); err == nil {
		t.Error("expected error for truncated input")
	}
}
