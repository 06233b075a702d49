// ABOUTME: Table-driven tests for per-turn feature extraction and explicit-request parsing
// ABOUTME: Covers request phrasings, alias and fuzzy resolution, error and security detection

package intent

import (
	"testing"

	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
)

func TestExplicitRequest(t *testing.T) {
	t.Parallel()

	reg := modes.Default()
	tests := []struct {
		name  string
		input string
		want  modes.ID
		ok    bool
	}{
		{"switch to", "switch to debugger mode", modes.Debugger, true},
		{"change into alias", "Please change into the review mode", modes.Reviewer, true},
		{"go to", "ok, now go to implementer mode please", modes.Implementer, true},
		{"move into", "move into the planning mode", modes.Planner, true},
		{"use", "use security mode for this", modes.Security, true},
		{"slash command", "/mode sec", modes.Security, true},
		{"slash fuzzy", "/mode debuger", modes.Debugger, true},
		{"slash second line", "thanks\n/mode explore", modes.Researcher, true},
		{"slash mid-line ignored", "type /mode debug to switch", "", false},
		{"unknown name", "switch to banana mode", "", false},
		{"no request", "go to the park", "", false},
		{"mode word only", "what mode are we in?", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExplicitRequest(reg, tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExplicitRequest(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtract_Flags(t *testing.T) {
	t.Parallel()

	reg := modes.Default()
	tests := []struct {
		name     string
		turn     session.Turn
		code     bool
		err      bool
		security bool
		tools    bool
	}{
		{"plain", session.NewTextTurn(session.RoleUser, "hello there"), false, false, false, false},
		{"panic text", session.NewTextTurn(session.RoleUser, "panic: runtime error: index out of range"), false, true, false, false},
		{"go test failure", session.NewTextTurn(session.RoleTool, "--- FAIL: TestX (0.00s)\nFAIL\tpkg 0.01s"), false, true, false, false},
		{"fenced code", session.NewTextTurn(session.RoleAssistant, "```go\nx := 1\n```"), true, false, false, false},
		{"security", session.NewTextTurn(session.RoleUser, "is this vulnerable to SQL injection?"), false, false, true, false},
		{"failed tool", session.Turn{Role: session.RoleAssistant, ToolCalls: []session.ToolCall{{Name: "bash", Failed: true}}}, false, true, false, true},
		{"tool output error", session.Turn{Role: session.RoleAssistant, ToolCalls: []session.ToolCall{{Name: "bash", Output: "exit status 2"}}}, false, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := extract(reg, tt.turn)
			if f.hasCode != tt.code || f.hasError != tt.err || (f.security != "") != tt.security || f.tools != tt.tools {
				t.Errorf("extract flags = code:%v err:%v sec:%q tools:%v", f.hasCode, f.hasError, f.security, f.tools)
			}
		})
	}
}

func TestExtract_LexiconCounts(t *testing.T) {
	t.Parallel()

	f := extract(modes.Default(), session.NewTextTurn(session.RoleUser, "Plan the roadmap; the plan needs a DESIGN"))
	if got := f.hits[modes.Planner]; got != 4 {
		t.Errorf("planner hits = %d, want 4 (plan x2, roadmap, design)", got)
	}
	if len(f.keywords[modes.Planner]) != 3 {
		t.Errorf("planner keywords = %v, want 3 distinct", f.keywords[modes.Planner])
	}
}

func TestExtract_ExplicitOnlyFromUser(t *testing.T) {
	t.Parallel()

	reg := modes.Default()
	if f := extract(reg, session.NewTextTurn(session.RoleAssistant, "I will switch to debugger mode")); f.explicit != "" {
		t.Errorf("assistant turn produced explicit request %q", f.explicit)
	}
	if f := extract(reg, session.NewTextTurn(session.RoleUser, "switch to debugger mode")); f.explicit != modes.Debugger {
		t.Errorf("user turn explicit = %q, want debugger", f.explicit)
	}
}

func TestHasErrorText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		turn session.Turn
		want bool
	}{
		{"panic text", session.NewTextTurn(session.RoleAssistant, "panic: runtime error"), true},
		{"clean text", session.NewTextTurn(session.RoleUser, "all good here"), false},
		{"failed tool", session.Turn{Role: session.RoleTool, ToolCalls: []session.ToolCall{{Name: "bash", Failed: true}}}, true},
		{"tool output", session.Turn{Role: session.RoleTool, ToolCalls: []session.ToolCall{{Name: "bash", Output: "--- FAIL: TestX"}}}, true},
	}
	for _, tt := range tests {
		if got := HasErrorText(tt.turn); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSecurityTerm(t *testing.T) {
	t.Parallel()

	if got := SecurityTerm("Is this vulnerable to XSS?"); got != "vulnerable" {
		t.Errorf("got %q, want vulnerable", got)
	}
	if got := SecurityTerm("rename the variable"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
