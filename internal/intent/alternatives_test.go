// ABOUTME: Tests for top-K alternate mode ranking and rationales
// ABOUTME: Verifies current-mode exclusion, ordering, zero-score omission and flag-based reasons

package intent

import (
	"strings"
	"testing"

	"github.com/mauromedda/pi-modes/internal/modes"
)

func TestAlternatives(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	turns := user("the build fails with panic: runtime error, can you fix the function")

	got := c.Alternatives(turns, modes.Assistant, 3)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Mode != modes.Debugger || got[1].Mode != modes.Implementer {
		t.Errorf("order = %s, %s; want debugger, implementer", got[0].Mode, got[1].Mode)
	}
	if !strings.Contains(got[0].Rationale, "error output") {
		t.Errorf("debugger rationale = %q", got[0].Rationale)
	}
	if !strings.Contains(got[1].Rationale, "build") || !strings.Contains(got[1].Rationale, "Implementer") {
		t.Errorf("implementer rationale = %q", got[1].Rationale)
	}

	excl := c.Alternatives(turns, modes.Debugger, 3)
	if len(excl) != 1 || excl[0].Mode != modes.Implementer {
		t.Errorf("excluding current: %+v", excl)
	}

	if top := c.Alternatives(turns, modes.Assistant, 1); len(top) != 1 || top[0].Mode != modes.Debugger {
		t.Errorf("k=1: %+v", top)
	}
	if none := c.Alternatives(turns, modes.Assistant, 0); none != nil {
		t.Errorf("k=0: %+v", none)
	}
}

func TestAlternatives_ExplicitRationale(t *testing.T) {
	t.Parallel()

	got := newTestClassifier().Alternatives(user("use reviewer mode"), modes.Assistant, 1)
	if len(got) != 1 || got[0].Mode != modes.Reviewer {
		t.Fatalf("got %+v", got)
	}
	if !strings.Contains(got[0].Rationale, "you asked for Reviewer") {
		t.Errorf("rationale = %q", got[0].Rationale)
	}
}
