// ABOUTME: Tests for the pi-modes command tree: classify, simulate, metrics and preset listings
// ABOUTME: PI_MODES_HOME points at a temp dir so no user configuration leaks in

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/mauromedda/pi-modes/internal/config"
	"github.com/mauromedda/pi-modes/internal/intent"
	"github.com/mauromedda/pi-modes/internal/modes"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// execute runs the root command against a fresh project directory.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeIn(t, t.TempDir(), stdin, args...)
}

func executeIn(t *testing.T, project, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--project", project))
	err := cmd.Execute()
	return out.String(), err
}

func TestClassify(t *testing.T) {
	transcript := "user: the handler crashes with panic: nil pointer dereference, please debug the stack trace\n"

	out, err := execute(t, transcript, "classify")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Mode:       🐛 Debugger") || !strings.Contains(out, "errors") {
		t.Errorf("classify output:\n%s", out)
	}

	out, err = execute(t, transcript, "classify", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var a intent.Analysis
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if a.Mode != modes.Debugger || !a.HasError || a.Turns != 1 {
		t.Errorf("analysis = %+v", a)
	}

	if _, err := execute(t, "\n# nothing here\n", "classify"); err == nil || !strings.Contains(err.Error(), "no turns") {
		t.Errorf("empty transcript error = %v", err)
	}
}

func TestClassify_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.jsonl")
	body := `{"role":"user","content":"please review this pull request and critique the code quality before I merge"}` + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "classify", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Reviewer (") {
		t.Errorf("classify output:\n%s", out)
	}
	if _, err := execute(t, "", "classify", filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("missing transcript should fail")
	}
}

func TestSimulate(t *testing.T) {
	transcript := strings.Join([]string{
		"user: switch to planner mode",
		"user: /focus debugger 10",
		"user: let's plan the architecture for the new billing feature",
		"user: /focus off",
		"user: /teleport",
	}, "\n")

	out, err := execute(t, transcript, "simulate", "--metrics", "--style", "notty")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"  1 user      Planner",
		"→ Planner",
		"  2 user      /focus debugger 10",
		"Focus locked for 10m0s.",
		"focus ended (released)",
		"  5 user      /teleport: unknown command: /teleport",
		"Final mode: 🐛 Debugger after 2 transitions",
		"Mode Summary",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("simulate output missing %q:\n%s", want, out)
		}
	}
}

func TestMetrics(t *testing.T) {
	out, err := execute(t, "", "metrics", "--raw")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No mode activity recorded yet.") {
		t.Errorf("metrics output:\n%s", out)
	}

	bad := filepath.Join(t.TempDir(), "metrics.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "metrics", "--file", bad); err == nil {
		t.Error("corrupt metrics file should fail")
	}
}

func TestWorkflowsAndHybrids(t *testing.T) {
	project := t.TempDir()
	wfDir := filepath.Join(config.ProjectDir(project), "workflows")
	if err := os.MkdirAll(wfDir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := "id: spike\nname: Spike\nsteps:\n  - id: explore\n    mode: researcher\n  - id: prototype\n    mode: implementer\n"
	if err := os.WriteFile(filepath.Join(wfDir, "spike.yaml"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := executeIn(t, project, "", "workflows")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"bugfix", "security-audit", "spike", "explore → prototype"} {
		if !strings.Contains(out, want) {
			t.Errorf("workflows output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "", "hybrids")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "architect-reviewer") || !strings.Contains(out, "preset") {
		t.Errorf("hybrids output:\n%s", out)
	}

	out, err = execute(t, "", "hybrids", "debugger", "security", "--style", "notty")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Debugger + Security") {
		t.Errorf("composed hybrid output:\n%s", out)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	project := t.TempDir()
	if err := os.MkdirAll(config.ProjectDir(project), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(config.ProjectConfigFile(project), []byte(`{"log_level":"loud"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := executeIn(t, project, "", "workflows"); err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("invalid log level error = %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "--version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "dev (unknown) built unknown") {
		t.Errorf("version output = %q", out)
	}
}
