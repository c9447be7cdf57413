package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

type call struct {
	primary core.Issue
	related int
}

// fakeCompleter replies per file path.
type fakeCompleter struct {
	replies map[string]string
	fail    map[string]bool
	calls   []call
}

func (f *fakeCompleter) RequestFix(ctx context.Context, issue core.Issue, content string, related ...core.Issue) (string, error) {
	f.calls = append(f.calls, call{primary: issue, related: len(related)})
	if f.fail[issue.FilePath] {
		return "", fmt.Errorf("model unavailable")
	}
	if r, ok := f.replies[issue.FilePath]; ok {
		return r, nil
	}
	return content, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestPrioritize(t *testing.T) {
	fixed := core.NewIssue("t", "done", "", severity.Critical, "/a", 1, 0)
	fixed.IsFixed = true
	issues := []core.Issue{
		core.NewIssue("t", "low", "", severity.Low, "/a", 1, 0),
		fixed,
		core.NewIssue("t", "high-1", "", severity.High, "/a", 2, 0),
		core.NewIssue("t", "crit", "", severity.Critical, "/b", 1, 0),
		core.NewIssue("t", "high-2", "", severity.High, "/b", 2, 0),
	}

	got := Prioritize(issues, 3)
	var rules []string
	for _, i := range got {
		rules = append(rules, i.Rule)
	}
	if want := []string{"crit", "high-1", "high-2"}; !slices.Equal(rules, want) {
		t.Errorf("Prioritize() = %v, want %v", rules, want)
	}
	if len(Prioritize(issues, 0)) != 4 {
		t.Error("a zero cap should keep every unfixed issue")
	}
}

func TestFixIssues(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.js", "var x = 1\n")
	b := writeFile(t, dir, "b.js", "var y = 2\n")
	c := writeFile(t, dir, "c.js", "var z = 3\n")

	completer := &fakeCompleter{
		replies: map[string]string{a: "const x = 1;\n", c: ""},
		fail:    map[string]bool{},
	}
	f := NewFixer(completer)

	issues := []core.Issue{
		core.NewIssue("ESLint", "no-var", "Unexpected var", severity.Medium, a, 1, 1),
		core.NewIssue("ESLint", "semi", "Missing semicolon", severity.Medium, a, 1, 10),
		core.NewIssue("ESLint", "no-var", "Unexpected var", severity.Medium, b, 1, 1),
		core.NewIssue("ESLint", "no-var", "Unexpected var", severity.Medium, c, 1, 1),
	}

	result, err := f.FixIssues(context.Background(), dir, issues)
	if err != nil {
		t.Fatalf("FixIssues() error = %v", err)
	}

	if result.TotalFiles != 3 || result.FixedFiles != 1 || result.FixedIssueCount != 2 {
		t.Errorf("result = %+v", result)
	}
	if got := readFile(t, a); got != "const x = 1;\n" {
		t.Errorf("a.js = %q", got)
	}
	if got := readFile(t, b); got != "var y = 2\n" {
		t.Errorf("unchanged reply should leave b.js alone, got %q", got)
	}
	if got := readFile(t, c); got != "var z = 3\n" {
		t.Errorf("empty reply should leave c.js alone, got %q", got)
	}

	if len(completer.calls) != 3 {
		t.Fatalf("calls = %d, want one per file", len(completer.calls))
	}
	if completer.calls[0].primary.Rule != "no-var" || completer.calls[0].related != 2 {
		t.Errorf("first call = %+v", completer.calls[0])
	}
	if len(result.Details) != 2 || result.Details[0].Rule != "no-var" || result.Details[0].Count != 1 {
		t.Errorf("Details = %+v", result.Details)
	}
}

func TestFixIssues_SkipsFailures(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.py", "import os\n")
	b := writeFile(t, dir, "b.py", "import sys\n")
	missing := filepath.Join(dir, "gone.py")

	completer := &fakeCompleter{
		replies: map[string]string{b: "\n"},
		fail:    map[string]bool{a: true},
	}
	f := NewFixer(completer)

	result, err := f.FixIssues(context.Background(), dir, []core.Issue{
		core.NewIssue("Ruff", "F401", "unused", severity.High, a, 1, 1),
		core.NewIssue("Ruff", "F401", "unused", severity.High, missing, 1, 1),
		core.NewIssue("Ruff", "F401", "unused", severity.High, b, 1, 1),
	})
	if err != nil {
		t.Fatalf("FixIssues() error = %v", err)
	}
	if result.FixedFiles != 1 || result.TotalFiles != 3 {
		t.Errorf("result = %+v", result)
	}
	if len(completer.calls) != 2 {
		t.Errorf("unreadable files should not be sent, calls = %d", len(completer.calls))
	}
}

func TestFixIssues_Cap(t *testing.T) {
	dir := t.TempDir()
	var issues []core.Issue
	for i := range 5 {
		path := writeFile(t, dir, fmt.Sprintf("f%d.go", i), "package x\n")
		issues = append(issues, core.NewIssue("gofmt", "formatting", "", severity.Low, path, 0, 0))
	}

	completer := &fakeCompleter{}
	if _, err := NewFixer(completer, WithMaxIssues(2)).FixIssues(context.Background(), dir, issues); err != nil {
		t.Fatal(err)
	}
	if len(completer.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(completer.calls))
	}
}

func TestFixer_Availability(t *testing.T) {
	if NewFixer(nil).IsAvailable(context.Background()) {
		t.Error("fixer without a client should not be available")
	}
	if _, err := New(Config{}, 10); err == nil {
		t.Error("New() without an API key should fail")
	}
	f, err := New(Config{APIKey: "k"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !f.IsAvailable(context.Background()) || f.Name() != Name {
		t.Error("fixer with a client should be available")
	}
}
