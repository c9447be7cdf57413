package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

func TestParseSwift(t *testing.T) {
	output := `Compiling App Main.swift
/proj/Sources/App/Main.swift:12:5: error: cannot find 'foo' in scope
/proj/Sources/App/View.swift:3:1: warning: variable 'x' was never used
Build failed`

	issues := ParseSwift(output, "/proj")
	if len(issues) != 2 {
		t.Fatalf("len(issues) = %d, want 2", len(issues))
	}
	if issues[0].Rule != "build_error" || issues[0].Severity != severity.Critical {
		t.Errorf("error issue = %s/%s", issues[0].Rule, issues[0].Severity)
	}
	if issues[0].LineOrZero() != 12 || issues[0].ColumnOrZero() != 5 || issues[0].Message != "cannot find 'foo' in scope" {
		t.Errorf("error issue = %+v", issues[0])
	}
	if issues[1].Rule != "build_warning" || issues[1].Severity != severity.Medium {
		t.Errorf("warning issue = %s/%s", issues[1].Rule, issues[1].Severity)
	}
}

func TestParseDart(t *testing.T) {
	output := `Analyzing app...

   error • Undefined name 'foo' • lib/main.dart:3:5 • undefined_identifier
warning • Unused import • lib/util.dart:1:8 • unused_import
   info • Prefer const • lib/main.dart:9:1 • prefer_const_constructors

3 issues found.`

	issues := ParseDart(output, "/proj/app")
	if len(issues) != 2 {
		t.Fatalf("len(issues) = %d, want 2", len(issues))
	}
	if issues[0].FilePath != "/proj/app/lib/main.dart" {
		t.Errorf("FilePath = %s, want resolved against the target", issues[0].FilePath)
	}
	if issues[0].Message != "Undefined name 'foo'" || issues[0].Severity != severity.Critical {
		t.Errorf("issue 0 = %+v", issues[0])
	}
	if issues[1].Rule != "build_warning" || issues[1].LineOrZero() != 1 {
		t.Errorf("issue 1 = %+v", issues[1])
	}
}

func TestParseGo(t *testing.T) {
	output := "# example.com/app\n./main.go:5:2: undefined: x\ninternal/db/db.go:10:14: cannot use s (variable of type string) as int value\r\n"

	issues := ParseGo(output, "/proj")
	if len(issues) != 2 {
		t.Fatalf("len(issues) = %d, want 2", len(issues))
	}
	if issues[0].FilePath != "/proj/main.go" || issues[0].Message != "undefined: x" {
		t.Errorf("issue 0 = %+v", issues[0])
	}
	if issues[1].FilePath != "/proj/internal/db/db.go" || issues[1].ColumnOrZero() != 14 {
		t.Errorf("issue 1 = %+v", issues[1])
	}
	for _, issue := range issues {
		if issue.Severity != severity.Critical || issue.Scanner != Name {
			t.Errorf("issue = %+v", issue)
		}
	}
}

type stubRunner struct {
	output   string
	commands []string
}

func (r *stubRunner) Run(ctx context.Context, dir, name string, args ...string) (*core.ExecResult, error) {
	return &core.ExecResult{}, nil
}

func (r *stubRunner) RunShell(ctx context.Context, dir, command string) (*core.ExecResult, error) {
	r.commands = append(r.commands, command)
	return &core.ExecResult{ExitCode: 1, Stderr: r.output}, nil
}

func TestScanner_Scan(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{"go.mod": "module x\n", "main.go": "package main\n"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	runner := &stubRunner{output: "./main.go:1:1: expected 'package'\n"}
	s := NewScanner()
	s.Runner = runner

	result, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(runner.commands) != 1 || runner.commands[0] != "go build ./..." {
		t.Errorf("commands = %v", runner.commands)
	}
	if len(result.Issues) != 1 || result.ScannedFiles != 1 {
		t.Errorf("result = %d issues / %d files", len(result.Issues), result.ScannedFiles)
	}
	if result.Issues[0].FilePath != filepath.Join(dir, "main.go") {
		t.Errorf("FilePath = %s", result.Issues[0].FilePath)
	}
}

func TestScanner_NoTargets(t *testing.T) {
	runner := &stubRunner{}
	s := NewScanner()
	s.Runner = runner

	result, err := s.Scan(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Issues) != 0 || len(runner.commands) != 0 {
		t.Errorf("expected no commands and no issues, got %v / %d", runner.commands, len(result.Issues))
	}
}
