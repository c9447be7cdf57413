package dart

import (
	"context"
	"testing"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

func TestParseMachine(t *testing.T) {
	output := `Analyzing app...
ERROR|COMPILE_TIME_ERROR|UNDEFINED_IDENTIFIER|/proj/lib/main.dart|10|5|3|Undefined name 'foo'.
WARNING|STATIC_WARNING|DEAD_CODE|lib/util.dart|4|1|8|Dead code.
INFO|LINT|PREFER_CONST_CONSTRUCTORS|/proj/lib/main.dart|2|9|4|Use 'const' with the constructor | to improve performance.
TODO|TODO|TODO|/proj/lib/main.dart|1|1|4|TODO: later
3 issues found.`

	issues, err := ParseMachine([]byte(output), "/proj")
	if err != nil {
		t.Fatalf("ParseMachine() error = %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("len(issues) = %d, want 3", len(issues))
	}

	tests := []struct {
		rule     string
		severity severity.Level
		path     string
		line     int
		message  string
	}{
		{"undefined_identifier", severity.High, "/proj/lib/main.dart", 10, "Undefined name 'foo'."},
		{"dead_code", severity.Medium, "/proj/lib/util.dart", 4, "Dead code."},
		{"prefer_const_constructors", severity.Low, "/proj/lib/main.dart", 2, "Use 'const' with the constructor | to improve performance."},
	}
	for i, tt := range tests {
		got := issues[i]
		if got.Rule != tt.rule || got.Severity != tt.severity || got.FilePath != tt.path || got.LineOrZero() != tt.line {
			t.Errorf("issue %d = %s/%s %s:%d, want %s/%s %s:%d", i,
				got.Rule, got.Severity, got.FilePath, got.LineOrZero(), tt.rule, tt.severity, tt.path, tt.line)
		}
		if got.Message != tt.message || got.Scanner != AnalyzerName {
			t.Errorf("issue %d message/scanner = %q/%s", i, got.Message, got.Scanner)
		}
	}
}

func TestParseFlutter(t *testing.T) {
	output := `Analyzing app...

   info • Unused import: 'package:flutter/material.dart' • lib/main.dart:3:8 • unused_import
  error • The method 'foo' isn't defined for the type 'Bar' • /proj/lib/bar.dart:20:12 • undefined_method
warning • The value of the local variable 'x' isn't used • lib/x.dart:7:9 • unused_local_variable

3 issues found. (ran in 2.1s)`

	issues, err := ParseFlutter([]byte(output), "/proj")
	if err != nil {
		t.Fatalf("ParseFlutter() error = %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("len(issues) = %d, want 3", len(issues))
	}

	tests := []struct {
		rule         string
		severity     severity.Level
		path         string
		line, column int
	}{
		{"unused_import", severity.Low, "/proj/lib/main.dart", 3, 8},
		{"undefined_method", severity.High, "/proj/lib/bar.dart", 20, 12},
		{"unused_local_variable", severity.Medium, "/proj/lib/x.dart", 7, 9},
	}
	for i, tt := range tests {
		got := issues[i]
		if got.Rule != tt.rule || got.Severity != tt.severity || got.FilePath != tt.path {
			t.Errorf("issue %d = %s/%s %s, want %s/%s %s", i, got.Rule, got.Severity, got.FilePath, tt.rule, tt.severity, tt.path)
		}
		if got.LineOrZero() != tt.line || got.ColumnOrZero() != tt.column {
			t.Errorf("issue %d at %d:%d, want %d:%d", i, got.LineOrZero(), got.ColumnOrZero(), tt.line, tt.column)
		}
	}
	if issues[0].Message != "Unused import: 'package:flutter/material.dart'" {
		t.Errorf("message = %q", issues[0].Message)
	}
}

// cannedRunner returns one fixed result for every command.
type cannedRunner struct {
	result core.ExecResult
}

func (r cannedRunner) Run(context.Context, string, string, ...string) (*core.ExecResult, error) {
	res := r.result
	return &res, nil
}

func (r cannedRunner) RunShell(context.Context, string, string) (*core.ExecResult, error) {
	res := r.result
	return &res, nil
}

func TestScanner_Scan(t *testing.T) {
	tests := []struct {
		name       string
		result     core.ExecResult
		wantIssues int
		wantErr    bool
	}{
		{"no issues", core.ExecResult{ExitCode: 0, Stdout: "Analyzing app...\nNo issues found!"}, 0, false},
		{"findings on stderr", core.ExecResult{ExitCode: 3, Stderr: "ERROR|COMPILE_TIME_ERROR|X|/proj/a.dart|1|1|1|Broken."}, 1, false},
		{"crash", core.ExecResult{ExitCode: 64, Stderr: "Could not find an option named \"format\"."}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAnalyzer()
			s.BaseTool().Runner = cannedRunner{result: tt.result}

			result, err := s.Scan(context.Background(), t.TempDir())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(result.Issues) != tt.wantIssues {
				t.Errorf("len(Issues) = %d, want %d", len(result.Issues), tt.wantIssues)
			}
		})
	}
}

func TestScannersAreNotFixers(t *testing.T) {
	for _, s := range []core.Scanner{NewAnalyzer(), NewFlutterAnalyzer()} {
		if _, ok := s.(core.Fixer); ok {
			t.Errorf("%s must not be a fixer", s.Name())
		}
	}
	if core.SupportsProjectType(NewFlutterAnalyzer(), core.ProjectTypeMixed) {
		t.Error("Flutter Analyzer only runs on flutter projects")
	}
}
