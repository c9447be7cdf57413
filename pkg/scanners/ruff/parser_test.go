package ruff

import (
	"testing"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

func TestParseJSON(t *testing.T) {
	data := `[
  {"code": "F401", "message": "` + "`os`" + ` imported but unused", "filename": "/proj/app/main.py", "location": {"row": 1, "column": 8}},
  {"code": "E501", "message": "Line too long (120 > 88)", "filename": "app/util.py", "location": {"row": 14, "column": 89}},
  {"code": null, "message": "SyntaxError: Expected an expression", "filename": "/proj/bad.py", "location": {"row": 2, "column": 5}}
]`
	issues, err := ParseJSON([]byte(data), "/proj")
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("len(issues) = %d, want 3", len(issues))
	}

	if issues[0].Rule != "F401" || issues[0].LineOrZero() != 1 || issues[0].ColumnOrZero() != 8 {
		t.Errorf("issue 0 = %+v", issues[0])
	}
	if issues[1].FilePath != "/proj/app/util.py" {
		t.Errorf("relative filename resolved to %s", issues[1].FilePath)
	}
	if issues[2].Rule != "unknown" {
		t.Errorf("null code rule = %s, want unknown", issues[2].Rule)
	}
	for _, issue := range issues {
		if issue.Scanner != Name {
			t.Errorf("Scanner = %s, want %s", issue.Scanner, Name)
		}
	}
}

func TestParseJSON_Empty(t *testing.T) {
	issues, err := ParseJSON([]byte("[]"), "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 0 {
		t.Errorf("len(issues) = %d, want 0", len(issues))
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	if _, err := ParseJSON([]byte("error: unexpected argument"), "/proj"); err == nil {
		t.Error("expected error for non-JSON output")
	}
}

func TestSeverityForCode(t *testing.T) {
	tests := []struct {
		code string
		want severity.Level
	}{
		{"E501", severity.High},
		{"F841", severity.High},
		{"W291", severity.Medium},
		{"C901", severity.Low},
		{"N802", severity.Low},
		{"B006", severity.Medium},
		{"unknown", severity.Medium},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := SeverityForCode(tt.code); got != tt.want {
				t.Errorf("SeverityForCode(%q) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestNewScanner(t *testing.T) {
	s := NewScanner()
	if !core.SupportsProjectType(s, core.ProjectTypePython) {
		t.Error("Ruff should run for python projects")
	}
	if core.SupportsProjectType(s, core.ProjectTypeSwift) {
		t.Error("Ruff should not run for swift projects")
	}
}
