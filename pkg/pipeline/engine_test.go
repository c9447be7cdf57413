package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/exploopio/ohmybug/pkg/backup"
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/errors"
	"github.com/exploopio/ohmybug/pkg/metrics"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// mockScanner implements core.Scanner for testing
type mockScanner struct {
	name     string
	types    []core.ProjectType
	scanFunc func(ctx context.Context, projectPath string) (*core.ScanResult, error)

	mu     sync.Mutex
	issues []core.Issue
	calls  int32
}

func (m *mockScanner) Name() string { return m.name }

func (m *mockScanner) SupportedProjectTypes() []core.ProjectType {
	if m.types == nil {
		return []core.ProjectType{core.ProjectTypeGo, core.ProjectTypeMixed}
	}
	return m.types
}

func (m *mockScanner) IsAvailable(ctx context.Context) bool { return true }

func (m *mockScanner) Scan(ctx context.Context, projectPath string) (*core.ScanResult, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.scanFunc != nil {
		return m.scanFunc(ctx, projectPath)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &core.ScanResult{
		Scanner:      m.name,
		Issues:       append([]core.Issue(nil), m.issues...),
		ScannedFiles: 2,
	}, nil
}

func (m *mockScanner) setIssues(issues []core.Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues = issues
}

// mockFixer implements core.Fixer for testing
type mockFixer struct {
	name    string
	fixFunc func(ctx context.Context, projectPath string) (*core.FixResult, error)
}

func (m *mockFixer) Name() string                         { return m.name }
func (m *mockFixer) IsAvailable(ctx context.Context) bool { return true }

func (m *mockFixer) Fix(ctx context.Context, projectPath string) (*core.FixResult, error) {
	if m.fixFunc != nil {
		return m.fixFunc(ctx, projectPath)
	}
	return &core.FixResult{Tool: m.name}, nil
}

// mockIssueFixer records the issues it was handed
type mockIssueFixer struct {
	mockFixer
	got []core.Issue
}

func (m *mockIssueFixer) FixIssues(ctx context.Context, projectPath string, issues []core.Issue) (*core.FixResult, error) {
	m.got = issues
	return &core.FixResult{Tool: m.name, FixedIssueCount: len(issues)}, nil
}

// mockToolFixer is a scanner that can also fix, like a linter adapter
type mockToolFixer struct {
	mockScanner
	fixes int32
}

func (m *mockToolFixer) Fix(ctx context.Context, projectPath string) (*core.FixResult, error) {
	atomic.AddInt32(&m.fixes, 1)
	return &core.FixResult{Tool: m.name}, nil
}

// mockRunner implements core.CommandRunner for build checks
type mockRunner struct {
	exitCode int
	commands []string
}

func (m *mockRunner) Run(ctx context.Context, dir, name string, args ...string) (*core.ExecResult, error) {
	return m.RunShell(ctx, dir, name+" "+strings.Join(args, " "))
}

func (m *mockRunner) RunShell(ctx context.Context, dir, command string) (*core.ExecResult, error) {
	m.commands = append(m.commands, command)
	return &core.ExecResult{ExitCode: m.exitCode}, nil
}

// recorder implements core.Observer
type recorder struct {
	mu       sync.Mutex
	phases   []core.ScanPhase
	logs     []core.LogEntry
	progress []float64
}

func (r *recorder) OnPhaseChange(phase core.ScanPhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

func (r *recorder) OnLog(entry core.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
}

func (r *recorder) OnProgress(fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, fraction)
}

func (r *recorder) hasLog(level core.LogLevel, substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.Level == level && strings.Contains(l.Message, substr) {
			return true
		}
	}
	return false
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = nil
	r.logs = nil
	r.progress = nil
}

// newProject creates a Go project with two source files and a test file.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"go.mod":           "module example.com/demo\n",
		"main.go":          "package main\n",
		"util.go":          "package main\n",
		"tests/x_test.go":  "package tests\n",
		"vendor/lib/v.go":  "package lib\n",
		"internal/keep.go": "package internal\n",
	}
	for name, content := range files {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newEngine(t *testing.T, root string, opts ...Option) *Engine {
	t.Helper()
	cfg := core.ProjectConfig{ProjectPath: root, ProjectType: core.ProjectTypeAuto}
	opts = append([]Option{WithBackupManager(backup.NewManager(root, backup.WithBaseDir(t.TempDir())))}, opts...)
	return NewEngine(cfg, opts...)
}

func TestEngine_FixBeforeScan(t *testing.T) {
	e := newEngine(t, newProject(t))

	_, err := e.Fix(context.Background())
	if errors.GetKind(err) != errors.KindNoScanReport {
		t.Fatalf("Fix() error = %v, want KindNoScanReport", err)
	}
	if !stderrors.Is(err, errors.ErrNoScanReport) {
		t.Errorf("errors.Is(err, ErrNoScanReport) = false")
	}
	if e.Phase() != core.PhaseIdle {
		t.Errorf("Phase() = %v, want Idle", e.Phase())
	}
}

func TestEngine_RollbackWithoutBackup(t *testing.T) {
	e := newEngine(t, newProject(t))

	n, err := e.Rollback(context.Background())
	if !stderrors.Is(err, errors.ErrNoBackup) {
		t.Fatalf("Rollback() error = %v, want ErrNoBackup", err)
	}
	if n != 0 {
		t.Errorf("Rollback() = %d, want 0", n)
	}
	if e.CanRollback() {
		t.Error("CanRollback() = true, want false")
	}
}

func TestEngine_ScanSummary(t *testing.T) {
	root := newProject(t)
	main := filepath.Join(root, "main.go")
	testFile := filepath.Join(root, "tests", "x_test.go")

	tests := []struct {
		name   string
		issues []core.Issue
		want   severity.Summary
	}{
		{
			name: "medium test issue unchanged",
			issues: []core.Issue{
				core.NewIssue("mock", "r1", "nil dereference", severity.Critical, main, 3, 1),
				core.NewIssue("mock", "r2", "index out of range", severity.Critical, main, 8, 1),
				core.NewIssue("mock", "r3", "unused variable", severity.Medium, testFile, 2, 1),
			},
			want: severity.Summary{Total: 3, Critical: 2, Medium: 1},
		},
		{
			name: "critical test issue downgraded",
			issues: []core.Issue{
				core.NewIssue("mock", "r1", "nil dereference", severity.Critical, main, 3, 1),
				core.NewIssue("mock", "r2", "assertion always fails", severity.Critical, testFile, 5, 1),
				core.NewIssue("mock", "r3", "unused variable", severity.Medium, main, 9, 1),
			},
			want: severity.Summary{Total: 3, Critical: 1, High: 1, Medium: 1},
		},
		{
			name: "vendored and duplicate issues dropped",
			issues: []core.Issue{
				core.NewIssue("mock", "r1", "Nil dereference.", severity.Medium, main, 3, 1),
				core.NewIssue("other", "r9", "nil dereference", severity.Critical, main, 3, 7),
				core.NewIssue("mock", "r2", "bad", severity.Critical, filepath.Join(root, "vendor", "lib", "v.go"), 1, 1),
			},
			want: severity.Summary{Total: 1, Critical: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := &mockScanner{name: "mock", issues: tt.issues}
			e := newEngine(t, root)
			e.RegisterScanner(scanner)

			report, err := e.Scan(context.Background())
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if got := report.Summary(); got != tt.want {
				t.Errorf("Summary() = %+v, want %+v", got, tt.want)
			}
			if e.LastScanReport() != report {
				t.Error("LastScanReport() does not return the scan report")
			}
			if len(report.ScanResults) != 1 || len(report.ScanResults[0].Issues) != len(tt.issues) {
				t.Errorf("ScanResults should keep the raw issues, got %+v", report.ScanResults)
			}
			if report.BuildSucceeded != nil {
				t.Errorf("BuildSucceeded = %v, want nil without build check", *report.BuildSucceeded)
			}
		})
	}
}

func TestEngine_ScanPhasesAndLogs(t *testing.T) {
	root := newProject(t)
	rec := &recorder{}
	e := newEngine(t, root, WithObserver(rec))
	e.RegisterScanner(&mockScanner{name: "first", issues: []core.Issue{
		core.NewIssue("first", "r", "m", severity.High, filepath.Join(root, "main.go"), 1, 1),
	}})
	e.RegisterScanner(&mockScanner{name: "second"})

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	wantPhases := []core.ScanPhase{core.PhaseBuild, core.PhaseTools, core.PhaseScan, core.PhaseIdle}
	if len(rec.phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", rec.phases, wantPhases)
	}
	for i := range wantPhases {
		if rec.phases[i] != wantPhases[i] {
			t.Errorf("phases[%d] = %v, want %v", i, rec.phases[i], wantPhases[i])
		}
	}

	if len(rec.progress) != 2 || rec.progress[0] != 0.5 || rec.progress[1] != 1 {
		t.Errorf("progress = %v, want [0.5 1]", rec.progress)
	}

	for _, want := range []struct {
		level core.LogLevel
		msg   string
	}{
		{core.LogInfo, "Phase: Tools"},
		{core.LogSuccess, "first is available"},
		{core.LogInfo, "Running first..."},
		{core.LogSuccess, "first: 1 issues found in 2 files"},
		{core.LogSuccess, "Scan complete: 1 issues found in 1 files"},
	} {
		if !rec.hasLog(want.level, want.msg) {
			t.Errorf("missing %s log %q", want.level, want.msg)
		}
	}
}

func TestEngine_ScanSkipsIneligibleScanners(t *testing.T) {
	e := newEngine(t, newProject(t))
	swift := &mockScanner{name: "swiftlint", types: []core.ProjectType{core.ProjectTypeSwift}}
	gov := &mockScanner{name: "govet"}
	e.RegisterScanner(swift)
	e.RegisterScanner(gov)

	report, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if atomic.LoadInt32(&swift.calls) != 0 {
		t.Error("swift scanner ran on a Go project")
	}
	if len(report.ScanResults) != 1 || report.ScanResults[0].Scanner != "govet" {
		t.Errorf("ScanResults = %+v, want only govet", report.ScanResults)
	}
}

func TestEngine_FailingToolIsSkipped(t *testing.T) {
	root := newProject(t)
	rec := &recorder{}
	e := newEngine(t, root, WithObserver(rec))

	broken := &mockScanner{name: "broken", scanFunc: func(ctx context.Context, _ string) (*core.ScanResult, error) {
		return nil, errors.ToolExecution("mock.Scan", "broken", stderrors.New("exit status 2"))
	}}
	healthy := &mockScanner{name: "healthy", issues: []core.Issue{
		core.NewIssue("healthy", "r", "m", severity.Low, filepath.Join(root, "util.go"), 4, 0),
	}}
	e.RegisterScanner(broken)
	e.RegisterScanner(healthy)

	report, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v, a tool failure must not fail the scan", err)
	}
	if len(report.ScanResults) != 1 || report.ScanResults[0].Scanner != "healthy" {
		t.Errorf("ScanResults = %+v, want only healthy", report.ScanResults)
	}
	if report.Summary().Total != 1 {
		t.Errorf("Total = %d, want 1", report.Summary().Total)
	}
	if !rec.hasLog(core.LogError, "broken failed") {
		t.Error("missing error log for broken scanner")
	}
	if got := e.GetStats().ToolFailures; got != 1 {
		t.Errorf("ToolFailures = %d, want 1", got)
	}
}

func TestEngine_ScanInvalidProject(t *testing.T) {
	e := NewEngine(core.ProjectConfig{ProjectPath: filepath.Join(t.TempDir(), "missing")})
	_, err := e.Scan(context.Background())
	if errors.GetKind(err) != errors.KindInvalidInput {
		t.Fatalf("Scan() error = %v, want KindInvalidInput", err)
	}
}

func TestEngine_FixAndRollback(t *testing.T) {
	root := newProject(t)
	main := filepath.Join(root, "main.go")
	util := filepath.Join(root, "util.go")
	original := map[string]string{main: "package main\n", util: "package main\n"}

	scanner := &mockScanner{name: "mock", issues: []core.Issue{
		core.NewIssue("mock", "r1", "first", severity.Critical, main, 1, 1),
		core.NewIssue("mock", "r2", "second", severity.High, util, 1, 1),
		core.NewIssue("mock", "r3", "third", severity.Medium, util, 2, 1),
	}}
	fixer := &mockFixer{name: "rewriter", fixFunc: func(ctx context.Context, projectPath string) (*core.FixResult, error) {
		for path := range original {
			if err := os.WriteFile(path, []byte("// fixed\n"), 0o644); err != nil {
				return nil, err
			}
		}
		scanner.setIssues([]core.Issue{
			core.NewIssue("mock", "r3", "third", severity.Medium, util, 2, 1),
		})
		return &core.FixResult{Tool: "rewriter", TotalFiles: 2, FixedFiles: 2, FixedIssueCount: 2}, nil
	}}

	rec := &recorder{}
	collector := metrics.NewInMemoryCollector()
	e := newEngine(t, root, WithObserver(rec), WithMetrics(collector))
	e.RegisterScanner(scanner)
	e.RegisterFixer(fixer)

	scan, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	rec.reset()

	report, err := e.Fix(context.Background())
	if err != nil {
		t.Fatalf("Fix() error = %v", err)
	}

	if !report.StartedAt.Equal(scan.StartedAt) {
		t.Errorf("StartedAt = %v, want scan start %v", report.StartedAt, scan.StartedAt)
	}
	if report.BeforeIssues.Total != 3 || report.AfterIssues.Total != 1 {
		t.Errorf("before/after = %d/%d, want 3/1", report.BeforeIssues.Total, report.AfterIssues.Total)
	}
	if got := report.ReductionPercentage(); got < 66.6 || got > 66.7 {
		t.Errorf("ReductionPercentage() = %v, want ~66.67", got)
	}
	if len(report.FixResults) != 1 || report.FixResults[0].FixedIssueCount != 2 {
		t.Errorf("FixResults = %+v", report.FixResults)
	}

	wantPhases := []core.ScanPhase{core.PhaseAIFix, core.PhaseScan, core.PhaseVerify, core.PhaseComplete}
	if len(rec.phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", rec.phases, wantPhases)
	}
	for i := range wantPhases {
		if rec.phases[i] != wantPhases[i] {
			t.Errorf("phases[%d] = %v, want %v", i, rec.phases[i], wantPhases[i])
		}
	}
	if !rec.hasLog(core.LogSuccess, "Backup created (2 files)") {
		t.Error("missing backup log")
	}
	if !rec.hasLog(core.LogSuccess, "rewriter: fixed 2 issues in 2/2 files") {
		t.Error("missing fixer log")
	}

	if !e.CanRollback() {
		t.Fatal("CanRollback() = false after Fix")
	}
	if got := collector.GetGauge(metrics.BackupFiles.Name); got != 2 {
		t.Errorf("backup gauge = %v, want 2", got)
	}

	n, err := e.Rollback(context.Background())
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Rollback() = %d, want 2", n)
	}
	for path, want := range original {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", filepath.Base(path), data, want)
		}
	}
	if e.Phase() != core.PhaseIdle {
		t.Errorf("Phase() after rollback = %v, want Idle", e.Phase())
	}
	if got := collector.GetCounter(metrics.RestoredFilesTotal.Name); got != 2 {
		t.Errorf("restored counter = %v, want 2", got)
	}

	if err := e.CleanupBackup(); err != nil {
		t.Fatalf("CleanupBackup() error = %v", err)
	}
	if e.CanRollback() {
		t.Error("CanRollback() = true after cleanup")
	}
	if _, err := e.Rollback(context.Background()); !stderrors.Is(err, errors.ErrNoBackup) {
		t.Errorf("Rollback() after cleanup error = %v, want ErrNoBackup", err)
	}
}

func TestEngine_IssueFixerGetsPendingIssues(t *testing.T) {
	root := newProject(t)
	issues := []core.Issue{
		core.NewIssue("mock", "r1", "a", severity.High, filepath.Join(root, "main.go"), 1, 1),
		core.NewIssue("mock", "r2", "b", severity.Low, filepath.Join(root, "util.go"), 1, 1),
	}
	e := newEngine(t, root)
	e.RegisterScanner(&mockScanner{name: "mock", issues: issues})
	fixer := &mockIssueFixer{mockFixer: mockFixer{name: "ai"}}
	e.RegisterFixer(fixer)

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	report, err := e.Fix(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(fixer.got) != 2 {
		t.Errorf("FixIssues got %d issues, want 2", len(fixer.got))
	}
	if report.FixResults[0].FixedIssueCount != 2 {
		t.Errorf("FixedIssueCount = %d, want 2", report.FixResults[0].FixedIssueCount)
	}
}

func TestEngine_FixSkipsToolFixersForOtherProjectTypes(t *testing.T) {
	root := newProject(t)
	e := newEngine(t, root)
	e.RegisterScanner(&mockScanner{name: "mock", issues: []core.Issue{
		core.NewIssue("mock", "r1", "a", severity.High, filepath.Join(root, "main.go"), 1, 1),
	}})
	goFixer := &mockToolFixer{mockScanner: mockScanner{name: "gofix"}}
	jsFixer := &mockToolFixer{mockScanner: mockScanner{
		name:  "jsfix",
		types: []core.ProjectType{core.ProjectTypeJavaScript, core.ProjectTypeMixed},
	}}
	for _, f := range []*mockToolFixer{goFixer, jsFixer} {
		e.RegisterScanner(f)
		e.RegisterFixer(f)
	}

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	report, err := e.Fix(context.Background())
	if err != nil {
		t.Fatalf("Fix() error = %v", err)
	}

	if got := atomic.LoadInt32(&jsFixer.fixes); got != 0 {
		t.Errorf("javascript fixer ran %d times on a go project", got)
	}
	if got := atomic.LoadInt32(&goFixer.fixes); got != 1 {
		t.Errorf("go fixer ran %d times, want 1", got)
	}
	if len(report.FixResults) != 1 || report.FixResults[0].Tool != "gofix" {
		t.Errorf("FixResults = %+v, want only gofix", report.FixResults)
	}
}

func TestEngine_FixAbortsWhenSnapshotFails(t *testing.T) {
	root := newProject(t)
	notADir := filepath.Join(t.TempDir(), "backups")
	if err := os.WriteFile(notADir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	collector := metrics.NewInMemoryCollector()
	e := newEngine(t, root,
		WithBackupManager(backup.NewManager(root, backup.WithBaseDir(notADir))),
		WithMetrics(collector),
	)
	e.RegisterScanner(&mockScanner{name: "mock", issues: []core.Issue{
		core.NewIssue("mock", "r1", "a", severity.High, filepath.Join(root, "main.go"), 1, 1),
	}})
	var calls int32
	e.RegisterFixer(&mockFixer{name: "rewriter", fixFunc: func(context.Context, string) (*core.FixResult, error) {
		atomic.AddInt32(&calls, 1)
		return &core.FixResult{Tool: "rewriter"}, nil
	}})

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	report, err := e.Fix(context.Background())
	if errors.GetKind(err) != errors.KindIO {
		t.Fatalf("Fix() error = %v, want KindIO", err)
	}
	if report != nil {
		t.Errorf("Fix() report = %+v, want nil", report)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("fixer ran %d times without a snapshot", got)
	}
	if e.Phase() != core.PhaseIdle {
		t.Errorf("Phase() = %v, want Idle", e.Phase())
	}
	if e.CanRollback() {
		t.Error("CanRollback() = true after failed snapshot")
	}
	if got := collector.GetCounter(metrics.PipelineRunsTotal.Name, "operation", "fix", "status", metrics.StatusFailed); got != 1 {
		t.Errorf("failed fix runs = %v, want 1", got)
	}
}

func TestEngine_IssueFixerSeesRescanAfterToolFix(t *testing.T) {
	root := newProject(t)
	main := filepath.Join(root, "main.go")
	scanner := &mockScanner{name: "mock", issues: []core.Issue{
		core.NewIssue("mock", "r1", "unused value", severity.High, main, 5, 1),
		core.NewIssue("mock", "r2", "bad style", severity.Low, main, 9, 1),
	}}
	formatter := &mockFixer{name: "formatter", fixFunc: func(context.Context, string) (*core.FixResult, error) {
		// formatting moved the remaining finding and surfaced one in a
		// file outside the snapshot
		scanner.setIssues([]core.Issue{
			core.NewIssue("mock", "r1", "unused value", severity.High, main, 3, 1),
			core.NewIssue("mock", "r9", "new", severity.High, filepath.Join(root, "internal", "keep.go"), 1, 1),
		})
		return &core.FixResult{Tool: "formatter", TotalFiles: 1, FixedFiles: 1, FixedIssueCount: 1}, nil
	}}
	ai := &mockIssueFixer{mockFixer: mockFixer{name: "ai"}}

	rec := &recorder{}
	e := newEngine(t, root, WithObserver(rec))
	e.RegisterScanner(scanner)
	e.RegisterFixer(formatter)
	e.RegisterFixer(ai)

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Fix(context.Background()); err != nil {
		t.Fatalf("Fix() error = %v", err)
	}

	if len(ai.got) != 1 {
		t.Fatalf("FixIssues got %d issues, want 1: %+v", len(ai.got), ai.got)
	}
	if ai.got[0].FilePath != main || ai.got[0].LineOrZero() != 3 {
		t.Errorf("FixIssues got %s:%d, want main.go:3", ai.got[0].FilePath, ai.got[0].LineOrZero())
	}
	if !rec.hasLog(core.LogInfo, "Rescanning before ai...") {
		t.Error("missing rescan log")
	}
}

func TestEngine_FixReportCarriesNormalizedRemainingIssues(t *testing.T) {
	root := newProject(t)
	main := filepath.Join(root, "main.go")
	e := newEngine(t, root)
	e.RegisterScanner(&mockScanner{name: "a", issues: []core.Issue{
		core.NewIssue("a", "r1", "Unused value", severity.Medium, main, 2, 1),
		core.NewIssue("a", "r2", "generated", severity.High, filepath.Join(root, "vendor", "lib", "v.go"), 1, 1),
	}})
	e.RegisterScanner(&mockScanner{name: "b", issues: []core.Issue{
		core.NewIssue("b", "r1", "unused value.", severity.High, main, 2, 4),
	}})

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	report, err := e.Fix(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.AfterIssueList()) != 3 {
		t.Errorf("raw after issues = %d, want 3", len(report.AfterIssueList()))
	}
	if len(report.RemainingIssues) != report.AfterIssues.Total || report.AfterIssues.Total != 1 {
		t.Errorf("RemainingIssues = %d, AfterIssues.Total = %d, want 1/1", len(report.RemainingIssues), report.AfterIssues.Total)
	}
	if report.RemainingIssues[0].Severity != severity.High {
		t.Errorf("kept severity = %s, want high", report.RemainingIssues[0].Severity)
	}
}

func TestEngine_FixerFailureIsSkipped(t *testing.T) {
	root := newProject(t)
	rec := &recorder{}
	e := newEngine(t, root, WithObserver(rec))
	e.RegisterScanner(&mockScanner{name: "mock"})
	e.RegisterFixer(&mockFixer{name: "broken", fixFunc: func(context.Context, string) (*core.FixResult, error) {
		return nil, stderrors.New("crashed")
	}})
	e.RegisterFixer(&mockFixer{name: "ok"})

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	report, err := e.Fix(context.Background())
	if err != nil {
		t.Fatalf("Fix() error = %v", err)
	}
	if len(report.FixResults) != 1 || report.FixResults[0].Tool != "ok" {
		t.Errorf("FixResults = %+v, want only ok", report.FixResults)
	}
	if !rec.hasLog(core.LogError, "broken fix failed: crashed") {
		t.Error("missing fixer failure log")
	}
}

func TestEngine_BuildCheck(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     bool
		wantLog  string
	}{
		{"success", 0, true, "BUILD SUCCEEDED"},
		{"failure", 1, false, "BUILD FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newProject(t)
			runner := &mockRunner{exitCode: tt.exitCode}
			rec := &recorder{}
			cfg := core.ProjectConfig{ProjectPath: root, RunBuildCheck: true}
			e := NewEngine(cfg, WithRunner(runner), WithObserver(rec),
				WithBackupManager(backup.NewManager(root, backup.WithBaseDir(t.TempDir()))))
			e.RegisterScanner(&mockScanner{name: "mock"})

			report, err := e.Scan(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if report.BuildSucceeded == nil || *report.BuildSucceeded != tt.want {
				t.Errorf("BuildSucceeded = %v, want %v", report.BuildSucceeded, tt.want)
			}
			if len(runner.commands) != 1 || runner.commands[0] != "go build ./..." {
				t.Errorf("commands = %v", runner.commands)
			}
			if !rec.hasLog(core.LogInfo, "Building ") || !strings.Contains(logText(rec), tt.wantLog) {
				t.Errorf("missing build logs, got:\n%s", logText(rec))
			}

			fix, err := e.Fix(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if fix.BuildSucceeded == nil || *fix.BuildSucceeded != tt.want {
				t.Errorf("fix BuildSucceeded = %v, want %v", fix.BuildSucceeded, tt.want)
			}
			if !tt.want && !rec.hasLog(core.LogError, "Use rollback to restore") {
				t.Error("missing post-fix build failure log")
			}
		})
	}
}

func TestEngine_BuildCheckWithoutTargets(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	runner := &mockRunner{}
	e := NewEngine(core.ProjectConfig{ProjectPath: root, RunBuildCheck: true},
		WithRunner(runner), WithObserver(rec))

	report, err := e.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.BuildSucceeded == nil || !*report.BuildSucceeded {
		t.Error("a project without targets should count as built")
	}
	if !rec.hasLog(core.LogWarning, "No buildable targets found") {
		t.Error("missing no-targets warning")
	}
	if len(runner.commands) != 0 {
		t.Errorf("commands = %v, want none", runner.commands)
	}
}

func TestEngine_RunWithoutAutoFix(t *testing.T) {
	root := newProject(t)
	e := newEngine(t, root)
	e.RegisterScanner(&mockScanner{name: "mock", issues: []core.Issue{
		core.NewIssue("mock", "r", "m", severity.High, filepath.Join(root, "main.go"), 1, 1),
	}})
	called := false
	e.RegisterFixer(&mockFixer{name: "fixer", fixFunc: func(context.Context, string) (*core.FixResult, error) {
		called = true
		return nil, nil
	}})

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("fixer ran with AutoApplyFixes disabled")
	}
	if report.BeforeIssues != report.AfterIssues || report.BeforeIssues.Total != 1 {
		t.Errorf("before/after = %+v/%+v", report.BeforeIssues, report.AfterIssues)
	}
	if e.CanRollback() {
		t.Error("no snapshot expected without fixing")
	}
}

func TestEngine_RunWithAutoFix(t *testing.T) {
	root := newProject(t)
	cfg := core.ProjectConfig{ProjectPath: root, AutoApplyFixes: true}
	e := NewEngine(cfg, WithBackupManager(backup.NewManager(root, backup.WithBaseDir(t.TempDir()))))
	e.RegisterScanner(&mockScanner{name: "mock"})
	e.RegisterFixer(&mockFixer{name: "fixer"})

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.FixResults) != 1 {
		t.Errorf("FixResults = %+v, want one", report.FixResults)
	}
	if !e.CanRollback() {
		t.Error("snapshot should exist after an auto fix, even with no affected files")
	}
	if e.Phase() != core.PhaseComplete {
		t.Errorf("Phase() = %v, want Complete", e.Phase())
	}
}

func TestEngine_Dismiss(t *testing.T) {
	e := newEngine(t, newProject(t))
	e.RegisterScanner(&mockScanner{name: "mock"})
	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.Dismiss()
	if e.LastScanReport() != nil {
		t.Error("LastScanReport() != nil after Dismiss")
	}
	if _, err := e.Fix(context.Background()); errors.GetKind(err) != errors.KindNoScanReport {
		t.Errorf("Fix() error = %v, want KindNoScanReport", err)
	}
}

func TestEngine_ToolTimeout(t *testing.T) {
	root := newProject(t)
	rec := &recorder{}
	cfg := core.ProjectConfig{ProjectPath: root, ToolTimeout: 20 * time.Millisecond}
	e := NewEngine(cfg, WithObserver(rec))
	e.RegisterScanner(&mockScanner{name: "hung", scanFunc: func(ctx context.Context, _ string) (*core.ScanResult, error) {
		<-ctx.Done()
		return nil, errors.ToolExecution("mock.Scan", "hung", ctx.Err())
	}})

	report, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(report.ScanResults) != 0 {
		t.Errorf("ScanResults = %+v, want none", report.ScanResults)
	}
	if !rec.hasLog(core.LogError, "hung failed") {
		t.Error("missing timeout failure log")
	}
}

func TestEngine_CancelledScan(t *testing.T) {
	e := newEngine(t, newProject(t))
	ctx, cancel := context.WithCancel(context.Background())
	e.RegisterScanner(&mockScanner{name: "cancels", scanFunc: func(context.Context, string) (*core.ScanResult, error) {
		cancel()
		return &core.ScanResult{Scanner: "cancels"}, nil
	}})

	_, err := e.Scan(ctx)
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("Scan() error = %v, want context.Canceled", err)
	}
	if e.LastScanReport() != nil {
		t.Error("a cancelled scan must not replace the last report")
	}
	if e.Phase() != core.PhaseIdle {
		t.Errorf("Phase() = %v, want Idle", e.Phase())
	}
}

func TestEngine_OperationsAreSerialized(t *testing.T) {
	root := newProject(t)
	var inFlight, maxInFlight int32
	scanner := &mockScanner{name: "slow", scanFunc: func(context.Context, string) (*core.ScanResult, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &core.ScanResult{Scanner: "slow"}, nil
	}}
	e := newEngine(t, root)
	e.RegisterScanner(scanner)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = e.Scan(context.Background())
			} else {
				_, _ = e.Run(context.Background())
			}
			_ = e.Phase()
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("max concurrent scans = %d, want 1", got)
	}
	if got := e.GetStats().Scans; got != 6 {
		t.Errorf("Scans = %d, want 6", got)
	}
}

func TestEngine_ObserverMayReadState(t *testing.T) {
	e := newEngine(t, newProject(t))
	var seen []core.ScanPhase
	e.SetObserver(core.ObserverFuncs{PhaseChange: func(core.ScanPhase) {
		seen = append(seen, e.Phase())
	}})
	e.RegisterScanner(&mockScanner{name: "mock"})

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 4 || seen[0] != core.PhaseBuild || seen[3] != core.PhaseIdle {
		t.Errorf("phases seen from observer = %v", seen)
	}
}

func TestEngine_Registration(t *testing.T) {
	e := newEngine(t, newProject(t))
	e.RegisterScanner(&mockScanner{name: "a"})
	e.RegisterScanner(&mockScanner{name: "b"})
	e.RegisterScanner(&mockScanner{name: "a"})
	e.RegisterFixer(&mockFixer{name: "f"})

	if got := strings.Join(e.Scanners(), ","); got != "a,b,a" {
		t.Errorf("Scanners() = %s, want a,b,a", got)
	}
	if got := strings.Join(e.Fixers(), ","); got != "f" {
		t.Errorf("Fixers() = %s, want f", got)
	}
}

func TestEngine_Metrics(t *testing.T) {
	root := newProject(t)
	collector := metrics.NewInMemoryCollector()
	e := newEngine(t, root, WithMetrics(collector))
	e.RegisterScanner(&mockScanner{name: "mock", issues: []core.Issue{
		core.NewIssue("mock", "r", "m", severity.High, filepath.Join(root, "main.go"), 1, 1),
		core.NewIssue("mock", "r", "n", severity.High, filepath.Join(root, "main.go"), 2, 1),
	}})

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := collector.GetCounter(metrics.ScannerRunsTotal.Name, "scanner", "mock", "status", metrics.StatusSuccess); got != 1 {
		t.Errorf("scanner runs = %v, want 1", got)
	}
	if got := collector.GetGauge(metrics.IssuesCurrent.Name, "severity", "high"); got != 2 {
		t.Errorf("high issues gauge = %v, want 2", got)
	}
	if got := collector.GetCounter(metrics.PipelineRunsTotal.Name, "operation", "scan", "status", metrics.StatusSuccess); got != 1 {
		t.Errorf("pipeline runs = %v, want 1", got)
	}
}

func logText(r *recorder) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, l := range r.logs {
		b.WriteString(string(l.Level))
		b.WriteString(" ")
		b.WriteString(l.Message)
		b.WriteString("\n")
	}
	return b.String()
}
