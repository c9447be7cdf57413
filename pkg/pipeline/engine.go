// Package pipeline coordinates a check/fix pass over a project.
//
// The Engine holds the registered scanners and fixers and drives them
// through the phases Build, Tools and Scan for a scan pass, and AI Fix, Scan,
// Verify and Complete for a fix pass. Tools run one at a time in
// registration order. A failing tool is logged and skipped; only missing
// preconditions (no scan report, no backup, a failed snapshot) are returned
// to the caller.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/exploopio/ohmybug/pkg/backup"
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/errors"
	"github.com/exploopio/ohmybug/pkg/metrics"
	"github.com/exploopio/ohmybug/pkg/normalize"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// Engine runs scan and fix passes for one project.
//
// Scan, Fix, Run, Rollback, CleanupBackup and Dismiss are serialized: a call
// waits for the running one to finish. Read accessors never block on a pass.
type Engine struct {
	// opMu serializes top-level operations
	opMu sync.Mutex

	// stateMu guards the fields below
	stateMu    sync.RWMutex
	scanners   []core.Scanner
	fixers     []core.Fixer
	phase      core.ScanPhase
	lastReport *core.ScanReport
	observer   core.Observer

	cfg     core.ProjectConfig
	logger  core.Logger
	metrics metrics.Collector
	runner  core.CommandRunner
	backup  *backup.Manager

	// Stats
	scans        int64
	fixes        int64
	rollbacks    int64
	toolFailures int64
}

// NewEngine creates an engine for cfg. The configuration is not validated
// here; Scan rejects a project path that is not a directory.
func NewEngine(cfg core.ProjectConfig, opts ...Option) *Engine {
	if cfg.ProjectType == "" {
		cfg.ProjectType = core.ProjectTypeAuto
	}

	e := &Engine{
		cfg:     cfg,
		phase:   core.PhaseIdle,
		logger:  &core.NopLogger{},
		metrics: &metrics.NopCollector{},
		runner:  core.NewExecRunner(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.backup == nil {
		e.backup = backup.NewManager(cfg.ProjectPath, backup.WithLogger(e.logger))
	}
	return e
}

// =============================================================================
// Registration and accessors
// =============================================================================

// RegisterScanner appends s to the scanners. Registration order is run order;
// names are not deduplicated.
func (e *Engine) RegisterScanner(s core.Scanner) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.scanners = append(e.scanners, s)
}

// RegisterFixer appends f to the fixers.
func (e *Engine) RegisterFixer(f core.Fixer) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.fixers = append(e.fixers, f)
}

// Scanners returns the names of the registered scanners in order.
func (e *Engine) Scanners() []string {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	names := make([]string, len(e.scanners))
	for i, s := range e.scanners {
		names[i] = s.Name()
	}
	return names
}

// Fixers returns the names of the registered fixers in order.
func (e *Engine) Fixers() []string {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	names := make([]string, len(e.fixers))
	for i, f := range e.fixers {
		names[i] = f.Name()
	}
	return names
}

// SetObserver replaces the observer. nil disables events.
func (e *Engine) SetObserver(o core.Observer) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.observer = o
}

// Phase returns the current phase.
func (e *Engine) Phase() core.ScanPhase {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.phase
}

// LastScanReport returns the report of the last scan, or nil.
func (e *Engine) LastScanReport() *core.ScanReport {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.lastReport
}

// CanRollback reports whether a backup snapshot exists.
func (e *Engine) CanRollback() bool {
	return e.backup.SnapshotExists()
}

// BackupLocation returns the directory holding the snapshot.
func (e *Engine) BackupLocation() string {
	return e.backup.Location()
}

// Config returns the engine configuration.
func (e *Engine) Config() core.ProjectConfig {
	return e.cfg
}

// Stats holds engine counters.
type Stats struct {
	Scans        int64 `json:"scans"`
	Fixes        int64 `json:"fixes"`
	Rollbacks    int64 `json:"rollbacks"`
	ToolFailures int64 `json:"tool_failures"`
}

// GetStats returns the engine counters.
func (e *Engine) GetStats() *Stats {
	return &Stats{
		Scans:        atomic.LoadInt64(&e.scans),
		Fixes:        atomic.LoadInt64(&e.fixes),
		Rollbacks:    atomic.LoadInt64(&e.rollbacks),
		ToolFailures: atomic.LoadInt64(&e.toolFailures),
	}
}

// =============================================================================
// Top-level operations
// =============================================================================

// Scan runs the Build, Tools and Scan phases and stores the result as the
// last scan report. Individual tool failures do not fail the scan.
func (e *Engine) Scan(ctx context.Context) (*core.ScanReport, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.scan(ctx)
}

// Fix snapshots the files of the last scan report, runs every fixer, scans
// again and verifies the build. It fails with KindNoScanReport when Scan has
// not run, and with KindIO when the snapshot cannot be taken; in both cases
// no file is touched.
func (e *Engine) Fix(ctx context.Context) (*core.PipelineReport, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.fix(ctx)
}

// Run scans and, when AutoApplyFixes is set, fixes. Without fixing, the
// returned report has identical before and after summaries.
func (e *Engine) Run(ctx context.Context) (*core.PipelineReport, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	report, err := e.scan(ctx)
	if err != nil {
		return nil, err
	}
	if !e.cfg.AutoApplyFixes {
		summary := report.Summary()
		return &core.PipelineReport{
			ProjectPath:    e.cfg.ProjectPath,
			StartedAt:      report.StartedAt,
			CompletedAt:    time.Now(),
			BeforeIssues:    summary,
			AfterIssues:     summary,
			RemainingIssues: report.Issues,
			ScanResults:     report.ScanResults,
			FixResults:      []core.FixResult{},
			BuildSucceeded:  report.BuildSucceeded,
		}, nil
	}
	return e.fix(ctx)
}

// Rollback restores the snapshot taken by the last Fix and returns the
// number of files restored. It fails with KindNoBackup when no snapshot
// exists. The snapshot is kept, so Rollback may be repeated.
func (e *Engine) Rollback(ctx context.Context) (int, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if !e.backup.SnapshotExists() {
		return 0, errors.E(errors.KindNoBackup, "pipeline.Rollback", "no backup available to rollback")
	}

	e.log(core.LogWarning, "Rolling back changes...")
	restored, err := e.backup.Rollback(ctx)
	e.metrics.CounterAdd(metrics.RestoredFilesTotal.Name, float64(restored))
	e.metrics.CounterInc(metrics.RollbacksTotal.Name, "status", metrics.StatusLabel(err))
	if err != nil {
		e.log(core.LogError, fmt.Sprintf("Rollback failed after %d files: %v", restored, err))
		return restored, err
	}
	atomic.AddInt64(&e.rollbacks, 1)

	e.log(core.LogSuccess, fmt.Sprintf("Rolled back %d files", restored))
	e.setPhase(core.PhaseIdle)
	return restored, nil
}

// CleanupBackup deletes the snapshot. Rollback is unavailable afterwards.
func (e *Engine) CleanupBackup() error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	err := e.backup.Cleanup()
	e.metrics.GaugeSet(metrics.BackupFiles.Name, 0)
	if err != nil {
		e.log(core.LogWarning, fmt.Sprintf("Backup cleanup failed: %v", err))
		return err
	}
	e.logger.Debug("backup removed")
	return nil
}

// Dismiss forgets the last scan report. Fix fails until the next Scan.
func (e *Engine) Dismiss() {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.stateMu.Lock()
	e.lastReport = nil
	e.stateMu.Unlock()
	e.setPhase(core.PhaseIdle)
}

// =============================================================================
// Passes
// =============================================================================

func (e *Engine) scan(ctx context.Context) (*core.ScanReport, error) {
	const op = "pipeline.Scan"
	timer := metrics.NewTimer(e.metrics, metrics.PipelineDuration.Name, "operation", "scan")

	if info, err := os.Stat(e.cfg.ProjectPath); err != nil || !info.IsDir() {
		e.metrics.CounterInc(metrics.PipelineRunsTotal.Name, "operation", "scan", "status", metrics.StatusFailed)
		return nil, errors.InvalidInput(op, fmt.Sprintf("project path %q is not a directory", e.cfg.ProjectPath))
	}

	startedAt := time.Now()

	e.setPhase(core.PhaseBuild)
	var buildSucceeded *bool
	if e.cfg.RunBuildCheck {
		buildSucceeded = core.BoolPtr(e.runBuildCheck(ctx))
	}

	e.setPhase(core.PhaseTools)
	e.ensureToolsAvailable(ctx)

	e.setPhase(core.PhaseScan)
	results, issues := e.runScanPhase(ctx)

	if err := ctx.Err(); err != nil {
		e.setPhase(core.PhaseIdle)
		e.metrics.CounterInc(metrics.PipelineRunsTotal.Name, "operation", "scan", "status", metrics.StatusFailed)
		return nil, errors.Wrap(err, op)
	}

	affected := core.AffectedFiles(issues)
	report := &core.ScanReport{
		ProjectPath:    e.cfg.ProjectPath,
		StartedAt:      startedAt,
		CompletedAt:    time.Now(),
		Issues:         issues,
		ScanResults:    results,
		BuildSucceeded: buildSucceeded,
		AffectedFiles:  affected,
	}

	e.stateMu.Lock()
	e.lastReport = report
	e.stateMu.Unlock()

	atomic.AddInt64(&e.scans, 1)
	e.recordIssues(report.Summary())
	e.metrics.CounterInc(metrics.PipelineRunsTotal.Name, "operation", "scan", "status", metrics.StatusSuccess)
	timer.ObserveDuration()

	e.setPhase(core.PhaseIdle)
	e.log(core.LogSuccess, fmt.Sprintf("Scan complete: %d issues found in %d files", len(issues), len(affected)))
	return report, nil
}

func (e *Engine) fix(ctx context.Context) (*core.PipelineReport, error) {
	const op = "pipeline.Fix"

	e.stateMu.RLock()
	last := e.lastReport
	e.stateMu.RUnlock()
	if last == nil {
		return nil, errors.E(errors.KindNoScanReport, op, "no scan report available, run Scan first")
	}

	timer := metrics.NewTimer(e.metrics, metrics.PipelineDuration.Name, "operation", "fix")
	fail := func(err error) (*core.PipelineReport, error) {
		e.setPhase(core.PhaseIdle)
		e.metrics.CounterInc(metrics.PipelineRunsTotal.Name, "operation", "fix", "status", metrics.StatusFailed)
		return nil, err
	}

	e.setPhase(core.PhaseAIFix)
	e.log(core.LogInfo, fmt.Sprintf("Creating backup of %d affected files...", len(last.AffectedFiles)))
	if err := e.backup.CreateSnapshot(ctx, last.AffectedFiles); err != nil {
		e.log(core.LogError, fmt.Sprintf("Backup failed, no changes made: %v", err))
		return fail(err)
	}
	backedUp := e.backup.BackedUpFileCount()
	e.metrics.GaugeSet(metrics.BackupFiles.Name, float64(backedUp))
	e.log(core.LogSuccess, fmt.Sprintf("Backup created (%d files)", backedUp))

	fixResults := e.runFixPhase(ctx, last.Issues)

	e.setPhase(core.PhaseScan)
	results, after := e.runScanPhase(ctx)

	e.setPhase(core.PhaseVerify)
	var buildSucceeded *bool
	if e.cfg.RunBuildCheck {
		ok := e.runBuildCheck(ctx)
		buildSucceeded = &ok
		if !ok {
			e.log(core.LogError, "Build failed after fix. Use rollback to restore.")
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(errors.Wrap(err, op))
	}

	e.setPhase(core.PhaseComplete)

	report := &core.PipelineReport{
		ProjectPath:     e.cfg.ProjectPath,
		StartedAt:       last.StartedAt,
		CompletedAt:     time.Now(),
		BeforeIssues:    last.Summary(),
		AfterIssues:     core.SummarizeIssues(after),
		RemainingIssues: nonNilIssues(after),
		ScanResults:     results,
		FixResults:      fixResults,
		BuildSucceeded:  buildSucceeded,
	}

	atomic.AddInt64(&e.fixes, 1)
	e.recordIssues(report.AfterIssues)
	e.metrics.CounterInc(metrics.PipelineRunsTotal.Name, "operation", "fix", "status", metrics.StatusSuccess)
	timer.ObserveDuration()

	e.log(core.LogSuccess, fmt.Sprintf("Fix complete: %d issues before, %d after (%.0f%% reduction)",
		report.BeforeIssues.Total, report.AfterIssues.Total, report.ReductionPercentage()))
	return report, nil
}

// =============================================================================
// Phases
// =============================================================================

// runBuildCheck builds every target and reports whether all succeeded.
// A project without targets counts as a success.
func (e *Engine) runBuildCheck(ctx context.Context) bool {
	targets := detect.FindBuildTargets(e.cfg.ProjectPath)
	if len(targets) == 0 {
		e.log(core.LogWarning, "No buildable targets found")
		e.metrics.CounterInc(metrics.BuildChecksTotal.Name, "status", "skipped")
		return true
	}

	allSucceeded := true
	for _, target := range targets {
		name := target.Name()
		e.log(core.LogInfo, fmt.Sprintf("Building %s...", name))

		toolCtx, cancel := e.toolContext(ctx)
		result, err := e.runner.RunShell(toolCtx, target.Path, target.Command)
		cancel()

		switch {
		case err != nil:
			e.log(core.LogError, fmt.Sprintf("%s: %v", name, err))
			allSucceeded = false
		case !result.Succeeded():
			e.log(core.LogError, fmt.Sprintf("%s: BUILD FAILED", name))
			e.logger.Debug("%s build output:\n%s", name, core.Truncate(result.Output(), 4000))
			allSucceeded = false
		default:
			e.log(core.LogSuccess, fmt.Sprintf("%s: BUILD SUCCEEDED", name))
		}
	}

	status := metrics.StatusSuccess
	if !allSucceeded {
		status = metrics.StatusFailed
	}
	e.metrics.CounterInc(metrics.BuildChecksTotal.Name, "status", status)
	return allSucceeded
}

// ensureToolsAvailable checks every scanner. Unavailable scanners are still
// invoked in the scan phase, where their failure is logged.
func (e *Engine) ensureToolsAvailable(ctx context.Context) {
	for _, s := range e.snapshotScanners() {
		toolCtx, cancel := e.toolContext(ctx)
		available := s.IsAvailable(toolCtx)
		cancel()

		if available {
			e.log(core.LogSuccess, fmt.Sprintf("%s is available", s.Name()))
		} else {
			e.log(core.LogWarning, fmt.Sprintf("%s is not available", s.Name()))
			e.metrics.CounterInc(metrics.ScannerRunsTotal.Name, "scanner", s.Name(), "status", metrics.StatusUnavailable)
		}
	}
}

// runScanPhase runs every scanner that applies to the project type and
// returns the raw results plus the normalized issue list.
func (e *Engine) runScanPhase(ctx context.Context) ([]core.ScanResult, []core.Issue) {
	return e.runScanners(ctx, e.resolveProjectType(), false)
}

// runScanners does the work of runScanPhase. A quiet run logs only
// failures and reports no progress.
func (e *Engine) runScanners(ctx context.Context, projectType core.ProjectType, quiet bool) ([]core.ScanResult, []core.Issue) {

	var eligible []core.Scanner
	for _, s := range e.snapshotScanners() {
		if core.SupportsProjectType(s, projectType) {
			eligible = append(eligible, s)
		}
	}

	results := make([]core.ScanResult, 0, len(eligible))
	var raw []core.Issue

	for i, s := range eligible {
		if ctx.Err() != nil {
			break
		}
		name := s.Name()
		if !quiet {
			e.log(core.LogInfo, fmt.Sprintf("Running %s...", name))
		}

		toolCtx, cancel := e.toolContext(ctx)
		start := time.Now()
		result, err := s.Scan(toolCtx, e.cfg.ProjectPath)
		cancel()
		e.metrics.HistogramObserve(metrics.ScannerDuration.Name, time.Since(start).Seconds(), "scanner", name)

		if err != nil {
			atomic.AddInt64(&e.toolFailures, 1)
			e.metrics.CounterInc(metrics.ScannerRunsTotal.Name, "scanner", name, "status", metrics.StatusFailed)
			e.log(core.LogError, fmt.Sprintf("%s failed: %v", name, err))
		} else {
			if result == nil {
				result = &core.ScanResult{Scanner: name}
			}
			results = append(results, *result)
			raw = append(raw, result.Issues...)
			e.metrics.CounterInc(metrics.ScannerRunsTotal.Name, "scanner", name, "status", metrics.StatusSuccess)
			e.metrics.CounterAdd(metrics.ScannerIssuesTotal.Name, float64(result.TotalCount()), "scanner", name)
			if !quiet {
				e.log(core.LogSuccess, fmt.Sprintf("%s: %d issues found in %d files", name, result.TotalCount(), result.ScannedFiles))
			}
		}

		if !quiet {
			e.progress(float64(i+1) / float64(len(eligible)))
		}
	}

	return results, normalize.Normalize(raw)
}

// runFixPhase runs every fixer in order. Tool fixers whose scanner does not
// apply to the project type are skipped: their files were never part of the
// scan report and so are not in the snapshot. Issue-aware fixers get the
// unfixed issues in snapshotted files; once an earlier fixer has changed
// files, those issues come from a fresh scan so line numbers match the
// current content.
func (e *Engine) runFixPhase(ctx context.Context, issues []core.Issue) []core.FixResult {
	projectType := e.resolveProjectType()
	pending := e.pendingIssues(issues)

	var fixers []core.Fixer
	for _, f := range e.snapshotFixers() {
		if s, ok := f.(core.Scanner); ok && !core.SupportsProjectType(s, projectType) {
			e.logger.Debug("skipping %s fixer for %s project", f.Name(), projectType)
			continue
		}
		fixers = append(fixers, f)
	}

	results := make([]core.FixResult, 0, len(fixers))
	stale := false

	for i, f := range fixers {
		if ctx.Err() != nil {
			break
		}
		name := f.Name()
		issueFixer, isIssueFixer := f.(core.IssueFixer)
		if isIssueFixer && stale {
			e.log(core.LogInfo, fmt.Sprintf("Rescanning before %s...", name))
			_, fresh := e.runScanners(ctx, projectType, true)
			pending = e.pendingIssues(fresh)
			stale = false
		}
		e.log(core.LogInfo, fmt.Sprintf("Running %s auto-fix...", name))

		toolCtx, cancel := e.toolContext(ctx)
		start := time.Now()
		var (
			result *core.FixResult
			err    error
		)
		if isIssueFixer {
			result, err = issueFixer.FixIssues(toolCtx, e.cfg.ProjectPath, pending)
		} else {
			result, err = f.Fix(toolCtx, e.cfg.ProjectPath)
		}
		cancel()
		e.metrics.HistogramObserve(metrics.FixerDuration.Name, time.Since(start).Seconds(), "fixer", name)

		if err != nil {
			atomic.AddInt64(&e.toolFailures, 1)
			e.metrics.CounterInc(metrics.FixerRunsTotal.Name, "fixer", name, "status", metrics.StatusFailed)
			e.log(core.LogError, fmt.Sprintf("%s fix failed: %v", name, err))
			// a failed tool may still have rewritten files
			stale = true
		} else {
			if result == nil {
				result = &core.FixResult{Tool: name}
			}
			if result.FixedFiles > 0 || result.FixedIssueCount > 0 {
				stale = true
			}
			results = append(results, *result)
			e.metrics.CounterInc(metrics.FixerRunsTotal.Name, "fixer", name, "status", metrics.StatusSuccess)
			e.metrics.CounterAdd(metrics.FixerFixedIssuesTotal.Name, float64(result.FixedIssueCount), "fixer", name)
			e.log(core.LogSuccess, fmt.Sprintf("%s: fixed %d issues in %d/%d files",
				name, result.FixedIssueCount, result.FixedFiles, result.TotalFiles))
		}

		e.progress(float64(i+1) / float64(len(fixers)))
	}
	return results
}

// pendingIssues keeps the unfixed issues whose file is in the snapshot.
func (e *Engine) pendingIssues(issues []core.Issue) []core.Issue {
	backedUp := make(map[string]bool)
	for _, path := range e.backup.Files() {
		backedUp[path] = true
	}

	var pending []core.Issue
	for _, issue := range issues {
		if !issue.IsFixed && backedUp[core.AbsolutePath(e.cfg.ProjectPath, issue.FilePath)] {
			pending = append(pending, issue)
		}
	}
	return pending
}

// =============================================================================
// Helpers
// =============================================================================

func (e *Engine) resolveProjectType() core.ProjectType {
	if e.cfg.ProjectType != core.ProjectTypeAuto {
		return e.cfg.ProjectType
	}
	pt := detect.Detect(e.cfg.ProjectPath)
	e.logger.Debug("detected project type %s", pt)
	return pt
}

func nonNilIssues(issues []core.Issue) []core.Issue {
	if issues == nil {
		return []core.Issue{}
	}
	return issues
}

func (e *Engine) toolContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.ToolTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.ToolTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) snapshotScanners() []core.Scanner {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return append([]core.Scanner(nil), e.scanners...)
}

func (e *Engine) snapshotFixers() []core.Fixer {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return append([]core.Fixer(nil), e.fixers...)
}

func (e *Engine) currentObserver() core.Observer {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.observer
}

func (e *Engine) recordIssues(summary severity.Summary) {
	counts := map[severity.Level]int{
		severity.Critical: summary.Critical,
		severity.High:     summary.High,
		severity.Medium:   summary.Medium,
		severity.Low:      summary.Low,
		severity.Info:     summary.Info(),
	}
	for level, n := range counts {
		e.metrics.CounterAdd(metrics.IssuesTotal.Name, float64(n), "severity", level.String())
		e.metrics.GaugeSet(metrics.IssuesCurrent.Name, float64(n), "severity", level.String())
	}
}

// setPhase records the phase, notifies the observer and logs the transition.
func (e *Engine) setPhase(phase core.ScanPhase) {
	e.stateMu.Lock()
	e.phase = phase
	o := e.observer
	e.stateMu.Unlock()

	if o != nil {
		o.OnPhaseChange(phase)
	}
	e.log(core.LogInfo, "Phase: "+string(phase))
}

func (e *Engine) log(level core.LogLevel, message string) {
	entry := core.NewLogEntry(level, message, "")
	if o := e.currentObserver(); o != nil {
		o.OnLog(entry)
	}
	core.LogToLogger(e.logger, entry)
}

func (e *Engine) progress(fraction float64) {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	if o := e.currentObserver(); o != nil {
		o.OnProgress(fraction)
	}
}
