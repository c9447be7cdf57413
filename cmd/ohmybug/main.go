// OhMyBug - multi-tool check and fix runner
//
// Usage:
//
//	ohmybug [check] [flags] [path]     scan, optionally fix, and report
//	ohmybug history [flags] [path]     list recorded runs
//	ohmybug doctor [flags] [path]      check installed tools and settings
//
// Examples:
//
//	ohmybug .
//	ohmybug -fix -format markdown -output report.md ./app
//	ohmybug -format sarif -output results.sarif -comments
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exploopio/ohmybug/pkg/audit"
	"github.com/exploopio/ohmybug/pkg/backup"
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/fixers/ai"
	"github.com/exploopio/ohmybug/pkg/gitenv"
	"github.com/exploopio/ohmybug/pkg/history"
	"github.com/exploopio/ohmybug/pkg/metrics"
	"github.com/exploopio/ohmybug/pkg/pipeline"
	"github.com/exploopio/ohmybug/pkg/report"
	"github.com/exploopio/ohmybug/pkg/scanners"
	"github.com/exploopio/ohmybug/pkg/strategy"
)

const (
	appName    = "ohmybug"
	appVersion = report.ToolVersion

	rollbackTimeout = 2 * time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "history":
			return runHistory(ctx, args[1:], stdout, stderr)
		case "doctor":
			return runDoctor(ctx, args[1:], stdout, stderr)
		case "check":
			args = args[1:]
		}
	}
	return runCheck(ctx, args, stdout, stderr)
}

// checkOptions are the parsed flags of the check command.
type checkOptions struct {
	format      string
	output      string
	fix         bool
	verbose     bool
	aiKey       string
	configPath  string
	projectType string
	noBuild     bool
	toolTimeout time.Duration
	auditLog    string
	historyDB   string
	metricsFile string
	comments    bool
	maxComments int
	keepBackup  bool
	version     bool
	path        string

	set map[string]bool
}

func parseCheckFlags(args []string, stderr io.Writer) (*checkOptions, error) {
	o := &checkOptions{set: make(map[string]bool)}

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.format, "format", "text", "Report format: text, markdown, json, sarif, html")
	fs.StringVar(&o.output, "output", "", "Write the report to a file instead of stdout")
	fs.BoolVar(&o.fix, "fix", false, "Apply fixes after scanning (with backup and build verification)")
	fs.BoolVar(&o.verbose, "verbose", false, "Verbose output")
	fs.StringVar(&o.aiKey, "ai-key", "", "API key for the AI fixer (or OHMYBUG_AI_KEY env)")
	fs.StringVar(&o.configPath, "config", "", "Path to config file")
	fs.StringVar(&o.projectType, "type", "", "Project type: auto, swift, flutter, javascript, python, go, mixed")
	fs.BoolVar(&o.noBuild, "no-build", false, "Skip the build check")
	fs.DurationVar(&o.toolTimeout, "tool-timeout", 0, "Timeout per tool invocation (0 = none)")
	fs.StringVar(&o.auditLog, "audit-log", "", "Append a JSON-lines audit trail to this file")
	fs.StringVar(&o.historyDB, "history-db", "", "Record the run in this SQLite history database")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	fs.BoolVar(&o.comments, "comments", false, "Create PR/MR inline comments for issues")
	fs.IntVar(&o.maxComments, "max-comments", gitenv.DefaultMaxComments, "Maximum number of PR/MR comments")
	fs.BoolVar(&o.keepBackup, "keep-backup", false, "Keep the backup snapshot after fixing")
	fs.BoolVar(&o.version, "version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	switch fs.NArg() {
	case 0:
		o.path = "."
	case 1:
		o.path = fs.Arg(0)
	default:
		return nil, fmt.Errorf("expected at most one project path, got %d", fs.NArg())
	}
	return o, nil
}

// merge applies the flags that were set explicitly on top of cfg.
func (o *checkOptions) merge(cfg *Config) {
	if o.set["type"] {
		cfg.ProjectType = o.projectType
	}
	if o.noBuild {
		cfg.RunBuildCheck = new(bool)
	}
	if o.set["tool-timeout"] {
		cfg.ToolTimeout = o.toolTimeout
	}
	if o.verbose {
		cfg.Verbose = true
	}
	if key := getEnvOrFlag(o.aiKey, "OHMYBUG_AI_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if o.set["audit-log"] {
		cfg.AuditLog = o.auditLog
	}
	if o.set["history-db"] {
		cfg.HistoryDB = o.historyDB
	}
	if o.set["metrics-file"] {
		cfg.MetricsFile = o.metricsFile
	}
	if o.comments {
		cfg.Comments.Enabled = true
	}
	if o.set["max-comments"] || cfg.Comments.Max <= 0 {
		cfg.Comments.Max = o.maxComments
	}
	if o.keepBackup {
		cfg.Backup.Keep = true
	}
}

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseCheckFlags(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if opts.version {
		fmt.Fprintf(stdout, "%s version %s\n", appName, appVersion)
		return 0
	}

	var cfg Config
	if opts.configPath != "" {
		if err := loadConfig(opts.configPath, &cfg); err != nil {
			fmt.Fprintf(stderr, "Error loading config: %v\n", err)
			return 1
		}
	}
	opts.merge(&cfg)

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	projectPath, err := core.ResolveProjectPath(opts.path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	projectCfg, err := cfg.projectConfig(projectPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	a, err := newApp(&cfg, projectCfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	return a.check(ctx, opts.fix, format, opts.output, stdout)
}

// app holds everything one check invocation wires together.
type app struct {
	cfg     *Config
	project core.ProjectConfig
	logger  core.Logger
	stderr  io.Writer

	engine  *pipeline.Engine
	prom    *metrics.PrometheusCollector
	audit   *audit.Logger
	history *history.Store
	env     gitenv.Env
}

func newApp(cfg *Config, project core.ProjectConfig, stderr io.Writer) (*app, error) {
	a := &app{
		cfg:     cfg,
		project: project,
		logger:  core.LoggerFromVerbose("[ohmybug] ", cfg.Verbose),
		stderr:  stderr,
	}

	var collector metrics.Collector = &metrics.NopCollector{}
	if cfg.MetricsFile != "" {
		a.prom = metrics.NewPrometheusCollector(&metrics.PrometheusConfig{RegisterDefaultMetrics: true})
		collector = a.prom
	}

	observers := core.MultiObserver{a.consoleObserver()}
	if cfg.AuditLog != "" {
		l, err := audit.NewLogger(&audit.LoggerConfig{LogFile: cfg.AuditLog})
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		l.Start()
		a.audit = l
		observers = append(observers, l)
	}

	if cfg.HistoryDB != "" {
		store, err := history.Open(&history.Config{DatabasePath: cfg.HistoryDB})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.history = store
	}

	algo, err := cfg.backupCompression()
	if err != nil {
		a.close()
		return nil, err
	}
	backupOpts := []backup.Option{
		backup.WithCompression(algo),
		backup.WithMinFreeBytes(cfg.backupMinFreeBytes()),
		backup.WithLogger(a.logger),
	}
	if cfg.Backup.Dir != "" {
		backupOpts = append(backupOpts, backup.WithBaseDir(cfg.Backup.Dir))
	}

	a.engine = pipeline.NewEngine(project,
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(collector),
		pipeline.WithObserver(observers),
		pipeline.WithBackupManager(backup.NewManager(project.ProjectPath, backupOpts...)),
	)

	n := scanners.RegisterDefaults(a.engine, project, scanners.Options{
		Logger:   a.logger,
		Verbose:  cfg.Verbose,
		Binaries: cfg.Binaries,
	})
	a.logger.Debug("registered %d scanners", n)

	if project.AIAPIKey != "" {
		aiCfg := cfg.AI
		aiCfg.APIKey = project.AIAPIKey
		fixer, err := ai.New(aiCfg, project.MaxAIIssues,
			ai.WithClientMetrics(collector),
			ai.WithClientLogger(a.logger),
		)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create AI fixer: %w", err)
		}
		a.engine.RegisterFixer(fixer)
	}

	a.env = gitenv.DetectFromDirectory(project.ProjectPath, a.logger)
	return a, nil
}

// consoleObserver prints phase changes and warnings to stderr; everything
// else goes through the logger.
func (a *app) consoleObserver() core.Observer {
	return core.ObserverFuncs{
		PhaseChange: func(phase core.ScanPhase) {
			if phase != core.PhaseIdle {
				fmt.Fprintf(a.stderr, "==> %s\n", phase)
			}
		},
		Log: func(entry core.LogEntry) {
			switch entry.Level {
			case core.LogWarning, core.LogError:
				if entry.Source != "" {
					fmt.Fprintf(a.stderr, "    [%s] %s\n", entry.Source, entry.Message)
				} else {
					fmt.Fprintf(a.stderr, "    %s\n", entry.Message)
				}
			default:
				core.LogToLogger(a.logger, entry)
			}
		},
	}
}

func (a *app) close() {
	if a.prom != nil && a.cfg.MetricsFile != "" {
		if err := a.prom.WriteTextfile(a.cfg.MetricsFile); err != nil {
			fmt.Fprintf(a.stderr, "Warning: write metrics: %v\n", err)
		}
	}
	if a.history != nil {
		a.history.Close()
	}
	if a.audit != nil {
		a.audit.Stop()
	}
}

func (a *app) check(ctx context.Context, fix bool, format report.Format, output string, stdout io.Writer) int {
	scan, err := a.engine.Scan(ctx)
	if err != nil {
		a.failed("scan", err)
		return 1
	}
	if a.audit != nil {
		a.audit.ScanCompleted(scan)
	}
	a.record(func(s *history.Store, opts ...history.SaveOption) (string, error) {
		return s.SaveScan(ctx, scan, opts...)
	})

	var rendered string
	if !fix {
		if rendered, err = report.FormatScan(scan, format); err != nil {
			a.failed("report", err)
			return 1
		}
	} else if rendered, err = a.fix(ctx, format); err != nil {
		a.failed("fix", err)
		return 1
	}

	if err := a.write(rendered, output, stdout); err != nil {
		a.failed("write report", err)
		return 1
	}

	if a.cfg.Comments.Enabled {
		a.postComments(ctx)
	}
	return 0
}

// fix runs the fix pass and removes the backup unless asked to keep it. A
// fix pass that fails after the snapshot, or whose post-fix build fails, is
// rolled back first.
func (a *app) fix(ctx context.Context, format report.Format) (string, error) {
	result, err := a.engine.Fix(ctx)
	if err != nil {
		if a.engine.CanRollback() {
			fmt.Fprintln(a.stderr, "Fix did not complete, rolling back")
			a.rollback()
		}
		return "", err
	}
	if a.audit != nil {
		a.audit.FixCompleted(result)
	}
	a.record(func(s *history.Store, opts ...history.SaveOption) (string, error) {
		return s.SaveFix(ctx, result, opts...)
	})

	keep := a.cfg.Backup.Keep
	if result.BuildSucceeded != nil && !*result.BuildSucceeded {
		fmt.Fprintln(a.stderr, "Build failed after fixing, rolling back")
		if !a.rollback() {
			keep = true
		}
	}

	if !keep {
		err := a.engine.CleanupBackup()
		if a.audit != nil {
			a.audit.BackupCleaned(err)
		}
		if err != nil {
			fmt.Fprintf(a.stderr, "Warning: cleanup backup: %v\n", err)
		}
	}

	return report.FormatPipeline(result, format)
}

// rollback restores the snapshot on a context of its own, so an interrupt
// that stopped the fix does not also stop the restore. A failed rollback
// leaves the snapshot in place and prints where it is.
func (a *app) rollback() bool {
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()

	n, err := a.engine.Rollback(ctx)
	if a.audit != nil {
		a.audit.RolledBack(n, err)
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "Warning: rollback: %v\n", err)
		fmt.Fprintf(a.stderr, "Backup kept at %s\n", a.engine.BackupLocation())
		return false
	}
	fmt.Fprintf(a.stderr, "Restored %d files\n", n)
	return true
}

func (a *app) record(save func(*history.Store, ...history.SaveOption) (string, error)) {
	if a.history == nil {
		return
	}
	var opts []history.SaveOption
	if a.env != nil {
		opts = append(opts, history.WithRef(a.env.CommitBranch(), a.env.CommitSha()))
	}
	id, err := save(a.history, opts...)
	if err != nil {
		fmt.Fprintf(a.stderr, "Warning: record history: %v\n", err)
		return
	}
	a.logger.Debug("recorded run %s", id)
}

func (a *app) postComments(ctx context.Context) {
	if a.env == nil || a.env.MergeRequestID() == "" {
		fmt.Fprintln(a.stderr, "Warning: not in a pull request or merge request, skipping comments")
		return
	}
	c := gitenv.NewCommenter(a.env,
		gitenv.WithMaxComments(a.cfg.Comments.Max),
		gitenv.WithCommenterLogger(a.logger),
	)
	scope, changed := strategy.Determine(ctx, &strategy.Context{
		Env:      a.env,
		RepoPath: a.project.ProjectPath,
		Logger:   a.logger,
	})
	a.logger.Debug("comment scope: %s", scope)
	scan := strategy.Scoped(a.engine.LastScanReport(), scope, a.project.ProjectPath, changed)

	stats, err := c.Post(ctx, scan)
	if err != nil {
		fmt.Fprintf(a.stderr, "Warning: comments: %v\n", err)
		return
	}
	fmt.Fprintf(a.stderr, "Comments: %d posted, %d failed, %d skipped\n", stats.Posted, stats.Failed, stats.Skipped)
}

func (a *app) write(rendered, output string, stdout io.Writer) error {
	if output == "" {
		_, err := io.WriteString(stdout, rendered)
		return err
	}
	if err := report.WriteFile(output, rendered); err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "Report written to %s\n", output)
	return nil
}

func (a *app) failed(operation string, err error) {
	if a.audit != nil {
		a.audit.Failed(operation, err)
	}
	fmt.Fprintf(a.stderr, "Error: %s: %v\n", operation, err)
}
