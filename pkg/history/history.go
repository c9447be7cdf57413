// Package history keeps a local record of scan and fix runs in SQLite so a
// project's issue counts can be followed over time.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/exploopio/ohmybug/pkg/compress"
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/errors"
	"github.com/exploopio/ohmybug/pkg/normalize"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// Kind is the kind of a recorded run.
type Kind string

const (
	KindScan Kind = "scan"
	KindFix  Kind = "fix"
)

// ErrRunNotFound is returned by LoadIssues for an unknown run ID.
var ErrRunNotFound = errors.E(errors.KindInvalidInput, "history", "run not found")

// Config configures the history store.
type Config struct {
	// DatabasePath is the SQLite file.
	// Default: ~/.ohmybug/history.db
	DatabasePath string

	// Compression is applied to the stored issue lists.
	// Default: zstd
	Compression compress.Algorithm
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = os.TempDir()
	}
	return &Config{
		DatabasePath: filepath.Join(home, ".ohmybug", "history.db"),
		Compression:  compress.AlgorithmZSTD,
	}
}

// Run is one recorded scan or fix.
type Run struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	ProjectPath string    `json:"projectPath"`
	Branch      string    `json:"branch,omitempty"`
	Commit      string    `json:"commit,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`

	// Before and After are the issue counts at the start and end of the run.
	// They are equal for scan runs.
	Before severity.Summary `json:"before"`
	After  severity.Summary `json:"after"`

	FixedIssues    int   `json:"fixedIssues"`
	BuildSucceeded *bool `json:"buildSucceeded,omitempty"`
}

// SaveOption sets optional run metadata.
type SaveOption func(*Run)

// WithRef records the branch and commit the run was made on.
func WithRef(branch, commit string) SaveOption {
	return func(r *Run) {
		r.Branch = branch
		r.Commit = commit
	}
}

// Store is a SQLite-backed run history. It is safe for concurrent use.
type Store struct {
	db         *sql.DB
	mu         sync.RWMutex
	compressor *compress.Compressor
	cfg        *Config
}

// Open opens (creating if needed) the history database.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultConfig().DatabasePath
	}
	if cfg.Compression == "" {
		cfg.Compression = compress.AlgorithmZSTD
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, errors.IO("history.Open", "create database directory", err)
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, errors.IO("history.Open", "open database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{
		db:         db,
		compressor: compress.NewCompressor(cfg.Compression, compress.LevelDefault),
		cfg:        cfg,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		project_path TEXT NOT NULL,
		branch TEXT NOT NULL DEFAULT '',
		commit_sha TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL,
		before_total INTEGER NOT NULL,
		before_critical INTEGER NOT NULL,
		before_high INTEGER NOT NULL,
		before_medium INTEGER NOT NULL,
		before_low INTEGER NOT NULL,
		after_total INTEGER NOT NULL,
		after_critical INTEGER NOT NULL,
		after_high INTEGER NOT NULL,
		after_medium INTEGER NOT NULL,
		after_low INTEGER NOT NULL,
		fixed_issues INTEGER NOT NULL DEFAULT 0,
		build_succeeded INTEGER
	);

	CREATE TABLE IF NOT EXISTS run_issues (
		run_id TEXT PRIMARY KEY,
		compression TEXT NOT NULL,
		data BLOB NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_path, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveScan records a scan report and its issues. It returns the run ID.
func (s *Store) SaveScan(ctx context.Context, report *core.ScanReport, opts ...SaveOption) (string, error) {
	if report == nil {
		return "", errors.ErrNoScanReport
	}
	summary := report.Summary()
	run := &Run{
		Kind:           KindScan,
		ProjectPath:    report.ProjectPath,
		StartedAt:      report.StartedAt,
		CompletedAt:    report.CompletedAt,
		Before:         summary,
		After:          summary,
		BuildSucceeded: report.BuildSucceeded,
	}
	return s.save(ctx, run, report.Issues, opts)
}

// SaveFix records a pipeline report and the issues left after the fix.
func (s *Store) SaveFix(ctx context.Context, report *core.PipelineReport, opts ...SaveOption) (string, error) {
	if report == nil {
		return "", errors.InvalidInput("history.SaveFix", "nil pipeline report")
	}
	fixed := 0
	for _, r := range report.FixResults {
		fixed += r.FixedIssueCount
	}
	run := &Run{
		Kind:           KindFix,
		ProjectPath:    report.ProjectPath,
		StartedAt:      report.StartedAt,
		CompletedAt:    report.CompletedAt,
		Before:         report.BeforeIssues,
		After:          report.AfterIssues,
		FixedIssues:    fixed,
		BuildSucceeded: report.BuildSucceeded,
	}
	return s.save(ctx, run, normalize.Remaining(report), opts)
}

func (s *Store) save(ctx context.Context, run *Run, issues []core.Issue, opts []SaveOption) (string, error) {
	for _, opt := range opts {
		opt(run)
	}
	run.ID = uuid.NewString()

	if issues == nil {
		issues = []core.Issue{}
	}
	raw, err := json.Marshal(issues)
	if err != nil {
		return "", fmt.Errorf("marshal issues: %w", err)
	}
	blob, err := s.compressor.Compress(raw)
	if err != nil {
		return "", fmt.Errorf("compress issues: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var build sql.NullBool
	if run.BuildSucceeded != nil {
		build = sql.NullBool{Bool: *run.BuildSucceeded, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, kind, project_path, branch, commit_sha, started_at, completed_at,
			before_total, before_critical, before_high, before_medium, before_low,
			after_total, after_critical, after_high, after_medium, after_low,
			fixed_issues, build_succeeded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, string(run.Kind), run.ProjectPath, run.Branch, run.Commit,
		run.StartedAt.UnixNano(), run.CompletedAt.UnixNano(),
		run.Before.Total, run.Before.Critical, run.Before.High, run.Before.Medium, run.Before.Low,
		run.After.Total, run.After.Critical, run.After.High, run.After.Medium, run.After.Low,
		run.FixedIssues, build,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_issues (run_id, compression, data) VALUES (?, ?, ?)`,
		run.ID, string(s.compressor.Algorithm()), blob,
	)
	if err != nil {
		return "", fmt.Errorf("insert run issues: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs first. An empty project lists runs
// of every project; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, project string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, kind, project_path, branch, commit_sha, started_at, completed_at,
			before_total, before_critical, before_high, before_medium, before_low,
			after_total, after_critical, after_high, after_medium, after_low,
			fixed_issues, build_succeeded
		FROM runs`
	var args []any
	if project != "" {
		query += ` WHERE project_path = ?`
		args = append(args, project)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r              Run
			kind           string
			started, ended int64
			build          sql.NullBool
		)
		if err := rows.Scan(
			&r.ID, &kind, &r.ProjectPath, &r.Branch, &r.Commit, &started, &ended,
			&r.Before.Total, &r.Before.Critical, &r.Before.High, &r.Before.Medium, &r.Before.Low,
			&r.After.Total, &r.After.Critical, &r.After.High, &r.After.Medium, &r.After.Low,
			&r.FixedIssues, &build,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Kind = Kind(kind)
		r.StartedAt = time.Unix(0, started)
		r.CompletedAt = time.Unix(0, ended)
		if build.Valid {
			r.BuildSucceeded = core.BoolPtr(build.Bool)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadIssues returns the issues stored with a run.
func (s *Store) LoadIssues(ctx context.Context, runID string) ([]core.Issue, error) {
	s.mu.RLock()
	var (
		algo string
		blob []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT compression, data FROM run_issues WHERE run_id = ?`, runID,
	).Scan(&algo, &blob)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run issues: %w", err)
	}

	c := s.compressor
	if compress.Algorithm(algo) != c.Algorithm() {
		a, err := compress.ParseAlgorithm(algo)
		if err != nil {
			return nil, err
		}
		c = compress.NewCompressor(a, compress.LevelDefault)
	}
	raw, err := c.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("decompress issues: %w", err)
	}

	var issues []core.Issue
	if err := json.Unmarshal(raw, &issues); err != nil {
		return nil, fmt.Errorf("unmarshal issues: %w", err)
	}
	return issues, nil
}

// Prune deletes runs started more than maxAge ago and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_issues WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff,
	); err != nil {
		return 0, fmt.Errorf("delete run issues: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
