// Package audit writes a JSON-lines trail of pipeline activity: phase
// changes, log entries, and the outcome of every scan, fix and rollback.
//
// The Logger implements core.Observer, so it can be attached to an engine
// directly or combined with other observers through core.MultiObserver.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exploopio/ohmybug/pkg/core"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Session events
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"

	// Engine events
	EventPhaseChange EventType = "phase_change"
	EventLog         EventType = "log"
	EventProgress    EventType = "progress"

	// Outcomes
	EventScanCompleted   EventType = "scan_completed"
	EventFixCompleted    EventType = "fix_completed"
	EventRolledBack      EventType = "rolled_back"
	EventBackupCleaned   EventType = "backup_cleaned"
	EventOperationFailed EventType = "operation_failed"
)

// Severity represents log severity level.
type Severity string

const (
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARN"
	SeverityError   Severity = "ERROR"
)

// Event is one line of the audit log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Severity  Severity       `json:"severity"`
	SessionID string         `json:"session_id"`
	Phase     string         `json:"phase,omitempty"`
	Message   string         `json:"message"`
	Source    string         `json:"source,omitempty"`
	Progress  *float64       `json:"progress,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// LoggerConfig configures the audit logger.
type LoggerConfig struct {
	// LogFile is the path to the audit log file.
	// Default: ~/.ohmybug/audit.log
	LogFile string

	// BufferSize is the number of events to buffer before flushing.
	// Default: 100
	BufferSize int

	// FlushInterval is how often Start flushes buffered events.
	// Default: 5 seconds
	FlushInterval time.Duration

	// RecordProgress also records progress updates, one event each.
	RecordProgress bool

	// Console receives a human-readable copy of every event (optional).
	Console io.Writer
}

// DefaultLoggerConfig returns sensible defaults.
func DefaultLoggerConfig() *LoggerConfig {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = os.TempDir()
	}
	return &LoggerConfig{
		LogFile:       filepath.Join(home, ".ohmybug", "audit.log"),
		BufferSize:    100,
		FlushInterval: 5 * time.Second,
	}
}

// Logger is the audit logger. Each Logger is one session; its ID is stamped
// on every event.
type Logger struct {
	config    *LoggerConfig
	sessionID string

	mu     sync.Mutex // guards file and closed
	file   *os.File
	closed bool

	bufferMu sync.Mutex
	buffer   []Event
	phase    core.ScanPhase

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewLogger opens (appending) the log file and records a session_start
// event.
func NewLogger(config *LoggerConfig) (*Logger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.LogFile == "" {
		config.LogFile = DefaultLoggerConfig().LogFile
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	if err := os.MkdirAll(filepath.Dir(config.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{
		config:    config,
		sessionID: uuid.NewString(),
		file:      file,
		buffer:    make([]Event, 0, config.BufferSize),
		phase:     core.PhaseIdle,
	}
	l.Log(Event{Type: EventSessionStart, Severity: SeverityInfo, Message: "Audit session started"})
	return l, nil
}

// SessionID returns the ID stamped on every event of this logger.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// Start begins background flushing.
func (l *Logger) Start() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.wg.Add(1)
	go l.flushLoop(l.stopCh)
}

// Stop records session_end, flushes and closes the file. The logger must
// not be used afterwards.
func (l *Logger) Stop() error {
	l.runMu.Lock()
	if l.running {
		l.running = false
		close(l.stopCh)
	}
	l.runMu.Unlock()
	l.wg.Wait()

	l.Log(Event{Type: EventSessionEnd, Severity: SeverityInfo, Message: "Audit session ended"})
	l.Flush()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Log records an event, filling in timestamp, session and current phase.
func (l *Logger) Log(event Event) {
	event.Timestamp = time.Now().UTC()
	event.SessionID = l.sessionID

	l.bufferMu.Lock()
	if event.Phase == "" {
		event.Phase = string(l.phase)
	}
	l.buffer = append(l.buffer, event)
	shouldFlush := len(l.buffer) >= l.config.BufferSize
	l.bufferMu.Unlock()

	if l.config.Console != nil {
		l.printEvent(event)
	}
	if shouldFlush {
		l.Flush()
	}
}

// Flush writes buffered events to disk.
func (l *Logger) Flush() {
	l.bufferMu.Lock()
	if len(l.buffer) == 0 {
		l.bufferMu.Unlock()
		return
	}
	events := l.buffer
	l.buffer = make([]Event, 0, l.config.BufferSize)
	l.bufferMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = l.file.Write(append(data, '\n'))
	}
	_ = l.file.Sync()
}

func (l *Logger) flushLoop(stop <-chan struct{}) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Flush()
		}
	}
}

func (l *Logger) printEvent(event Event) {
	ts := event.Timestamp.Local().Format("2006-01-02 15:04:05")
	fmt.Fprintf(l.config.Console, "[%s] [%s] %s: %s\n", ts, event.Severity, event.Type, event.Message)
	if event.Error != "" {
		fmt.Fprintf(l.config.Console, "  Error: %s\n", event.Error)
	}
}

// =============================================================================
// core.Observer
// =============================================================================

// OnPhaseChange records the transition and tags later events with phase.
func (l *Logger) OnPhaseChange(phase core.ScanPhase) {
	l.bufferMu.Lock()
	from := l.phase
	l.phase = phase
	l.bufferMu.Unlock()

	l.Log(Event{
		Type:     EventPhaseChange,
		Severity: SeverityInfo,
		Phase:    string(phase),
		Message:  fmt.Sprintf("Phase: %s -> %s", from, phase),
	})
}

// OnLog records an engine log entry.
func (l *Logger) OnLog(entry core.LogEntry) {
	l.Log(Event{
		Type:     EventLog,
		Severity: severityOf(entry.Level),
		Message:  entry.Message,
		Source:   entry.Source,
		Details:  map[string]any{"level": string(entry.Level), "entry_id": entry.ID},
	})
}

// OnProgress records progress when RecordProgress is set.
func (l *Logger) OnProgress(fraction float64) {
	if !l.config.RecordProgress {
		return
	}
	l.Log(Event{
		Type:     EventProgress,
		Severity: SeverityDebug,
		Message:  fmt.Sprintf("%.0f%%", fraction*100),
		Progress: &fraction,
	})
}

func severityOf(level core.LogLevel) Severity {
	switch level {
	case core.LogDebug:
		return SeverityDebug
	case core.LogWarning:
		return SeverityWarning
	case core.LogError:
		return SeverityError
	default:
		return SeverityInfo
	}
}

// =============================================================================
// Outcomes
// =============================================================================

// ScanCompleted records a scan report summary.
func (l *Logger) ScanCompleted(report *core.ScanReport) {
	if report == nil {
		return
	}
	s := report.Summary()
	details := map[string]any{
		"project_path":   report.ProjectPath,
		"total":          s.Total,
		"critical":       s.Critical,
		"high":           s.High,
		"medium":         s.Medium,
		"low":            s.Low,
		"affected_files": len(report.AffectedFiles),
		"duration_ms":    report.Duration().Milliseconds(),
	}
	if report.BuildSucceeded != nil {
		details["build_succeeded"] = *report.BuildSucceeded
	}
	l.Log(Event{
		Type:     EventScanCompleted,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Scan complete: %d issues in %d files", s.Total, len(report.AffectedFiles)),
		Details:  details,
	})
}

// FixCompleted records a pipeline report summary. A failed post-fix build
// is recorded as a warning.
func (l *Logger) FixCompleted(report *core.PipelineReport) {
	if report == nil {
		return
	}
	fixed := 0
	for _, r := range report.FixResults {
		fixed += r.FixedIssueCount
	}
	details := map[string]any{
		"project_path": report.ProjectPath,
		"before":       report.BeforeIssues.Total,
		"after":        report.AfterIssues.Total,
		"reduction":    report.ReductionPercentage(),
		"fixed":        fixed,
		"fixers":       len(report.FixResults),
		"duration_ms":  report.Duration().Milliseconds(),
	}
	sev := SeverityInfo
	if report.BuildSucceeded != nil {
		details["build_succeeded"] = *report.BuildSucceeded
		if !*report.BuildSucceeded {
			sev = SeverityWarning
		}
	}
	l.Log(Event{
		Type:     EventFixCompleted,
		Severity: sev,
		Message:  fmt.Sprintf("Fix complete: %d -> %d issues", report.BeforeIssues.Total, report.AfterIssues.Total),
		Details:  details,
	})
}

// RolledBack records a rollback and how many files it restored.
func (l *Logger) RolledBack(restored int, err error) {
	event := Event{
		Type:     EventRolledBack,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("Rolled back %d files", restored),
		Details:  map[string]any{"restored": restored},
	}
	if err != nil {
		event.Severity = SeverityError
		event.Error = err.Error()
	}
	l.Log(event)
}

// BackupCleaned records the removal of the backup snapshot.
func (l *Logger) BackupCleaned(err error) {
	event := Event{Type: EventBackupCleaned, Severity: SeverityInfo, Message: "Backup removed"}
	if err != nil {
		event.Severity = SeverityError
		event.Error = err.Error()
	}
	l.Log(event)
}

// Failed records a hard failure of an operation.
func (l *Logger) Failed(operation string, err error) {
	event := Event{
		Type:     EventOperationFailed,
		Severity: SeverityError,
		Message:  operation + " failed",
		Details:  map[string]any{"operation": operation},
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

var _ core.Observer = (*Logger)(nil)
