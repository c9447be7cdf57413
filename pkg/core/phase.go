package core

import (
	"time"

	"github.com/google/uuid"
)

// ScanPhase is one stage of the pipeline state machine.
type ScanPhase string

const (
	PhaseIdle     ScanPhase = "Idle"
	PhaseBuild    ScanPhase = "Build"
	PhaseTools    ScanPhase = "Tools"
	PhaseScan     ScanPhase = "Scan"
	PhaseAIFix    ScanPhase = "AI Fix"
	PhaseVerify   ScanPhase = "Verify"
	PhaseComplete ScanPhase = "Complete"
)

// Index returns the ordinal of the phase, used for progress rendering.
func (p ScanPhase) Index() int {
	switch p {
	case PhaseBuild:
		return 1
	case PhaseTools:
		return 2
	case PhaseScan:
		return 3
	case PhaseAIFix:
		return 4
	case PhaseVerify:
		return 5
	case PhaseComplete:
		return 6
	default:
		return 0
	}
}

// IsDone reports whether p comes before current in the phase order.
func (p ScanPhase) IsDone(current ScanPhase) bool {
	return p.Index() < current.Index()
}

// ActivePhases returns the phases shown in a progress indicator.
func ActivePhases() []ScanPhase {
	return []ScanPhase{PhaseBuild, PhaseTools, PhaseScan, PhaseAIFix, PhaseVerify}
}

// =============================================================================
// Log entries
// =============================================================================

// LogLevel is the level of an observer log entry.
type LogLevel string

const (
	LogDebug   LogLevel = "debug"
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
	LogSuccess LogLevel = "success"
)

// LogEntry is a structured log line emitted by the engine.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
}

// NewLogEntry creates a log entry stamped with the current time.
func NewLogEntry(level LogLevel, message, source string) LogEntry {
	return LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Source:    source,
	}
}
