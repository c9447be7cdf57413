// Package severity provides the issue severity scale shared by scanners,
// the normalizer and the report formatters.
package severity

import "strings"

// Level represents the severity of an issue.
type Level string

const (
	// Critical - breaks the build or is certainly a bug.
	Critical Level = "critical"

	// High - very likely a defect, fix before shipping.
	High Level = "high"

	// Medium - code smell or likely defect.
	Medium Level = "medium"

	// Low - style or minor quality issue.
	Low Level = "low"

	// Info - informational finding.
	Info Level = "info"

	// Unknown - severity could not be determined from tool output.
	Unknown Level = "unknown"
)

// AllLevels returns the known severity levels in order of priority (highest first).
func AllLevels() []Level {
	return []Level{Critical, High, Medium, Low, Info}
}

// String returns the string representation of the severity level.
func (l Level) String() string {
	return string(l)
}

// Priority returns the numeric weight of the level.
// Higher numbers = higher priority.
func (l Level) Priority() int {
	switch l {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// Weight is an alias of Priority.
func (l Level) Weight() int {
	return l.Priority()
}

// IsValid reports whether l is one of the five known levels.
func (l Level) IsValid() bool {
	return l.Priority() > 0
}

// IsHigherThan returns true if this severity is higher than the other.
func (l Level) IsHigherThan(other Level) bool {
	return l.Priority() > other.Priority()
}

// IsAtLeast returns true if this severity is at least as high as the other.
func (l Level) IsAtLeast(other Level) bool {
	return l.Priority() >= other.Priority()
}

// SARIFLevel maps the severity onto a SARIF 2.1.0 result level.
func (l Level) SARIFLevel() string {
	switch l {
	case Critical, High:
		return "error"
	case Medium:
		return "warning"
	default:
		return "note"
	}
}

// FromString normalizes the severity vocabularies of different tools to a Level.
//   - ESLint: 2 (error), 1 (warning)
//   - golangci-lint: error, warning
//   - SARIF: error, warning, note
func FromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL", "CRIT", "FATAL", "BLOCKER":
		return Critical
	case "HIGH", "ERROR", "SEVERE", "MAJOR", "2":
		return High
	case "MEDIUM", "MODERATE", "WARNING", "WARN", "MED", "1":
		return Medium
	case "LOW", "MINOR", "STYLE", "CONVENTION":
		return Low
	case "INFO", "INFORMATIONAL", "NOTE", "NONE", "HINT":
		return Info
	default:
		return Unknown
	}
}

// Compare returns:
//
//	-1 if a < b (a is lower severity)
//	 0 if a == b
//	+1 if a > b (a is higher severity)
func Compare(a, b Level) int {
	pa, pb := a.Priority(), b.Priority()
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	default:
		return 0
	}
}

// Max returns the higher severity of two levels.
func Max(a, b Level) Level {
	if a.IsHigherThan(b) {
		return a
	}
	return b
}

// Min returns the lower severity of two levels.
func Min(a, b Level) Level {
	if a.IsHigherThan(b) {
		return b
	}
	return a
}

// Summary counts issues by severity. Info and unknown issues only
// contribute to Total.
type Summary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add counts one issue of the given level.
func (s *Summary) Add(level Level) {
	s.Total++
	switch level {
	case Critical:
		s.Critical++
	case High:
		s.High++
	case Medium:
		s.Medium++
	case Low:
		s.Low++
	}
}

// Info returns the number of issues counted in Total but not in any tracked bucket.
func (s Summary) Info() int {
	return s.Total - s.Critical - s.High - s.Medium - s.Low
}

// Highest returns the highest severity with a non-zero count.
func (s Summary) Highest() Level {
	switch {
	case s.Critical > 0:
		return Critical
	case s.High > 0:
		return High
	case s.Medium > 0:
		return Medium
	case s.Low > 0:
		return Low
	case s.Total > 0:
		return Info
	default:
		return Unknown
	}
}

// SummaryOf builds a Summary from a list of levels.
func SummaryOf(levels []Level) Summary {
	var s Summary
	for _, l := range levels {
		s.Add(l)
	}
	return s
}
