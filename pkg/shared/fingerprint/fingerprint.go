// Package fingerprint derives stable identifiers for issues.
//
// Issue IDs are random per scan, so reports that are compared across runs
// (SARIF partial fingerprints, the history store, PR comment dedup) use a
// content hash instead. Paths are made relative to the project root so a
// fingerprint survives moving the checkout.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Version is reported next to fingerprints in SARIF output. Bump it when
// the algorithm changes.
const Version = "ohmybug/v1"

// Input contains the data needed to generate a fingerprint.
type Input struct {
	RuleID   string // Rule/check identifier
	FilePath string // Path relative to the project root
	Message  string // Issue message
	Line     int    // 0 when unknown
}

// Generate returns a SHA256 hash (64 hex characters) of the normalized input.
// The column and the scanner are left out: two tools reporting the same rule
// on the same line produce the same fingerprint.
func Generate(input Input) string {
	data := fmt.Sprintf("issue:%s:%s:%d:%s",
		normalize(input.FilePath),
		normalize(input.RuleID),
		input.Line,
		normalize(input.Message),
	)
	return Hash(data)
}

// Short returns the first 16 characters of a fingerprint, enough to key
// comments and log lines.
func Short(fp string) string {
	if len(fp) <= 16 {
		return fp
	}
	return fp[:16]
}

// Hash computes SHA256 hash of the input string.
// Returns 64 hex characters.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// normalize cleans up a string for consistent fingerprinting.
// - Trims whitespace
// - Converts to lowercase for case-insensitive matching
// - Normalizes path separators
func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "\\", "/")
	s = strings.TrimPrefix(s, "./")
	return s
}
