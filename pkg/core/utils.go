package core

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// Path Utilities
// =============================================================================

// RelativePath returns path relative to root when path lies under root,
// otherwise path unchanged. Used for report URIs and PR comments.
func RelativePath(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	root = strings.TrimSuffix(root, "/")
	if strings.HasPrefix(path, root+"/") {
		return path[len(root)+1:]
	}
	if !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// AbsolutePath resolves a tool-reported path against the project root.
func AbsolutePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// =============================================================================
// String Utilities
// =============================================================================

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// =============================================================================
// Masking Utilities
// =============================================================================

// MaskAPIKey masks an API key.
func MaskAPIKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
