// Package detect inspects a project directory: which language stacks it
// uses, where its buildable targets are, and which source files it holds.
package detect

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
)

// SkipDirs are directory names never descended into.
var SkipDirs = []string{
	"node_modules",
	".git",
	".build",
	"DerivedData",
	"build",
	".dart_tool",
	".pub-cache",
	"Pods",
	"vendor",
	".venv",
}

// IsSkippedDir reports whether a directory with the given base name is skipped.
func IsSkippedDir(name string) bool {
	return slices.Contains(SkipDirs, name)
}

// Detect returns the project type of the directory at path. More than one
// matching stack gives ProjectTypeMixed; none gives ProjectTypeAuto.
func Detect(path string) core.ProjectType {
	entries, _ := os.ReadDir(path)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	has := func(name string) bool { return slices.Contains(names, name) }
	hasSuffix := func(suffix string) bool {
		return slices.ContainsFunc(names, func(n string) bool { return strings.HasSuffix(n, suffix) })
	}

	var found []core.ProjectType
	if has("Package.swift") || hasSuffix(".xcodeproj") || hasSuffix(".xcworkspace") {
		found = append(found, core.ProjectTypeSwift)
	}
	if has("package.json") || has("tsconfig.json") {
		found = append(found, core.ProjectTypeJavaScript)
	}
	if has("pubspec.yaml") {
		found = append(found, core.ProjectTypeFlutter)
	}
	if has("pyproject.toml") || has("requirements.txt") || has("setup.py") {
		found = append(found, core.ProjectTypePython)
	}
	if has("go.mod") {
		found = append(found, core.ProjectTypeGo)
	}

	switch len(found) {
	case 0:
		return core.ProjectTypeAuto
	case 1:
		return found[0]
	default:
		return core.ProjectTypeMixed
	}
}

// =============================================================================
// Build targets
// =============================================================================

// BuildKind identifies the build system of a target.
type BuildKind string

const (
	BuildKindPubspec   BuildKind = "pubspec"
	BuildKindSPM       BuildKind = "spm"
	BuildKindXcodeproj BuildKind = "xcodeproj"
	BuildKindGo        BuildKind = "gomod"
	BuildKindNPM       BuildKind = "npm"
	BuildKindPython    BuildKind = "python"
)

// BuildTarget is a directory with a build command.
type BuildTarget struct {
	Path    string
	Kind    BuildKind
	Command string
}

// Name returns the directory name of the target.
func (t BuildTarget) Name() string {
	return filepath.Base(t.Path)
}

// FindBuildTargets returns the buildable targets of a project. The root is
// checked first; only when it has no target are its first-level
// subdirectories checked, in name order.
func FindBuildTargets(root string) []BuildTarget {
	if t, ok := buildTargetAt(root); ok {
		return []BuildTarget{t}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var targets []BuildTarget
	for _, e := range entries {
		if !e.IsDir() || IsSkippedDir(e.Name()) {
			continue
		}
		if t, ok := buildTargetAt(filepath.Join(root, e.Name())); ok {
			targets = append(targets, t)
		}
	}
	return targets
}

// buildTargetAt picks one build command for dir, first match wins.
func buildTargetAt(dir string) (BuildTarget, bool) {
	exists := func(name string) bool {
		_, err := os.Stat(filepath.Join(dir, name))
		return err == nil
	}

	switch {
	case exists("pubspec.yaml"):
		return BuildTarget{Path: dir, Kind: BuildKindPubspec, Command: "flutter analyze --no-pub"}, true
	case exists("Package.swift"):
		return BuildTarget{Path: dir, Kind: BuildKindSPM, Command: "swift build"}, true
	case hasEntrySuffix(dir, ".xcodeproj"):
		return BuildTarget{Path: dir, Kind: BuildKindXcodeproj, Command: "xcodebuild -project *.xcodeproj -scheme * build 2>&1 | tail -50"}, true
	case exists("go.mod"):
		return BuildTarget{Path: dir, Kind: BuildKindGo, Command: "go build ./..."}, true
	case exists("package.json"):
		return BuildTarget{Path: dir, Kind: BuildKindNPM, Command: "npm run build --if-present"}, true
	case exists("pyproject.toml"), exists("setup.py"):
		return BuildTarget{Path: dir, Kind: BuildKindPython, Command: "python3 -m compileall -q ."}, true
	}
	return BuildTarget{}, false
}

func hasEntrySuffix(dir, suffix string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			return true
		}
	}
	return false
}

// =============================================================================
// Source files
// =============================================================================

// Extensions per project type, without the leading dot.
var (
	SwiftExtensions      = []string{"swift"}
	JavaScriptExtensions = []string{"js", "jsx", "ts", "tsx", "mjs", "cjs"}
	DartExtensions       = []string{"dart"}
	PythonExtensions     = []string{"py"}
	GoExtensions         = []string{"go"}
)

// FindFiles returns the absolute paths of files under root with one of the
// given extensions, skipping SkipDirs. Unreadable directories are ignored.
func FindFiles(root string, extensions ...string) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && IsSkippedDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if ext != "" && slices.Contains(extensions, ext) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// CountFiles returns the number of files FindFiles would return.
func CountFiles(root string, extensions ...string) int {
	return len(FindFiles(root, extensions...))
}
