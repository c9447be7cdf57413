package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// =============================================================================
// Tool invocation - runs external processes for scanners, fixers and builds
// =============================================================================

// ExecResult is the captured outcome of one process run.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Succeeded reports whether the process exited with status 0.
func (r *ExecResult) Succeeded() bool {
	return r.ExitCode == 0
}

// Output returns stdout followed by stderr.
func (r *ExecResult) Output() string {
	return r.Stdout + r.Stderr
}

// CommandRunner runs external processes. A non-zero exit status is not an
// error; an error means the process could not be started or was killed.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (*ExecResult, error)
	RunShell(ctx context.Context, dir, command string) (*ExecResult, error)
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct {
	// Env is appended to the current environment.
	Env map[string]string
}

// NewExecRunner creates a runner that inherits the process environment.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes name with args in dir.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (*ExecResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	cmd.Env = os.Environ()
	for k, v := range r.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, nil
	}
	if err != nil {
		result.ExitCode = -1
		return result, err
	}
	return result, nil
}

// RunShell executes command through the platform shell.
func (r *ExecRunner) RunShell(ctx context.Context, dir, command string) (*ExecResult, error) {
	if runtime.GOOS == "windows" {
		return r.Run(ctx, dir, "cmd.exe", "/c", command)
	}
	return r.Run(ctx, dir, "/bin/sh", "-c", command)
}

// LookPath returns the resolved path of a tool binary, or "" when missing.
func LookPath(binary string) string {
	path, err := exec.LookPath(binary)
	if err != nil {
		return ""
	}
	return path
}

// CheckBinaryInstalled runs "binary versionArg" and returns its trimmed first output line.
func CheckBinaryInstalled(ctx context.Context, binary, versionArg string) (bool, string, error) {
	if LookPath(binary) == "" {
		return false, "", fmt.Errorf("%s not found in PATH", binary)
	}
	cmd := exec.CommandContext(ctx, binary, versionArg)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, "", fmt.Errorf("%s %s: %w", binary, versionArg, err)
	}
	version := strings.TrimSpace(string(output))
	if i := strings.IndexByte(version, '\n'); i >= 0 {
		version = version[:i]
	}
	return true, version, nil
}

// Ensure implementations satisfy the interface
var _ CommandRunner = (*ExecRunner)(nil)
