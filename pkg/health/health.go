// Package health runs preflight checks before a check or fix pass: which
// tools are installed, whether the backup volume has room, and whether the
// optional history database and AI fixer are usable.
package health

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Check Interface
// =============================================================================

// Checker is the interface for health checks.
type Checker interface {
	// Name returns the check name.
	Name() string

	// Check performs the health check.
	Check(ctx context.Context) CheckResult
}

// CheckFunc is a function type that implements Checker.
type CheckFunc func(ctx context.Context) CheckResult

func (f CheckFunc) Name() string                          { return "" }
func (f CheckFunc) Check(ctx context.Context) CheckResult { return f(ctx) }

// =============================================================================
// Status Types
// =============================================================================

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
	StatusUnknown   Status = "unknown"
)

// CheckResult holds the result of a health check.
type CheckResult struct {
	// Status is the health status.
	Status Status `json:"status"`

	// Message provides additional details.
	Message string `json:"message,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration_ms"`

	// Error is the error if the check failed.
	Error string `json:"error,omitempty"`

	// Metadata holds additional check-specific data.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is a named check result.
type Result struct {
	Name string `json:"name"`
	CheckResult
}

// Report is the outcome of a Suite run.
type Report struct {
	// Status is the worst status of all checks.
	Status Status `json:"status"`

	// Checks are in registration order.
	Checks []Result `json:"checks"`

	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// Suite
// =============================================================================

// Suite holds named checks and runs them together.
type Suite struct {
	mu      sync.RWMutex
	checks  map[string]Checker
	order   []string
	timeout time.Duration
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithTimeout bounds a whole Run.
func WithTimeout(timeout time.Duration) SuiteOption {
	return func(s *Suite) {
		s.timeout = timeout
	}
}

// NewSuite creates an empty suite with a 10 second timeout.
func NewSuite(opts ...SuiteOption) *Suite {
	s := &Suite{
		checks:  make(map[string]Checker),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a check. Registering a name again replaces the check and
// keeps its position.
func (s *Suite) Register(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checks[name]; !ok {
		s.order = append(s.order, name)
	}
	s.checks[name] = checker
}

// RegisterFunc adds a check function.
func (s *Suite) RegisterFunc(name string, fn func(ctx context.Context) CheckResult) {
	s.Register(name, CheckFunc(fn))
}

// Names returns the registered check names in order.
func (s *Suite) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Run runs all checks concurrently and aggregates their status. A check
// still running at the timeout is reported as unknown.
func (s *Suite) Run(ctx context.Context) Report {
	s.mu.RLock()
	names := append([]string(nil), s.order...)
	checks := make([]Checker, len(names))
	for i, name := range names {
		checks[i] = s.checks[name]
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make([]Result, len(names))
	var wg sync.WaitGroup
	for i, checker := range checks {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()

			start := time.Now()
			result := checker.Check(ctx)
			result.Duration = time.Since(start)
			if result.Status == "" {
				result.Status = StatusUnknown
			}
			if ctx.Err() != nil && result.Status == StatusHealthy {
				result.Status = StatusUnknown
				result.Error = ctx.Err().Error()
			}
			results[i] = Result{Name: names[i], CheckResult: result}
		}(i, checker)
	}
	wg.Wait()

	return Report{
		Status:    Overall(results),
		Checks:    results,
		Timestamp: time.Now(),
	}
}

// Overall returns unhealthy if any result is unhealthy, degraded if any is
// degraded or unknown, healthy otherwise.
func Overall(results []Result) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusUnknown:
			status = StatusDegraded
		}
	}
	return status
}

var _ Checker = CheckFunc(nil)
