package pipeline

import (
	"github.com/exploopio/ohmybug/pkg/backup"
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/metrics"
)

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the observer receiving phase, log and progress events.
func WithObserver(o core.Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithLogger sets the diagnostic logger. Every observer log entry is also
// written here.
func WithLogger(l core.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(e *Engine) {
		if c != nil {
			e.metrics = c
		}
	}
}

// WithRunner sets the process runner used for build checks.
func WithRunner(r core.CommandRunner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithBackupManager replaces the default backup manager, e.g. to enable
// compression or a custom base directory.
func WithBackupManager(m *backup.Manager) Option {
	return func(e *Engine) {
		if m != nil {
			e.backup = m
		}
	}
}
