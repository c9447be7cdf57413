// Package metrics records pipeline activity: scanner and fixer runs, issue
// counts by severity, build checks and rollbacks.
//
// The engine talks to the Collector interface only. PrometheusCollector
// backs it with a Prometheus registry that the CLI dumps to a node-exporter
// textfile after each run; InMemoryCollector is for tests.
package metrics

import (
	"sync"
	"time"
)

// =============================================================================
// Metrics Interface
// =============================================================================

// Collector is the interface for collecting metrics. Labels are passed as
// name/value pairs: "scanner", "eslint", "status", "success".
type Collector interface {
	CounterInc(name string, labels ...string)
	CounterAdd(name string, value float64, labels ...string)
	GaugeSet(name string, value float64, labels ...string)
	HistogramObserve(name string, value float64, labels ...string)
}

// =============================================================================
// Metric Types
// =============================================================================

// MetricType represents the type of metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// MetricDefinition defines a metric with its metadata.
type MetricDefinition struct {
	Name    string     `json:"name"`
	Type    MetricType `json:"type"`
	Help    string     `json:"help"`
	Labels  []string   `json:"labels,omitempty"`
	Buckets []float64  `json:"buckets,omitempty"` // For histograms
}

// Status label values.
const (
	StatusSuccess     = "success"
	StatusFailed      = "failed"
	StatusUnavailable = "unavailable"
)

var toolBuckets = []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600}

// =============================================================================
// Default Metrics
// =============================================================================

var (
	// Scanner metrics
	ScannerRunsTotal = MetricDefinition{
		Name:   "ohmybug_scanner_runs_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of scanner invocations",
		Labels: []string{"scanner", "status"},
	}
	ScannerDuration = MetricDefinition{
		Name:    "ohmybug_scanner_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Duration of scanner invocations in seconds",
		Labels:  []string{"scanner"},
		Buckets: toolBuckets,
	}
	ScannerIssuesTotal = MetricDefinition{
		Name:   "ohmybug_scanner_issues_total",
		Type:   MetricTypeCounter,
		Help:   "Raw issues reported by scanners before normalization",
		Labels: []string{"scanner"},
	}

	// Issues after filtering and deduplication
	IssuesTotal = MetricDefinition{
		Name:   "ohmybug_issues_total",
		Type:   MetricTypeCounter,
		Help:   "Issues in scan reports by severity",
		Labels: []string{"severity"},
	}
	IssuesCurrent = MetricDefinition{
		Name:   "ohmybug_issues_current",
		Type:   MetricTypeGauge,
		Help:   "Issues in the most recent scan pass by severity",
		Labels: []string{"severity"},
	}

	// Fixer metrics
	FixerRunsTotal = MetricDefinition{
		Name:   "ohmybug_fixer_runs_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of fixer invocations",
		Labels: []string{"fixer", "status"},
	}
	FixerDuration = MetricDefinition{
		Name:    "ohmybug_fixer_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Duration of fixer invocations in seconds",
		Labels:  []string{"fixer"},
		Buckets: toolBuckets,
	}
	FixerFixedIssuesTotal = MetricDefinition{
		Name:   "ohmybug_fixer_fixed_issues_total",
		Type:   MetricTypeCounter,
		Help:   "Issues reported fixed by fixers",
		Labels: []string{"fixer"},
	}

	// Pipeline metrics
	PipelineRunsTotal = MetricDefinition{
		Name:   "ohmybug_pipeline_runs_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of scan and fix passes",
		Labels: []string{"operation", "status"},
	}
	PipelineDuration = MetricDefinition{
		Name:    "ohmybug_pipeline_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Duration of scan and fix passes in seconds",
		Labels:  []string{"operation"},
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}
	BuildChecksTotal = MetricDefinition{
		Name:   "ohmybug_build_checks_total",
		Type:   MetricTypeCounter,
		Help:   "Build checks by outcome",
		Labels: []string{"status"},
	}
	BackupFiles = MetricDefinition{
		Name: "ohmybug_backup_files",
		Type: MetricTypeGauge,
		Help: "Files held in the current backup snapshot",
	}
	RollbacksTotal = MetricDefinition{
		Name:   "ohmybug_rollbacks_total",
		Type:   MetricTypeCounter,
		Help:   "Rollbacks by outcome",
		Labels: []string{"status"},
	}
	RestoredFilesTotal = MetricDefinition{
		Name: "ohmybug_restored_files_total",
		Type: MetricTypeCounter,
		Help: "Files restored by rollbacks",
	}

	// AI fixer HTTP metrics
	AIRequestsTotal = MetricDefinition{
		Name:   "ohmybug_ai_requests_total",
		Type:   MetricTypeCounter,
		Help:   "Requests sent to the AI fix endpoint",
		Labels: []string{"status"},
	}
	AIRequestDuration = MetricDefinition{
		Name:    "ohmybug_ai_request_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Duration of AI fix requests in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}
)

// DefaultMetrics returns every metric the engine and AI fixer record.
func DefaultMetrics() []MetricDefinition {
	return []MetricDefinition{
		ScannerRunsTotal, ScannerDuration, ScannerIssuesTotal,
		IssuesTotal, IssuesCurrent,
		FixerRunsTotal, FixerDuration, FixerFixedIssuesTotal,
		PipelineRunsTotal, PipelineDuration, BuildChecksTotal,
		BackupFiles, RollbacksTotal, RestoredFilesTotal,
		AIRequestsTotal, AIRequestDuration,
	}
}

// =============================================================================
// NopCollector - No-operation implementation
// =============================================================================

// NopCollector is a no-op metrics collector that discards all metrics.
type NopCollector struct{}

func (c *NopCollector) CounterInc(name string, labels ...string)                      {}
func (c *NopCollector) CounterAdd(name string, value float64, labels ...string)       {}
func (c *NopCollector) GaugeSet(name string, value float64, labels ...string)         {}
func (c *NopCollector) HistogramObserve(name string, value float64, labels ...string) {}

// =============================================================================
// InMemoryCollector - Simple in-memory implementation for testing
// =============================================================================

// InMemoryCollector stores metrics in memory for testing purposes.
type InMemoryCollector struct {
	mu         sync.RWMutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewInMemoryCollector creates a new in-memory metrics collector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (c *InMemoryCollector) key(name string, labels []string) string {
	key := name
	for i := 0; i < len(labels); i += 2 {
		if i+1 < len(labels) {
			key += "," + labels[i] + "=" + labels[i+1]
		}
	}
	return key
}

func (c *InMemoryCollector) CounterInc(name string, labels ...string) {
	c.CounterAdd(name, 1, labels...)
}

func (c *InMemoryCollector) CounterAdd(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[c.key(name, labels)] += value
}

func (c *InMemoryCollector) GaugeSet(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[c.key(name, labels)] = value
}

func (c *InMemoryCollector) HistogramObserve(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.histograms[key] = append(c.histograms[key], value)
}

// GetCounter returns the value of a counter.
func (c *InMemoryCollector) GetCounter(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[c.key(name, labels)]
}

// GetGauge returns the value of a gauge.
func (c *InMemoryCollector) GetGauge(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gauges[c.key(name, labels)]
}

// GetHistogram returns all observations of a histogram.
func (c *InMemoryCollector) GetHistogram(name string, labels ...string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.histograms[c.key(name, labels)]
}

// =============================================================================
// Timer - Helper for timing operations
// =============================================================================

// Timer is a helper for timing operations and recording to histograms.
type Timer struct {
	start     time.Time
	collector Collector
	name      string
	labels    []string
}

// NewTimer creates a new timer that will record to the given histogram.
func NewTimer(collector Collector, name string, labels ...string) *Timer {
	return &Timer{
		start:     time.Now(),
		collector: collector,
		name:      name,
		labels:    labels,
	}
}

// ObserveDuration records the duration since the timer was created.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.collector.HistogramObserve(t.name, d.Seconds(), t.labels...)
	return d
}

// StatusLabel returns StatusSuccess when err is nil, otherwise StatusFailed.
func StatusLabel(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusSuccess
}

// =============================================================================
// Interface compliance
// =============================================================================

var (
	_ Collector = (*NopCollector)(nil)
	_ Collector = (*InMemoryCollector)(nil)
)
