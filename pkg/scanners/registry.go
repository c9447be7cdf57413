// Package scanners wires the built-in tool adapters together: a registry of
// presets and the helpers that register them with a pipeline engine.
package scanners

import (
	"context"
	"slices"
	"sync"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
	"github.com/exploopio/ohmybug/pkg/scanners/build"
	"github.com/exploopio/ohmybug/pkg/scanners/dart"
	"github.com/exploopio/ohmybug/pkg/scanners/eslint"
	"github.com/exploopio/ohmybug/pkg/scanners/format"
	"github.com/exploopio/ohmybug/pkg/scanners/golangci"
	"github.com/exploopio/ohmybug/pkg/scanners/ruff"
	"github.com/exploopio/ohmybug/pkg/scanners/swiftformat"
	"github.com/exploopio/ohmybug/pkg/scanners/swiftlint"
)

// =============================================================================
// Scanner Registry
// =============================================================================

// Registrar is what the registry registers into; *pipeline.Engine
// satisfies it.
type Registrar interface {
	RegisterScanner(s core.Scanner)
	RegisterFixer(f core.Fixer)
}

// Options configures every built-in adapter.
type Options struct {
	Runner  core.CommandRunner // Process runner (default: core.ExecRunner)
	Logger  core.Logger        // Diagnostic logger (default: NopLogger)
	Verbose bool               // Log every tool command line

	// Binaries overrides the executable per scanner name.
	Binaries map[string]string
}

// Registry holds scanners in registration order. Scanners that also fix
// are registered as fixers too.
type Registry struct {
	mu       sync.RWMutex
	scanners []core.Scanner
	byName   map[string]core.Scanner
}

// NewRegistry creates a registry holding the built-in adapters.
func NewRegistry(opts Options) *Registry {
	r := &Registry{byName: make(map[string]core.Scanner)}
	for _, s := range builtins() {
		configure(s, opts)
		r.Register(s)
	}
	return r
}

// builtins lists the adapters in run order: Swift, JavaScript, Flutter,
// Python, then Go.
func builtins() []core.Scanner {
	return []core.Scanner{
		swiftlint.NewScanner(),
		swiftformat.NewScanner(),
		build.NewScanner(),
		eslint.NewScanner(),
		format.NewPrettier(),
		dart.NewAnalyzer(),
		format.NewDartFormat(),
		dart.NewFlutterAnalyzer(),
		ruff.NewScanner(),
		format.NewRuffFormat(),
		golangci.NewScanner(),
		format.NewGofmt(),
	}
}

func configure(s core.Scanner, opts Options) {
	switch v := s.(type) {
	case interface{ BaseTool() *base.Tool }:
		t := v.BaseTool()
		if opts.Runner != nil {
			t.Runner = opts.Runner
		}
		if opts.Logger != nil {
			t.Logger = opts.Logger
		}
		t.Verbose = opts.Verbose
		if bin := opts.Binaries[t.Name]; bin != "" {
			t.Binary = bin
		}
	case *build.Scanner:
		if opts.Runner != nil {
			v.Runner = opts.Runner
		}
		if opts.Logger != nil {
			v.Logger = opts.Logger
		}
	}
}

// Register adds a scanner, replacing one with the same name in place.
func (r *Registry) Register(s core.Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[s.Name()]; ok {
		i := slices.IndexFunc(r.scanners, func(x core.Scanner) bool { return x.Name() == s.Name() })
		r.scanners[i] = s
	} else {
		r.scanners = append(r.scanners, s)
	}
	r.byName[s.Name()] = s
}

// Get returns a scanner by name, or nil.
func (r *Registry) Get(name string) core.Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// List returns the scanner names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scanners))
	for _, s := range r.scanners {
		names = append(names, s.Name())
	}
	return names
}

// ForProjectType returns the scanners that apply to pt, in registration
// order. ProjectTypeAuto returns all of them; the engine skips the
// scanners and tool fixers that do not apply once it has detected the type.
func (r *Registry) ForProjectType(pt core.ProjectType) []core.Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Scanner, 0, len(r.scanners))
	for _, s := range r.scanners {
		if pt == core.ProjectTypeAuto || pt == "" || core.SupportsProjectType(s, pt) {
			out = append(out, s)
		}
	}
	return out
}

// RegisterInto registers the scanners for pt with dst, and every one that
// is also a fixer as a fixer. It returns the number of scanners registered.
func (r *Registry) RegisterInto(dst Registrar, pt core.ProjectType) int {
	list := r.ForProjectType(pt)
	for _, s := range list {
		dst.RegisterScanner(s)
		if f, ok := s.(core.Fixer); ok {
			dst.RegisterFixer(f)
		}
	}
	return len(list)
}

// Available returns the names of scanners whose tool is installed.
func (r *Registry) Available(ctx context.Context) []string {
	r.mu.RLock()
	list := slices.Clone(r.scanners)
	r.mu.RUnlock()

	var names []string
	for _, s := range list {
		if s.IsAvailable(ctx) {
			names = append(names, s.Name())
		}
	}
	return names
}

// =============================================================================
// Presets
// =============================================================================

// Defaults returns fresh built-in scanners that apply to pt.
func Defaults(pt core.ProjectType) []core.Scanner {
	return NewRegistry(Options{}).ForProjectType(pt)
}

// RegisterDefaults registers the built-in adapters for cfg's project type
// with dst. The build diagnostics scanner is left out when cfg disables
// build checks.
func RegisterDefaults(dst Registrar, cfg core.ProjectConfig, opts Options) int {
	r := NewRegistry(opts)
	if !cfg.RunBuildCheck {
		r.remove(build.Name)
	}
	return r.RegisterInto(dst, cfg.ProjectType)
}

func (r *Registry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return
	}
	delete(r.byName, name)
	r.scanners = slices.DeleteFunc(r.scanners, func(s core.Scanner) bool { return s.Name() == name })
}
