package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProjectType identifies the language/tooling stack of a project.
type ProjectType string

const (
	ProjectTypeSwift      ProjectType = "swift"
	ProjectTypeJavaScript ProjectType = "javascript"
	ProjectTypeFlutter    ProjectType = "flutter"
	ProjectTypePython     ProjectType = "python"
	ProjectTypeGo         ProjectType = "go"
	ProjectTypeMixed      ProjectType = "mixed"
	ProjectTypeAuto       ProjectType = "auto"
)

// AllProjectTypes returns every project type, auto last.
func AllProjectTypes() []ProjectType {
	return []ProjectType{
		ProjectTypeSwift,
		ProjectTypeJavaScript,
		ProjectTypeFlutter,
		ProjectTypePython,
		ProjectTypeGo,
		ProjectTypeMixed,
		ProjectTypeAuto,
	}
}

// ParseProjectType parses a project type name. An empty string means auto.
func ParseProjectType(s string) (ProjectType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ProjectTypeAuto, nil
	}
	for _, pt := range AllProjectTypes() {
		if string(pt) == s {
			return pt, nil
		}
	}
	return "", fmt.Errorf("unknown project type %q", s)
}

// ProjectConfig is the engine configuration. It is passed in at construction
// time; the engine reads no other settings.
type ProjectConfig struct {
	// ProjectPath is the absolute project root
	ProjectPath string `yaml:"project_path" json:"project_path"`

	// ProjectType is explicit or ProjectTypeAuto for detection
	ProjectType ProjectType `yaml:"project_type" json:"project_type"`

	// AutoApplyFixes makes Run continue with Fix after Scan
	AutoApplyFixes bool `yaml:"auto_apply_fixes" json:"auto_apply_fixes"`

	// RunBuildCheck enables the build phase before scanning and after fixing
	RunBuildCheck bool `yaml:"run_build_check" json:"run_build_check"`

	// AIAPIKey enables the AI fixer when non-empty
	AIAPIKey string `yaml:"ai_api_key" json:"-"`

	// ToolTimeout bounds each scanner/fixer invocation (0 = no timeout)
	ToolTimeout time.Duration `yaml:"tool_timeout" json:"tool_timeout"`

	// MaxAIIssues caps how many issues the AI fixer handles per run
	MaxAIIssues int `yaml:"max_ai_issues" json:"max_ai_issues"`
}

// DefaultProjectConfig returns a configuration with auto detection, fixing
// and build checks enabled.
func DefaultProjectConfig(projectPath string) ProjectConfig {
	return ProjectConfig{
		ProjectPath:    projectPath,
		ProjectType:    ProjectTypeAuto,
		AutoApplyFixes: true,
		RunBuildCheck:  true,
		MaxAIIssues:    20,
	}
}

// Validate checks the configuration.
func (c *ProjectConfig) Validate() error {
	var v configValidator
	v.projectRoot("project_path", c.ProjectPath)
	v.projectType("project_type", c.ProjectType)
	v.nonNegative("tool_timeout", int64(c.ToolTimeout))
	v.nonNegative("max_ai_issues", int64(c.MaxAIIssues))
	return v.err()
}

// ResolveProjectPath turns a user-supplied path into a clean absolute path.
func ResolveProjectPath(path string) (string, error) {
	if path == "" {
		path = "."
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
