package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/exploopio/ohmybug/pkg/compress"
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/fixers/ai"
)

// Config is the optional YAML configuration file. Command-line flags that are
// set explicitly take precedence over it.
type Config struct {
	ProjectType   string        `yaml:"project_type"`
	RunBuildCheck *bool         `yaml:"run_build_check"`
	ToolTimeout   time.Duration `yaml:"tool_timeout"`
	MaxAIIssues   int           `yaml:"max_ai_issues"`
	Verbose       bool          `yaml:"verbose"`

	// AI fixer endpoint settings; api_key usually comes from ${ENV}
	AI ai.Config `yaml:"ai"`

	// Binaries overrides the executable per scanner name
	Binaries map[string]string `yaml:"binaries"`

	Backup struct {
		Dir         string `yaml:"dir"`
		Compression string `yaml:"compression"`
		Keep        bool   `yaml:"keep"`

		// MinFreeBytes refuses a snapshot when the backup volume has less
		// free space; 0 uses defaultMinFreeBytes
		MinFreeBytes uint64 `yaml:"min_free_bytes"`
	} `yaml:"backup"`

	AuditLog    string `yaml:"audit_log"`
	HistoryDB   string `yaml:"history_db"`
	MetricsFile string `yaml:"metrics_file"`

	Comments struct {
		Enabled bool `yaml:"enabled"`
		Max     int  `yaml:"max"`
	} `yaml:"comments"`
}

func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// projectConfig builds the engine configuration for projectPath.
func (c *Config) projectConfig(projectPath string) (core.ProjectConfig, error) {
	pc := core.DefaultProjectConfig(projectPath)
	pc.AutoApplyFixes = false

	pt, err := core.ParseProjectType(c.ProjectType)
	if err != nil {
		return pc, err
	}
	pc.ProjectType = pt
	if c.RunBuildCheck != nil {
		pc.RunBuildCheck = *c.RunBuildCheck
	}
	pc.ToolTimeout = c.ToolTimeout
	if c.MaxAIIssues > 0 {
		pc.MaxAIIssues = c.MaxAIIssues
	}
	pc.AIAPIKey = c.AI.APIKey

	if err := pc.Validate(); err != nil {
		return pc, err
	}
	return pc, nil
}

func (c *Config) backupCompression() (compress.Algorithm, error) {
	if c.Backup.Compression == "" {
		return compress.AlgorithmZSTD, nil
	}
	return compress.ParseAlgorithm(c.Backup.Compression)
}

// defaultMinFreeBytes is the free space a backup volume needs before a fix.
const defaultMinFreeBytes = 64 << 20

func (c *Config) backupMinFreeBytes() uint64 {
	if c.Backup.MinFreeBytes == 0 {
		return defaultMinFreeBytes
	}
	return c.Backup.MinFreeBytes
}

func getEnvOrFlag(flagVal, envName string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envName)
}
