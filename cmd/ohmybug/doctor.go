package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/health"
	"github.com/exploopio/ohmybug/pkg/history"
	"github.com/exploopio/ohmybug/pkg/scanners"
)

// runDoctor reports which tools would run for a project and whether the
// configured backup volume, history database and AI key are usable. It exits
// 1 only when a check is unhealthy; missing tools are degraded.
func runDoctor(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	projectType := fs.String("type", "", "Project type (default: detect)")
	aiKey := fs.String("ai-key", "", "API key for the AI fixer (or OHMYBUG_AI_KEY env)")
	asJSON := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	var cfg Config
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			fmt.Fprintf(stderr, "Error loading config: %v\n", err)
			return 1
		}
	}
	if *projectType != "" {
		cfg.ProjectType = *projectType
	}
	if key := getEnvOrFlag(*aiKey, "OHMYBUG_AI_KEY"); key != "" {
		cfg.AI.APIKey = key
	}

	path := "."
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	projectPath, err := core.ResolveProjectPath(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	pc, err := cfg.projectConfig(projectPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	pt := pc.ProjectType
	if pt == core.ProjectTypeAuto {
		pt = detect.Detect(projectPath)
	}

	suite := health.NewSuite()
	registry := scanners.NewRegistry(scanners.Options{Binaries: cfg.Binaries})
	for _, s := range registry.ForProjectType(pt) {
		suite.Register(s.Name(), &health.ToolCheck{Scanner: s})
	}

	backupDir := cfg.Backup.Dir
	if backupDir == "" {
		backupDir = os.TempDir()
	}
	suite.Register("backup volume", &health.DiskCheck{Path: backupDir, MinFreeBytes: cfg.backupMinFreeBytes()})

	if cfg.HistoryDB != "" {
		store, err := history.Open(&history.Config{DatabasePath: cfg.HistoryDB})
		if err != nil {
			suite.RegisterFunc("history", func(context.Context) health.CheckResult {
				return health.CheckResult{Status: health.StatusUnhealthy, Error: err.Error()}
			})
		} else {
			defer store.Close()
			suite.Register("history", &health.DatabaseCheck{PingFunc: store.Ping})
		}
	}
	suite.Register("ai", &health.APIKeyCheck{Key: cfg.AI.APIKey})

	report := suite.Run(ctx)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
	} else {
		fmt.Fprintf(stdout, "Project: %s (%s)\n\n", projectPath, pt)
		for _, r := range report.Checks {
			detail := r.Message
			if r.Error != "" {
				detail = r.Error
			}
			fmt.Fprintf(stdout, "  %-10s %-16s %s\n", strings.ToUpper(string(r.Status)), r.Name, detail)
			if hint, ok := r.Metadata["install"].(string); ok {
				fmt.Fprintf(stdout, "  %-10s %-16s install: %s\n", "", "", hint)
			}
		}
		fmt.Fprintf(stdout, "\nOverall: %s\n", report.Status)
	}

	if report.Status == health.StatusUnhealthy {
		return 1
	}
	return 0
}
