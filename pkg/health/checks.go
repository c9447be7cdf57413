package health

import (
	"context"
	"fmt"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
)

// InstallHints maps scanner names to how to install the tool.
var InstallHints = map[string]string{
	"SwiftLint":        "brew install swiftlint",
	"SwiftFormat":      "brew install swiftformat",
	"ESLint":           "npm install --save-dev eslint",
	"Prettier":         "npm install --save-dev prettier",
	"Ruff":             "pip install ruff",
	"Ruff Format":      "pip install ruff",
	"golangci-lint":    "go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest",
	"gofmt":            "install Go from https://go.dev/dl/",
	"Dart Format":      "install the Dart or Flutter SDK",
	"Dart Analyzer":    "install the Dart or Flutter SDK",
	"Flutter Analyzer": "install the Flutter SDK from https://docs.flutter.dev/get-started/install",
}

// noVersionFlag lists binaries that reject --version.
var noVersionFlag = map[string]bool{
	"gofmt": true,
}

// ToolCheck reports whether a scanner's tool is installed. A missing tool
// is degraded, not unhealthy: the engine skips it.
type ToolCheck struct {
	Scanner core.Scanner
}

func (c *ToolCheck) Name() string { return c.Scanner.Name() }

func (c *ToolCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{Metadata: make(map[string]any)}

	if !c.Scanner.IsAvailable(ctx) {
		result.Status = StatusDegraded
		result.Message = "not installed, will be skipped"
		if hint, ok := InstallHints[c.Scanner.Name()]; ok {
			result.Metadata["install"] = hint
		}
		return result
	}

	result.Status = StatusHealthy
	result.Message = "available"
	if bt, ok := c.Scanner.(interface{ BaseTool() *base.Tool }); ok {
		t := bt.BaseTool()
		result.Metadata["binary"] = t.Binary
		if !noVersionFlag[t.Binary] {
			if v := t.Version(ctx, "--version"); v != "" {
				result.Message = v
				result.Metadata["version"] = v
			}
		}
	}
	return result
}

// DatabaseCheck checks that a database answers a ping.
type DatabaseCheck struct {
	PingFunc func(ctx context.Context) error
}

func (c *DatabaseCheck) Name() string { return "database" }

func (c *DatabaseCheck) Check(ctx context.Context) CheckResult {
	if c.PingFunc == nil {
		return CheckResult{Status: StatusUnknown, Message: "no ping function configured"}
	}
	if err := c.PingFunc(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "connected"}
}

// APIKeyCheck reports whether the AI fixer is enabled.
type APIKeyCheck struct {
	Key string
}

func (c *APIKeyCheck) Name() string { return "ai" }

func (c *APIKeyCheck) Check(ctx context.Context) CheckResult {
	if c.Key == "" {
		return CheckResult{Status: StatusDegraded, Message: "no API key, AI fixes disabled"}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("key %s", core.MaskAPIKey(c.Key))}
}

var (
	_ Checker = (*ToolCheck)(nil)
	_ Checker = (*DatabaseCheck)(nil)
	_ Checker = (*APIKeyCheck)(nil)
	_ Checker = (*DiskCheck)(nil)
)
