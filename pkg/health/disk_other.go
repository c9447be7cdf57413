//go:build !(linux || darwin)

package health

import "context"

// DiskCheck checks available disk space. Where statfs is unavailable the
// result is unknown.
type DiskCheck struct {
	Path           string
	MinFreeBytes   uint64
	MinFreePercent float64
}

func (c *DiskCheck) Name() string { return "disk" }

func (c *DiskCheck) Check(ctx context.Context) CheckResult {
	return CheckResult{Status: StatusUnknown, Message: "disk statistics unavailable on this platform"}
}
