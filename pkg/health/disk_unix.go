//go:build linux || darwin

package health

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// DiskCheck checks available disk space.
type DiskCheck struct {
	Path         string
	MinFreeBytes uint64
	// MinFreePercent is the minimum percentage of free space required (0-100).
	// If set, this takes precedence over MinFreeBytes.
	MinFreePercent float64
}

func (c *DiskCheck) Name() string { return "disk" }

func (c *DiskCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{Metadata: make(map[string]any)}

	path := c.Path
	if path == "" {
		path = "/"
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("failed to get disk stats: %v", err)
		return result
	}

	totalBytes := stat.Blocks * uint64(stat.Bsize) //nolint:gosec // G115: Bsize is positive
	freeBytes := stat.Bavail * uint64(stat.Bsize)  //nolint:gosec // G115: Bsize is positive
	freePercent := 0.0
	if totalBytes > 0 {
		freePercent = float64(freeBytes) / float64(totalBytes) * 100
	}

	result.Metadata["total_bytes"] = totalBytes
	result.Metadata["free_bytes"] = freeBytes
	result.Metadata["free_percent"] = fmt.Sprintf("%.2f%%", freePercent)
	result.Metadata["path"] = path

	if c.MinFreePercent > 0 {
		if freePercent < c.MinFreePercent {
			result.Status = StatusUnhealthy
			result.Error = fmt.Sprintf("disk free space %.2f%% is below threshold %.2f%%", freePercent, c.MinFreePercent)
			return result
		}
	} else if c.MinFreeBytes > 0 && freeBytes < c.MinFreeBytes {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("disk free space %d bytes is below threshold %d bytes", freeBytes, c.MinFreeBytes)
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("%.2f%% free", freePercent)
	return result
}
