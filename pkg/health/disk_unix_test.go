//go:build linux || darwin

package health

import (
	"context"
	"path/filepath"
	"testing"
)

func TestDiskCheck(t *testing.T) {
	dir := t.TempDir()

	r := (&DiskCheck{Path: dir}).Check(context.Background())
	if r.Status != StatusHealthy {
		t.Errorf("Status = %s (%s), want healthy", r.Status, r.Error)
	}
	if r.Metadata["path"] != dir {
		t.Errorf("path = %v", r.Metadata["path"])
	}

	if r := (&DiskCheck{Path: dir, MinFreePercent: 101}).Check(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("impossible percent threshold Status = %s, want unhealthy", r.Status)
	}
	if r := (&DiskCheck{Path: dir, MinFreeBytes: 1 << 62}).Check(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("impossible byte threshold Status = %s, want unhealthy", r.Status)
	}
	if r := (&DiskCheck{Path: filepath.Join(dir, "missing")}).Check(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("missing path Status = %s, want unhealthy", r.Status)
	}
}
