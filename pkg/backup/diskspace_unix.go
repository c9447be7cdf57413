//go:build linux || darwin

package backup

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// freeBytes returns the space available to unprivileged users on the
// volume holding path.
func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to get disk stats: %w", err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil //nolint:gosec // G115: Bsize is positive
}

func (m *Manager) checkFreeSpace() error {
	if m.minFreeBytes == 0 {
		return nil
	}
	free, err := freeBytes(m.sessionDir)
	if err != nil {
		return err
	}
	if free < m.minFreeBytes {
		return fmt.Errorf("%d bytes free on backup volume, need %d", free, m.minFreeBytes)
	}
	return nil
}
