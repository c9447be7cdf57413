//go:build !(linux || darwin)

package backup

// checkFreeSpace is a no-op where statfs is unavailable.
func (m *Manager) checkFreeSpace() error {
	return nil
}
