// Package backup snapshots files before a fix pass so the pass can be undone.
//
// A Manager owns one session directory under the system temp dir. Each file
// handed to CreateSnapshot is copied there, keeping its path relative to the
// project root, and Rollback copies the saved bytes back.
package backup

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exploopio/ohmybug/pkg/compress"
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/errors"
)

const (
	// DirName is the directory created under the base dir for all sessions.
	DirName = "ohmybug"

	// externalDir holds copies of files outside the project root.
	externalDir = "_external"
)

// entry is one recorded original -> backup mapping.
type entry struct {
	backupPath string
	mode       fs.FileMode
}

// Manager records and restores file snapshots. It is safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	projectPath  string
	baseDir      string
	sessionDir   string
	compressor   *compress.Compressor
	minFreeBytes uint64
	logger       core.Logger

	entries     map[string]entry
	hasSnapshot bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithBaseDir sets the directory the session directory is created in.
func WithBaseDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.baseDir = dir
		}
	}
}

// WithCompression stores backup copies compressed with the given algorithm.
func WithCompression(algorithm compress.Algorithm) Option {
	return func(m *Manager) {
		m.compressor = compress.NewCompressor(algorithm, compress.LevelFastest)
	}
}

// WithMinFreeBytes refuses to snapshot when the backup volume has less
// free space than n bytes.
func WithMinFreeBytes(n uint64) Option {
	return func(m *Manager) {
		m.minFreeBytes = n
	}
}

// WithLogger sets the logger.
func WithLogger(l core.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a backup manager for the project at projectPath.
// Nothing is written to disk until the first CreateSnapshot call.
func NewManager(projectPath string, opts ...Option) *Manager {
	m := &Manager{
		projectPath: filepath.Clean(projectPath),
		baseDir:     os.TempDir(),
		compressor:  compress.NewCompressor(compress.AlgorithmNone, compress.LevelDefault),
		logger:      &core.NopLogger{},
		entries:     make(map[string]entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sessionDir = m.newSessionDir()
	return m
}

func (m *Manager) newSessionDir() string {
	id := time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
	return filepath.Join(m.baseDir, DirName, id)
}

// CreateSnapshot copies every existing file in files into the session
// directory. Missing files are skipped. Files already in the snapshot keep
// their first copy. The call is all-or-nothing: when any copy fails, the
// copies made by this call are removed and an IO error is returned, while
// earlier snapshot content is kept.
func (m *Manager) CreateSnapshot(ctx context.Context, files []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "backup.CreateSnapshot"

	if err := os.MkdirAll(m.sessionDir, 0o700); err != nil {
		return errors.IO(op, "create backup directory", err)
	}
	if err := m.checkFreeSpace(); err != nil {
		return errors.IO(op, "insufficient disk space", err)
	}

	added := make(map[string]entry)
	rollbackAdded := func() {
		for _, e := range added {
			_ = os.Remove(e.backupPath)
		}
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			rollbackAdded()
			return errors.Wrap(err, op)
		}

		original := core.AbsolutePath(m.projectPath, file)
		if _, ok := m.entries[original]; ok {
			continue
		}
		if _, ok := added[original]; ok {
			continue
		}

		info, err := os.Stat(original)
		if os.IsNotExist(err) {
			m.logger.Debug("backup: skipping missing file %s", original)
			continue
		}
		if err != nil {
			rollbackAdded()
			return errors.IO(op, "stat "+original, err)
		}
		if info.IsDir() {
			continue
		}

		backupPath := m.backupPathFor(original)
		if err := m.copyToBackup(original, backupPath); err != nil {
			_ = os.Remove(backupPath)
			rollbackAdded()
			return errors.IO(op, "copy "+original, err)
		}
		added[original] = entry{backupPath: backupPath, mode: info.Mode().Perm()}
	}

	for original, e := range added {
		m.entries[original] = e
	}
	m.hasSnapshot = true
	m.logger.Debug("backup: snapshot holds %d files in %s", len(m.entries), m.sessionDir)
	return nil
}

// backupPathFor maps an original path into the session directory.
func (m *Manager) backupPathFor(original string) string {
	var rel string
	if strings.HasPrefix(original, m.projectPath+string(filepath.Separator)) {
		rel = original[len(m.projectPath)+1:]
	} else {
		rel = filepath.Join(externalDir, strings.TrimLeft(filepath.ToSlash(original), "/:"))
	}
	return filepath.Join(m.sessionDir, rel) + m.compressor.Extension()
}

func (m *Manager) copyToBackup(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	w, err := m.compressor.NewWriter(out)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		out.Close()
		return err
	}
	if err := w.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Rollback restores every recorded file whose backup copy still exists and
// returns how many were restored. Each file is replaced atomically with a
// rename. The snapshot is kept, so calling Rollback again is safe. On a
// restore failure the count so far is returned with an IO error.
func (m *Manager) Rollback(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "backup.Rollback"

	if !m.hasSnapshot {
		return 0, nil
	}

	restored := 0
	for _, original := range m.sortedOriginals() {
		if err := ctx.Err(); err != nil {
			return restored, errors.Wrap(err, op)
		}

		e := m.entries[original]
		if _, err := os.Stat(e.backupPath); err != nil {
			m.logger.Warn("backup: copy of %s is missing, skipping", original)
			continue
		}
		if err := m.restore(e, original); err != nil {
			return restored, errors.IO(op, fmt.Sprintf("restore %s (%d restored)", original, restored), err)
		}
		restored++
	}

	m.logger.Debug("backup: restored %d files", restored)
	return restored, nil
}

func (m *Manager) restore(e entry, original string) error {
	dir := filepath.Dir(original)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	in, err := os.Open(e.backupPath)
	if err != nil {
		return err
	}
	defer in.Close()

	r, err := m.compressor.NewReader(in)
	if err != nil {
		return err
	}
	defer r.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(original)+".ohmybug-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(e.mode); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, original); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Cleanup deletes the session directory and forgets every mapping. A later
// CreateSnapshot starts a fresh session directory.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.RemoveAll(m.sessionDir)
	m.entries = make(map[string]entry)
	m.hasSnapshot = false
	m.sessionDir = m.newSessionDir()
	if err != nil {
		return errors.IO("backup.Cleanup", "remove backup directory", err)
	}
	return nil
}

// SnapshotExists reports whether a snapshot has been taken since the last cleanup.
func (m *Manager) SnapshotExists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasSnapshot
}

// BackedUpFileCount returns the number of recorded files.
func (m *Manager) BackedUpFileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Location returns the session directory.
func (m *Manager) Location() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionDir
}

// Files returns the recorded original paths, sorted.
func (m *Manager) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedOriginals()
}

func (m *Manager) sortedOriginals() []string {
	files := make([]string, 0, len(m.entries))
	for original := range m.entries {
		files = append(files, original)
	}
	slices.Sort(files)
	return files
}
