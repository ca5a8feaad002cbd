package xbpsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicFile is a sibling temp file that becomes path only on Commit.
// Every mutation of pkgdb, minisig files, pubkey files, and repo
// metadata goes through this pattern (spec §4.1): open a sibling
// ".<name>.XXXXXXX" via a mkstemp-equivalent, write, then rename over
// the destination; Discard without Commit unlinks the temp file.
type AtomicFile struct {
	*os.File
	finalPath string
	tmpPath   string
	committed bool
}

// NewAtomicFile creates the sibling temp file for path.
func NewAtomicFile(path string) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	f, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return nil, fmt.Errorf("xbpsutil: creating temp file for %s: %w", path, err)
	}
	return &AtomicFile{File: f, finalPath: path, tmpPath: f.Name()}, nil
}

// Commit syncs and renames the temp file over the destination. After
// Commit, the *AtomicFile must still be Close()d by the caller (Close
// is then a no-op for cleanup purposes since the temp file no longer
// exists under tmpPath).
func (a *AtomicFile) Commit(mode os.FileMode) error {
	if err := a.File.Sync(); err != nil {
		return fmt.Errorf("xbpsutil: syncing %s: %w", a.tmpPath, err)
	}
	if err := a.File.Chmod(mode); err != nil {
		return fmt.Errorf("xbpsutil: chmod %s: %w", a.tmpPath, err)
	}
	if err := os.Rename(a.tmpPath, a.finalPath); err != nil {
		return fmt.Errorf("xbpsutil: renaming %s to %s: %w", a.tmpPath, a.finalPath, err)
	}
	a.committed = true
	return nil
}

// Discard closes and removes the temp file without publishing it.
// Safe to call after Commit (becomes a no-op).
func (a *AtomicFile) Discard() error {
	if a.committed {
		return nil
	}
	_ = a.File.Close()
	return os.Remove(a.tmpPath)
}

// WriteAtomic is a convenience wrapper for the common case: write all of
// data to path atomically with the given mode.
func WriteAtomic(path string, data []byte, mode os.FileMode) error {
	af, err := NewAtomicFile(path)
	if err != nil {
		return err
	}
	if _, err := af.Write(data); err != nil {
		af.Discard()
		return fmt.Errorf("xbpsutil: writing %s: %w", path, err)
	}
	if err := af.Commit(mode); err != nil {
		af.Discard()
		return err
	}
	return af.Close()
}
