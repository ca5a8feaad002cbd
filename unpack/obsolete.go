package unpack

import (
	"os"
	"path/filepath"

	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/xbpslog"
)

// RemovePackageFiles unlinks the files/conffiles old ships whose on-disk
// hash still matches the record (files edited since install are kept),
// unlinks its links, and prunes its now-empty directories: the full removal case of spec
// §4.11 step 6 (as opposed to removeObsoletes's update-time diff
// against a still-installing new version).
func (e *Engine) RemovePackageFiles(old *model.PackageRecord) error {
	return e.removeObsoletes(old, &model.PackageRecord{})
}

// removeObsoletes implements spec §4.9's "Obsoletes" pass: entries
// present in the old record but not the new one, whose on-disk hash
// still matches what was recorded, are unlinked.
func (e *Engine) removeObsoletes(old, new *model.PackageRecord) error {
	keep := map[string]bool{}
	for _, f := range new.Files {
		keep[f.File] = true
	}
	for _, f := range new.ConfFiles {
		keep[f.File] = true
	}
	for _, f := range new.Links {
		keep[f.File] = true
	}
	for _, f := range new.Dirs {
		keep[f.File] = true
	}

	for _, f := range old.Files {
		if keep[f.File] {
			continue
		}
		e.removeObsoleteFile(f.File, f.SHA256)
	}
	for _, f := range old.ConfFiles {
		if keep[f.File] {
			continue
		}
		e.removeObsoleteFile(f.File, f.SHA256)
	}
	for _, f := range old.Links {
		if keep[f.File] {
			continue
		}
		e.removeObsoleteFile(f.File, "")
	}
	// Directories are removed last, and only if nothing in the new
	// record still needs them.
	for _, f := range old.Dirs {
		if keep[f.File] {
			continue
		}
		_ = e.removeEmptyDir(f.File)
	}
	return nil
}

func (e *Engine) removeObsoleteFile(rel, wantHash string) {
	target := filepath.Join(e.RootDir, xbpsutil.Clean("/"+rel))

	if wantHash != "" {
		actual, err := xbpsutil.SHA256File(target)
		if err != nil {
			return // already gone, or unreadable: nothing more to do
		}
		if !xbpsutil.HashesEqual(actual, wantHash) {
			return // user-modified since install, leave it
		}
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		e.notify(xbpslog.Event{State: xbpslog.RemoveFileFail, Path: target, Err: err})
		return
	}
	e.notify(xbpslog.Event{State: xbpslog.RemoveFile, Path: target})
}

func (e *Engine) removeEmptyDir(rel string) error {
	target := filepath.Join(e.RootDir, xbpsutil.Clean("/"+rel))
	return os.Remove(target) // fails silently (via ENOTEMPTY) if entries remain
}
