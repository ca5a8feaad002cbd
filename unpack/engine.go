package unpack

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/xbpslog"
)

// Engine runs the per-package unpack described by spec §4.9.
type Engine struct {
	RootDir        string
	PreserveList   []string
	ForceOverwrite bool // force re-extraction of matching-hash files
	KeepConfig     bool // install changed conffiles as <path>.new-V instead of replacing
	Sink           xbpslog.EventSink
}

// Result carries what Unpack learned/produced for the caller (commit)
// to attach to the package record and feed into pkgdb.
type Result struct {
	InstallScript []byte
	RemoveScript  []byte
	Files         *model.PackageRecord // files/conf_files/links/dirs as listed in the archive's files.plist
}

func (e *Engine) notify(ev xbpslog.Event) {
	if e.Sink != nil {
		_ = e.Sink.Notify(ev)
	}
}

// Unpack extracts archive (already decompressed to a *tar.Reader via
// Open) for the package staged as pkgver, verifying it matches the
// repo-declared pkgver and diffing against installed, the
// previously-installed record for the same pkgname (nil for a fresh
// install).
func (e *Engine) Unpack(tr *tar.Reader, pkgver string, installed *model.PackageRecord) (*Result, error) {
	h, err := readHeader(tr)
	if err != nil {
		return nil, err
	}
	if h.Props.Pkgver != pkgver {
		return nil, errs.Invalid("unpack: archive pkgver %q does not match staged %q", h.Props.Pkgver, pkgver)
	}

	if err := e.extractPayload(tr, h, installed, pkgver); err != nil {
		e.notify(xbpslog.Event{State: xbpslog.UnpackFail, Pkgver: pkgver, Err: err})
		return nil, err
	}

	if installed != nil {
		if err := e.removeObsoletes(installed, h.Files); err != nil {
			return nil, err
		}
	}

	return &Result{InstallScript: h.InstallScript, RemoveScript: h.RemoveScript, Files: h.Files}, nil
}

// extractPayload streams every member after the header block, applying
// the skip/preserve/hash/conffile rules of spec §4.9's "Payload
// extraction" steps.
func (e *Engine) extractPayload(tr *tar.Reader, h *header, installed *model.PackageRecord, pkgver string) error {
	origHashes := map[string]string{}
	if installed != nil {
		for _, f := range installed.ConfFiles {
			origHashes[f.File] = f.SHA256
		}
	}
	confFiles := map[string]bool{}
	for _, f := range h.Files.ConfFiles {
		confFiles[f.File] = true
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag == tar.TypeDir {
			continue // step 1: directories are implicit from file paths
		}

		rel := xbpsutil.Clean(hdr.Name)
		target, err := secureJoin(e.RootDir, rel)
		if err != nil {
			return err
		}

		key := xbpsutil.Clean("/" + rel) // files.plist and preserve entries are absolute
		if inPreserveList(key, e.PreserveList) {
			if _, err := os.Lstat(target); err == nil {
				continue // step 2
			}
		}

		if confFiles[key] {
			if err := e.extractConfFile(tr, hdr, target, key, origHashes[key], pkgver); err != nil {
				return err
			}
			continue
		}

		if err := e.extractRegular(tr, hdr, target); err != nil {
			return err
		}
	}
}

// extractRegular implements steps 3/4/6 for a non-conffile member.
func (e *Engine) extractRegular(tr *tar.Reader, hdr *tar.Header, target string) error {
	if info, err := os.Lstat(target); err == nil {
		if typeMismatch(info, hdr) {
			if err := os.RemoveAll(target); err != nil {
				return err
			}
		} else if hdr.Typeflag == tar.TypeReg {
			newHash, data, err := readAndHash(tr)
			if err != nil {
				return err
			}
			curHash, err := xbpsutil.SHA256File(target)
			if err == nil && xbpsutil.HashesEqual(curHash, newHash) && !e.ForceOverwrite {
				return applyMetadata(target, hdr) // skip body, still sync owner/mode/mtime
			}
			return writeRegularFromBytes(target, data, hdr)
		}
	}

	return writeEntry(tr, hdr, target)
}

// extractConfFile implements spec §4.9 step 5's three-way merge.
func (e *Engine) extractConfFile(tr *tar.Reader, hdr *tar.Header, target, rel, origHash, pkgver string) error {
	if hdr.Typeflag == tar.TypeSymlink {
		return e.extractConfSymlink(hdr, target, origHash, pkgver)
	}

	newHash, data, err := readAndHash(tr)
	if err != nil {
		return err
	}
	curHash, statErr := xbpsutil.SHA256File(target)
	if statErr != nil {
		if !os.IsNotExist(statErr) {
			return statErr
		}
		curHash = ""
	}

	action := mergeConfFile(origHash, curHash, newHash)
	switch action {
	case confSkip:
		return nil
	case confKeepCurrent:
		e.notify(xbpslog.Event{State: xbpslog.ConfigFile, Path: target, Message: "kept current version"})
		return nil
	case confInstallNew:
		if e.KeepConfig {
			return writeRegularFromBytes(versionedPath(target, pkgver), data, hdr)
		}
		return writeRegularFromBytes(target, data, hdr)
	default: // confInstallAsNew
		dest := target
		if curHash != "" {
			dest = versionedPath(target, pkgver)
		}
		e.notify(xbpslog.Event{State: xbpslog.ConfigFile, Path: dest, Message: "installed alongside modified copy"})
		return writeRegularFromBytes(dest, data, hdr)
	}
}

func (e *Engine) extractConfSymlink(hdr *tar.Header, target, origHash, pkgver string) error {
	curTarget, err := os.Readlink(target)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	action := mergeConfFile(origHash, curTarget, hdr.Linkname)
	if action == confSkip || action == confKeepCurrent {
		return nil
	}
	dest := target
	if curTarget != "" && action == confInstallAsNew {
		dest = versionedPath(target, pkgver)
	}
	_ = os.Remove(dest)
	return os.Symlink(hdr.Linkname, dest)
}

// versionedPath builds spec §4.9's "<path>.new-V" conffile side-install
// name, where V is the incoming package's version_revision (the part of
// pkgver after the package name), matching original_source's "%s.new-%s"
// naming with the dewey version string.
func versionedPath(target, pkgver string) string {
	idx := strings.LastIndexByte(pkgver, '-')
	version := pkgver
	if idx >= 0 {
		version = pkgver[idx+1:]
	}
	return target + ".new-" + version
}

func inPreserveList(path string, preserve []string) bool {
	for _, p := range preserve {
		if p == path {
			return true
		}
	}
	return false
}

func typeMismatch(info fs.FileInfo, hdr *tar.Header) bool {
	isDirOnDisk := info.IsDir()
	isSymlinkOnDisk := info.Mode()&os.ModeSymlink != 0
	switch hdr.Typeflag {
	case tar.TypeDir:
		return !isDirOnDisk
	case tar.TypeSymlink:
		return !isSymlinkOnDisk
	default:
		return isDirOnDisk || isSymlinkOnDisk
	}
}

func secureJoin(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", errs.Invalid("unpack: archive member %q is an absolute path", rel)
	}
	cleaned := xbpsutil.Clean("/" + rel)
	if cleaned == "/.." {
		return "", errs.Invalid("unpack: archive member %q escapes rootdir", rel)
	}
	return filepath.Join(root, cleaned), nil
}

func writeEntry(tr *tar.Reader, hdr *tar.Header, target string) error {
	switch hdr.Typeflag {
	case tar.TypeSymlink:
		_ = os.Remove(target)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeReg:
		data, err := io.ReadAll(tr)
		if err != nil {
			return err
		}
		return writeRegularFromBytes(target, data, hdr)
	default:
		return fmt.Errorf("unpack: unsupported tar entry type %v for %s", hdr.Typeflag, target)
	}
}

func writeRegularFromBytes(target string, data []byte, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if err := xbpsutil.WriteAtomic(target, data, os.FileMode(hdr.Mode)&0777); err != nil {
		return err
	}
	return applyMetadata(target, hdr)
}

func applyMetadata(target string, hdr *tar.Header) error {
	if err := os.Chmod(target, os.FileMode(hdr.Mode)&0777); err != nil {
		return err
	}
	if os.Geteuid() == 0 {
		_ = os.Chown(target, hdr.Uid, hdr.Gid)
	}
	return os.Chtimes(target, hdr.ModTime, hdr.ModTime)
}

func readAndHash(tr *tar.Reader) (hash string, data []byte, err error) {
	data, err = io.ReadAll(tr)
	if err != nil {
		return "", nil, err
	}
	return xbpsutil.BytesSHA256(data), data, nil
}
