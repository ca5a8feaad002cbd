package commit

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/voidpkg/xbps-go/crypto"
	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/xbpslog"
)

// archiveName returns the cache-relative filename of pkgver's binary
// package archive (spec §4.11 step 1 / §6's cache layout).
func archiveName(pkgver, arch string) string {
	return fmt.Sprintf("%s.%s.xbps", pkgver, arch)
}

func isRemoteRepo(repoURL string) bool {
	return strings.HasPrefix(repoURL, "http://") || strings.HasPrefix(repoURL, "https://")
}

// fetchOne implements spec §4.11 step 1 for a single package: download
// the `.sig` sibling first, then the archive itself, verifying both
// against the repository's pinned key before returning the local path.
// For a package already present locally (a same-host repository, or a
// cache hit), this degrades to step 2's verify-only path.
func fetchOne(repoURL, pkgver, arch, cacheDir string, filenameSHA256 string, trustedKey *crypto.PublicKey, sink xbpslog.EventSink) (string, error) {
	name := archiveName(pkgver, arch)

	if !isRemoteRepo(repoURL) {
		path := filepath.Join(repoURL, name)
		if _, err := os.Stat(path); err != nil {
			return "", errs.NotFound("commit: %s: %v", path, err)
		}
		return path, verifyArchive(path, filenameSHA256, trustedKey, sink)
	}

	dir := filepath.Join(cacheDir, sanitizeRepoURL(repoURL))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	archivePath := filepath.Join(dir, name)
	sigPath := archivePath + ".sig"

	if _, err := os.Stat(archivePath); err == nil {
		if verifyErr := verifyArchive(archivePath, filenameSHA256, trustedKey, sink); verifyErr == nil {
			return archivePath, nil
		}
		// Cache hit failed verification (stale or corrupt); re-fetch below.
	}

	notify(sink, xbpslog.Event{State: xbpslog.FetchStart, Pkgver: pkgver, Repository: repoURL})

	if err := downloadTo(strings.TrimSuffix(repoURL, "/")+"/"+name+".sig", sigPath); err != nil {
		os.Remove(sigPath)
		os.Remove(archivePath)
		return "", errs.Invalid("commit: fetching signature for %s: %v", pkgver, err)
	}
	if err := downloadTo(strings.TrimSuffix(repoURL, "/")+"/"+name, archivePath); err != nil {
		os.Remove(sigPath)
		os.Remove(archivePath)
		notify(sink, xbpslog.Event{State: xbpslog.FetchEnd, Pkgver: pkgver, Err: err})
		return "", errs.Invalid("commit: fetching %s: %v", pkgver, err)
	}

	notify(sink, xbpslog.Event{State: xbpslog.FetchEnd, Pkgver: pkgver})

	if err := verifyArchive(archivePath, filenameSHA256, trustedKey, sink); err != nil {
		os.Remove(sigPath)
		os.Remove(archivePath)
		return "", err
	}
	return archivePath, nil
}

// verifyArchive implements spec §4.11 step 2: SHA-256 against the
// repo-declared digest, then signature verification against the
// repository's pinned key (when one is configured).
func verifyArchive(path, wantSHA256 string, trustedKey *crypto.PublicKey, sink xbpslog.EventSink) error {
	notify(sink, xbpslog.Event{State: xbpslog.Verify, Path: path})

	if wantSHA256 != "" {
		got, err := xbpsutil.SHA256File(path)
		if err != nil {
			return err
		}
		if !xbpsutil.HashesEqual(got, wantSHA256) {
			err := errs.Integrity(syscall.ERANGE, "commit: %s: sha256 mismatch (got %s, want %s)", path, got, wantSHA256)
			notify(sink, xbpslog.Event{State: xbpslog.VerifyFail, Path: path, Err: err})
			return err
		}
	}

	if trustedKey == nil {
		return nil
	}
	sig, err := readMinisig(path + ".sig")
	if err != nil {
		notify(sink, xbpslog.Event{State: xbpslog.VerifyFail, Path: path, Err: err})
		return err
	}
	if err := crypto.Verify(trustedKey, path, sig); err != nil {
		notify(sink, xbpslog.Event{State: xbpslog.VerifyFail, Path: path, Err: err})
		return err
	}
	return nil
}

func readMinisig(path string) (*crypto.Minisig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.NotFound("commit: opening signature %s: %v", path, err)
	}
	defer f.Close()
	return crypto.DecodeMinisig(f)
}

func downloadTo(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return xbpsutil.WriteAtomic(dest, data, 0644)
}

func sanitizeRepoURL(repoURL string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_")
	return replacer.Replace(repoURL)
}

func notify(sink xbpslog.EventSink, ev xbpslog.Event) {
	if sink != nil {
		_ = sink.Notify(ev)
	}
}
