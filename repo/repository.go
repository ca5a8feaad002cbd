// Package repo implements the repository layer of spec.md §4.3: a
// repository is a TOML-serialized index/metadata/stage triple fetched
// from a local path or HTTP(S) URL, with optional signature
// verification against a trusted public key. Grounded on the teacher's
// package/filesystem TOML codec style (holo-build/common/entities.go
// uses BurntSushi/toml the same way) and on the repo metadata layout of
// original_source/lib/repository_pool_find.c and lib/rindex.c.
package repo

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/voidpkg/xbps-go/crypto"
	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/match"
	"github.com/voidpkg/xbps-go/model"
)

// Metadata holds index-meta.toml's contents (spec §3): an optional
// embedded public key and the fingerprint it was signed with.
type Metadata struct {
	PublicKey     []byte `toml:"public-key,omitempty"`
	PublicKeySize int    `toml:"public-key-size,omitempty"`
	SignedBy      string `toml:"signature-by,omitempty"`
}

// Repository is an opened `<arch>-repodata` archive: the merged index
// (plus any staged entries) and its metadata.
type Repository struct {
	URL          string
	Architecture string

	idx        map[string]*model.PackageRecord
	Meta       Metadata
	TrustedKey *crypto.PublicKey
}

// KeyImportFunc prompts the user to accept a repository's first-seen
// signing key (spec §4.3 step 3). Returning false leaves the
// repository unusable (EAGAIN).
type KeyImportFunc func(repoURL string, pk *crypto.PublicKey) bool

// Open fetches and parses url's "<arch>-repodata" archive. cacheDir is
// used to mirror remote archives; trustedKeys maps a keynum hex
// fingerprint to an already-accepted public key, and onImport is
// consulted for unseen keys.
func Open(repoURL, architecture, cacheDir string, trustedKeys map[string]*crypto.PublicKey, onImport KeyImportFunc) (*Repository, error) {
	data, err := fetchRepodata(repoURL, architecture, cacheDir)
	if err != nil {
		return nil, err
	}

	index, err := readMember(data, "index.toml")
	if err != nil {
		return nil, err
	}
	meta, err := readMetaMember(data, "index-meta.toml")
	if err != nil {
		return nil, err
	}
	stage, err := readMember(data, "stage.toml")
	if err != nil {
		return nil, err
	}

	r := &Repository{URL: repoURL, Architecture: architecture, idx: index, Meta: meta}

	if isRemote(repoURL) && len(meta.PublicKey) > 0 {
		pk, err := crypto.DecodePublicKey(bytes.NewReader(meta.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("repo: decoding embedded public key for %s: %w", repoURL, err)
		}
		fp := pk.KeyNumHex()
		if trustedKeys[fp] == nil {
			if onImport == nil || !onImport(repoURL, pk) {
				return nil, errs.PackageBusy("repo: %s: signing key %s not yet imported", repoURL, fp)
			}
			trustedKeys[fp] = pk
		}
		r.TrustedKey = trustedKeys[fp]
	}

	if len(stage) > 0 {
		merged := make(map[string]*model.PackageRecord, len(index)+len(stage))
		for k, v := range index {
			merged[k] = v
		}
		for k, v := range stage {
			merged[k] = v // stage overrides on key collisions (spec §4.3 step 4)
		}
		r.idx = merged
	}

	for name, pkg := range r.idx {
		pkg.Pkgname = name
		pkg.Repository = repoURL
	}
	return r, nil
}

func isRemote(repoURL string) bool {
	u, err := url.Parse(repoURL)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// repodataMembers is the parsed form of an "<arch>-repodata" archive:
// three independently optional TOML documents keyed by member name.
type repodataMembers map[string][]byte

func fetchRepodata(repoURL, architecture, cacheDir string) (repodataMembers, error) {
	name := architecture + "-repodata"
	var r io.ReadCloser
	var err error

	if isRemote(repoURL) {
		cachePath := filepath.Join(cacheDir, sanitizeRepoURL(repoURL), name)
		if err := mirrorRemote(repoURL, name, cachePath); err != nil {
			return nil, err
		}
		r, err = os.Open(cachePath)
	} else {
		r, err = os.Open(filepath.Join(repoURL, name))
	}
	if os.IsNotExist(err) {
		// A missing repodata archive is permitted; every member reads
		// back as an empty dictionary (spec §4.3 step 2).
		return repodataMembers{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repo: opening %s: %w", name, err)
	}
	defer r.Close()

	return parseRepodataArchive(r)
}

func mirrorRemote(repoURL, name, cachePath string) error {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return err
	}
	resp, err := http.Get(strings.TrimSuffix(repoURL, "/") + "/" + name)
	if err != nil {
		return fmt.Errorf("repo: fetching %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("repo: fetching %s: unexpected status %s", name, resp.Status)
	}
	return xbpsutil.WriteAtomic(cachePath, mustReadAll(resp.Body), 0644)
}

func mustReadAll(r io.Reader) []byte {
	b, _ := io.ReadAll(r)
	return b
}

func sanitizeRepoURL(repoURL string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_")
	return replacer.Replace(repoURL)
}

func readMember(members repodataMembers, name string) (map[string]*model.PackageRecord, error) {
	blob, ok := members[name]
	if !ok || len(blob) == 0 {
		return map[string]*model.PackageRecord{}, nil
	}
	var doc struct {
		Packages map[string]*model.PackageRecord `toml:"packages"`
	}
	if _, err := toml.Decode(string(blob), &doc); err != nil {
		return nil, errs.Invalid("repo: decoding %s: %v", name, err)
	}
	if doc.Packages == nil {
		return map[string]*model.PackageRecord{}, nil
	}
	return doc.Packages, nil
}

func readMetaMember(members repodataMembers, name string) (Metadata, error) {
	blob, ok := members[name]
	if !ok || len(blob) == 0 {
		return Metadata{}, nil
	}
	var meta Metadata
	if _, err := toml.Decode(string(blob), &meta); err != nil {
		return Metadata{}, errs.Invalid("repo: decoding %s: %v", name, err)
	}
	return meta, nil
}

// GetPkg implements spec §4.3's get_pkg: exact pkgver match, pattern
// match by name, or a plain pkgname lookup, in that order.
func (r *Repository) GetPkg(pkg string) (*model.PackageRecord, bool) {
	if i := strings.LastIndexByte(pkg, '-'); i > 0 {
		if rec, ok := r.idx[pkg[:i]]; ok && rec.Pkgver == pkg {
			return rec, true
		}
	}
	if strings.ContainsAny(pkg, "<>=*?[") {
		name := match.PatternName(pkg)
		if rec, ok := r.idx[name]; ok && match.Match(pkg, rec.Pkgver) {
			return rec, true
		}
		return nil, false
	}
	rec, ok := r.idx[pkg]
	return rec, ok
}

// GetVirtualPkg implements spec §4.3's get_virtualpkg: a linear scan of
// entries whose provides satisfies pattern.
func (r *Repository) GetVirtualPkg(pattern string) (*model.PackageRecord, bool) {
	for _, rec := range r.idx {
		if match.MatchProvides(pattern, rec.Provides) {
			return rec, true
		}
	}
	return nil, false
}

// GetRevdeps implements spec §4.3's get_revdeps: every entry whose
// run_depends references pkg's pkgver, any of its provides, or its
// pkgname, filtered to architectures compatible with hostArch.
func (r *Repository) GetRevdeps(pkg *model.PackageRecord, hostArch string) []*model.PackageRecord {
	var out []*model.PackageRecord
	for _, rec := range r.idx {
		if rec.Architecture != "noarch" && hostArch != "" && rec.Architecture != hostArch {
			continue
		}
		for _, dep := range rec.RunDepends {
			if match.Match(dep, pkg.Pkgver) || match.Match(dep, pkg.Pkgname) || match.MatchProvides(dep, pkg.Provides) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// All returns every entry in the merged index, for rindex/query tools
// that need to enumerate a repository rather than look up one package.
func (r *Repository) All() map[string]*model.PackageRecord {
	return r.idx
}
