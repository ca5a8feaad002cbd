// Package keys implements the accepted-repository-key store of
// original_source/lib/repo_keys.c, supplemented into this spec per
// SPEC_FULL.md: one `keys/<fingerprint>.toml` file per trusted
// signing key, with an explicit Trust/Revoke API rather than a
// read-only path. Grounded on pkgdb's atomic-write-then-rename
// discipline (pkgdb/store.go), generalized from "one big mapping
// file" to "one file per key" since spec §6 lays the keys directory
// out that way.
package keys

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/voidpkg/xbps-go/crypto"
	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
)

const keysDirName = "keys"

// Store manages the `<metadir>/keys/` directory of trusted repository
// signing keys.
type Store struct {
	dir string
}

// Open returns a Store rooted at metadir's keys subdirectory, creating
// it if necessary.
func Open(metadir string) (*Store, error) {
	dir := filepath.Join(metadir, keysDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.NotFound("keys: creating %s: %v", dir, err)
	}
	return &Store{dir: dir}, nil
}

type keyDoc struct {
	RepositoryURL string `toml:"repository-url"`
	PublicKey     []byte `toml:"public-key"`
}

func (s *Store) path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".toml")
}

// Trust persists pk as accepted for repoURL, keyed by its fingerprint.
func (s *Store) Trust(repoURL string, pk *crypto.PublicKey) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(keyDoc{RepositoryURL: repoURL, PublicKey: pk.Encode()}); err != nil {
		return err
	}
	return xbpsutil.WriteAtomic(s.path(pk.KeyNumHex()), buf.Bytes(), 0644)
}

// Revoke removes a previously trusted key by fingerprint.
func (s *Store) Revoke(fingerprint string) error {
	if err := os.Remove(s.path(fingerprint)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Get returns the trusted key for fingerprint, if any.
func (s *Store) Get(fingerprint string) (*crypto.PublicKey, bool) {
	data, err := os.ReadFile(s.path(fingerprint))
	if err != nil {
		return nil, false
	}
	var doc keyDoc
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, false
	}
	pk, err := crypto.DecodePublicKey(bytes.NewReader(doc.PublicKey))
	if err != nil {
		return nil, false
	}
	return pk, true
}

// All loads every trusted key, keyed by fingerprint, for handing to
// repo.Open as its trustedKeys argument.
func (s *Store) All() (map[string]*crypto.PublicKey, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*crypto.PublicKey, len(entries))
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".toml" {
			continue
		}
		fp := ent.Name()[:len(ent.Name())-len(".toml")]
		if pk, ok := s.Get(fp); ok {
			out[fp] = pk
		}
	}
	return out, nil
}
