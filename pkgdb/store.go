// Package pkgdb implements the installed-package database of spec.md
// §4.4: a TOML-serialized pkgname → pkgd mapping, locked for exclusive
// access, with derived vpkg and reverse-dependency indexes and a
// parallel read-only iteration helper. Grounded on the teacher's
// atomic-build-then-rename discipline (holo-build/common/build.go) for
// the locking/load/save lifecycle, generalized from a one-shot package
// build into a long-lived mutable store.
package pkgdb

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/xbpslog"
)

// schemaVersion is bumped whenever the on-disk pkgdb.toml layout
// changes in a way old readers can't tolerate.
const schemaVersion = 1

const (
	metadirName = "xbps.d"
	pkgdbName   = "pkgdb.toml"
	lockName    = "pkgdb.lock"
)

type onDiskDB struct {
	SchemaVersion int                               `toml:"schema-version"`
	Packages      map[string]*model.PackageRecord    `toml:"packages"`
	Alternatives  map[string]*model.AlternativeGroup `toml:"alternatives,omitempty"`
}

// DB is a locked, in-memory view of the installed-package database.
type DB struct {
	rootDir string
	lock    *xbpsutil.Lock
	log     *xbpslog.Logger

	mu       sync.RWMutex
	packages map[string]*model.PackageRecord

	// alternatives is the reserved _XBPS_ALTERNATIVES_ key: group name
	// to the ordered sequence of provider pkgnames, head is active.
	alternatives map[string][]string

	vpkgIndex   map[string]string   // vpkg -> pkgname
	revdepIndex map[string][]string // pkgname -> dependent pkgvers, built lazily
}

func metadir(rootDir string) string { return filepath.Join(rootDir, metadirName) }

// Metadir exposes rootDir's metadata directory (spec §6's "xbps.d"
// layout) to callers outside this package that need to root a sibling
// store there, such as keys.Open.
func Metadir(rootDir string) string { return metadir(rootDir) }

// Lock implements spec §4.4's pkgdb.lock: ensure the metadir and an
// empty pkgdb exist, flock non-blocking, load from disk, and build the
// vpkg index.
func Lock(rootDir string, log *xbpslog.Logger) (*DB, error) {
	dir := metadir(rootDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "pkgdb: creating metadir %s", dir)
	}

	dbPath := filepath.Join(dir, pkgdbName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		empty := onDiskDB{SchemaVersion: schemaVersion, Packages: map[string]*model.PackageRecord{}}
		if err := writeDB(dbPath, &empty); err != nil {
			return nil, err
		}
	}

	lock, err := xbpsutil.AcquireLock(filepath.Join(dir, lockName), false)
	if err != nil {
		return nil, errs.Busy("pkgdb: %s: %v", rootDir, err)
	}

	if err := checkWritable(rootDir); err != nil {
		lock.Release()
		return nil, err
	}

	db := &DB{rootDir: rootDir, lock: lock, log: log}
	if err := db.reload(); err != nil {
		lock.Release()
		return nil, err
	}
	return db, nil
}

func checkWritable(rootDir string) error {
	probe := filepath.Join(rootDir, ".xbps-writable-check")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return errs.NotFound("pkgdb: rootdir %s is not writable: %v", rootDir, err)
	}
	f.Close()
	return os.Remove(probe)
}

// Release unlocks the database. It does not flush in-memory changes;
// callers must call Update(flush=true) first.
func (db *DB) Release() error {
	return db.lock.Release()
}

func (db *DB) dbPath() string { return filepath.Join(metadir(db.rootDir), pkgdbName) }

func (db *DB) reload() error {
	onDisk, err := readDB(db.dbPath())
	if err != nil {
		return err
	}
	if onDisk.SchemaVersion > schemaVersion {
		return errs.Unsupported("pkgdb: %s has schema version %d, this build only understands up to %d",
			db.dbPath(), onDisk.SchemaVersion, schemaVersion)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.packages = onDisk.Packages
	if db.packages == nil {
		db.packages = map[string]*model.PackageRecord{}
	}
	for name, pkg := range db.packages {
		pkg.Pkgname = name
	}
	db.alternatives = map[string][]string{}
	for group, alt := range onDisk.Alternatives {
		db.alternatives[group] = alt.Providers
	}
	db.rebuildVpkgIndexLocked()
	db.revdepIndex = nil
	return nil
}

func readDB(path string) (*onDiskDB, error) {
	var doc onDiskDB
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if os.IsNotExist(err) {
			return &onDiskDB{SchemaVersion: schemaVersion, Packages: map[string]*model.PackageRecord{}}, nil
		}
		return nil, errs.Invalid("pkgdb: decoding %s: %v", path, err)
	}
	return &doc, nil
}

func writeDB(path string, doc *onDiskDB) error {
	tmp, err := xbpsutil.NewAtomicFile(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(tmp).Encode(doc); err != nil {
		tmp.Discard()
		return errors.Wrap(err, "pkgdb: encoding")
	}
	if err := tmp.Commit(0644); err != nil {
		tmp.Discard()
		return err
	}
	return tmp.Close()
}

// Update implements spec §4.4's pkgdb.update: if flush is set and the
// in-memory state differs from disk, write it atomically; if reload is
// set, re-read from disk afterward (or instead, if flush is false).
func (db *DB) Update(flush, reload bool) error {
	if flush {
		doc := db.snapshot()
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return errors.Wrap(err, "pkgdb: encoding")
		}
		if onDisk, err := os.ReadFile(db.dbPath()); err != nil || !bytes.Equal(onDisk, buf.Bytes()) {
			if err := writeDB(db.dbPath(), doc); err != nil {
				return err
			}
		}
	}
	if reload {
		return db.reload()
	}
	return nil
}

func (db *DB) snapshot() *onDiskDB {
	db.mu.RLock()
	defer db.mu.RUnlock()

	doc := &onDiskDB{SchemaVersion: schemaVersion, Packages: db.packages}
	if len(db.alternatives) > 0 {
		doc.Alternatives = make(map[string]*model.AlternativeGroup, len(db.alternatives))
		for group, providers := range db.alternatives {
			doc.Alternatives[group] = &model.AlternativeGroup{Providers: providers}
		}
	}
	return doc
}

// Put inserts or replaces pkg, keyed by pkg.Pkgname (spec §3 invariant:
// "pkgd.pkgname is equal to the key under which pkgd is stored").
func (db *DB) Put(pkg *model.PackageRecord) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.packages[pkg.Pkgname] = pkg
	db.rebuildVpkgIndexLocked()
	db.revdepIndex = nil
}

// Delete removes pkgname from the database.
func (db *DB) Delete(pkgname string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.packages, pkgname)
	db.rebuildVpkgIndexLocked()
	db.revdepIndex = nil
}

// AlternativeGroupProviders returns the ordered provider list for
// group, whose head is the currently active provider (spec §3).
func (db *DB) AlternativeGroupProviders(group string) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]string(nil), db.alternatives[group]...)
}

// SetAlternativeGroupProviders replaces group's provider list.
func (db *DB) SetAlternativeGroupProviders(group string, providers []string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.alternatives == nil {
		db.alternatives = map[string][]string{}
	}
	db.alternatives[group] = providers
}

// Len returns the number of installed package records.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.packages)
}
