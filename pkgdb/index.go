package pkgdb

import (
	"strings"

	"github.com/voidpkg/xbps-go/match"
	"github.com/voidpkg/xbps-go/model"
)

// rebuildVpkgIndexLocked scans every installed package's provides and
// rebuilds the vpkg → pkgname index (spec §4.4 step 5). Caller must
// hold db.mu for writing.
func (db *DB) rebuildVpkgIndexLocked() {
	db.vpkgIndex = make(map[string]string, len(db.packages))
	for name, pkg := range db.packages {
		for _, vpkg := range pkg.Provides {
			// Last writer wins per the ordering of Go map iteration
			// being unspecified is fine here: spec §3 only guarantees
			// "exactly one mapping per key", not which writer wins
			// when the install order is ambiguous.
			db.vpkgIndex[vpkgName(vpkg)] = name
		}
	}
}

func vpkgName(vpkg string) string {
	if idx := strings.LastIndexByte(vpkg, '-'); idx > 0 {
		return vpkg[:idx]
	}
	return vpkg
}

// GetPkg resolves a pkgver, pkgpattern, or plain pkgname to its record,
// mirroring the repository lookup semantics of spec §4.3/§4.4.
func (db *DB) GetPkg(pkg string) (*model.PackageRecord, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if rec, ok := db.packages[vpkgName(pkg)]; ok && rec.Pkgver == pkg {
		return rec, true
	}
	if strings.ContainsAny(pkg, "<>=*?[") {
		name := match.PatternName(pkg)
		if rec, ok := db.packages[name]; ok && match.Match(pkg, rec.Pkgver) {
			return rec, true
		}
		return nil, false
	}
	rec, ok := db.packages[pkg]
	return rec, ok
}

// GetVirtualPkg implements spec §4.4's get_virtualpkg: the vpkg index
// first, falling back to a linear provides scan.
func (db *DB) GetVirtualPkg(pattern string) (*model.PackageRecord, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	name := match.PatternName(pattern)
	if pkgname, ok := db.vpkgIndex[name]; ok {
		if rec, ok := db.packages[pkgname]; ok {
			return rec, true
		}
	}
	for _, pkg := range db.packages {
		if match.MatchProvides(pattern, pkg.Provides) {
			return pkg, true
		}
	}
	return nil, false
}

// GetRevdeps implements spec §4.4's get_revdeps: a transitive index
// built on first use, mapping each package name to the pkgvers of the
// installed packages that depend on it.
func (db *DB) GetRevdeps(name string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.revdepIndex == nil {
		db.revdepIndex = db.buildRevdepIndexLocked()
	}
	return append([]string(nil), db.revdepIndex[name]...)
}

// RequiredBy implements original_source/lib/package_requiredby.c's
// standalone query: the plain pkgnames of installed packages that
// depend on name, independent of the transaction check pipeline.
func (db *DB) RequiredBy(name string) []string {
	pkgvers := db.GetRevdeps(name)
	names := make([]string, 0, len(pkgvers))
	for _, pkgver := range pkgvers {
		names = append(names, vpkgName(pkgver))
	}
	return names
}

func (db *DB) buildRevdepIndexLocked() map[string][]string {
	idx := make(map[string][]string)
	for _, pkg := range db.packages {
		for _, dep := range pkg.RunDepends {
			depName := match.PatternName(dep)
			if resolved, ok := db.vpkgIndex[depName]; ok {
				depName = resolved
			}
			idx[depName] = append(idx[depName], pkg.Pkgver)
		}
	}
	return idx
}
