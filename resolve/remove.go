package resolve

import (
	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/model"
)

// RemovePkg implements spec §4.6's remove_pkg: queue name for removal,
// and recursively its orphans if recursive is set.
func (r *Resolver) RemovePkg(trans *model.Transaction, name string, recursive bool) error {
	pkg, ok := r.DB.GetPkg(name)
	if !ok {
		return errs.NotFound("resolve: %s is not installed", name)
	}

	seeds := map[string]bool{pkg.Pkgname: true}
	trans.Packages = append(trans.Packages, model.TransactionEntry{Package: pkg.Clone(), Action: model.ActionRemove})

	if !recursive {
		return nil
	}
	for _, orphan := range r.findPkgOrphans(seeds) {
		trans.Packages = append(trans.Packages, model.TransactionEntry{Package: orphan.Clone(), Action: model.ActionRemove})
	}
	return nil
}

// AutoremovePkgs implements spec §4.6's autoremove_pkgs: every
// automatic-install package that is now an orphan (no installed,
// non-removed package depends on it) is queued for removal.
func (r *Resolver) AutoremovePkgs(trans *model.Transaction) error {
	for _, orphan := range r.Orphans() {
		trans.Packages = append(trans.Packages, model.TransactionEntry{Package: orphan.Clone(), Action: model.ActionRemove})
	}
	return nil
}

// Orphans returns every automatic-install package with no remaining
// dependent, the standalone query form of the orphan rule (spec §4.6,
// supplemented per original_source/lib/package_orphans.c).
func (r *Resolver) Orphans() []*model.PackageRecord {
	return r.findPkgOrphans(nil)
}

// findPkgOrphans computes the transitive closure of packages that
// become unreferenced once the names in removing are taken out: every
// automatic-install package whose only remaining installed dependents
// are themselves orphaned (or already in removing).
func (r *Resolver) findPkgOrphans(removing map[string]bool) []*model.PackageRecord {
	if removing == nil {
		removing = map[string]bool{}
	}
	removed := map[string]bool{}
	for name := range removing {
		removed[name] = true
	}

	var orphans []*model.PackageRecord
	changed := true
	for changed {
		changed = false
		_ = r.DB.ForEachCB(func(pkg *model.PackageRecord) error {
			if removed[pkg.Pkgname] || !pkg.AutomaticInstall {
				return nil
			}
			if r.hasLiveDependent(pkg.Pkgname, removed) {
				return nil
			}
			removed[pkg.Pkgname] = true
			orphans = append(orphans, pkg)
			changed = true
			return nil
		})
	}
	return orphans
}

// hasLiveDependent reports whether any installed, non-removed package
// still depends on name.
func (r *Resolver) hasLiveDependent(name string, removed map[string]bool) bool {
	for _, depVer := range r.DB.GetRevdeps(name) {
		dependent, ok := r.DB.GetPkg(depVer)
		if !ok {
			continue
		}
		if removed[dependent.Pkgname] {
			continue
		}
		return true
	}
	return false
}

// FullDepTree returns every installed package reachable from name's
// run_depends, transitively (the standalone query supplementing §4.6,
// grounded on original_source/lib/package_fulldeptree.c).
func (r *Resolver) FullDepTree(name string) []*model.PackageRecord {
	visited := map[string]bool{}
	var out []*model.PackageRecord
	var walk func(string)
	walk = func(n string) {
		pkg, ok := r.DB.GetPkg(n)
		if !ok || visited[pkg.Pkgname] {
			return
		}
		visited[pkg.Pkgname] = true
		out = append(out, pkg)
		for _, dep := range pkg.RunDepends {
			walk(dep)
		}
	}
	walk(name)
	return out
}
