package resolve

import (
	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/match"
	"github.com/voidpkg/xbps-go/model"
)

// maxDepth is the recursion ceiling of spec §4.6 ("repo_deps,
// depth-limited to 512").
const maxDepth = 512

// RepoDeps implements spec §4.6's repo_deps: recursively walk staged's
// run_depends, queuing every package that needs installing/updating
// into trans, and append unresolved requirements to trans.MissingDeps.
func (r *Resolver) RepoDeps(trans *model.Transaction, staged *model.PackageRecord) error {
	return r.repoDeps(trans, staged, 0)
}

func (r *Resolver) repoDeps(trans *model.Transaction, staged *model.PackageRecord, depth int) error {
	if depth > maxDepth {
		return errs.Cycle("resolve: dependency recursion exceeded depth %d while resolving %s", maxDepth, staged.Pkgver)
	}

	for _, dep := range staged.RunDepends {
		depName := match.PatternName(dep)

		if r.Ignore[depName] {
			continue
		}
		if match.MatchProvides(dep, staged.Provides) {
			continue
		}
		if r.alreadyQueued(trans, dep) {
			continue
		}

		installedDep, isInstalled := r.resolveInstalled(dep, depName)

		if isInstalled && match.Match(dep, installedDep.Pkgver) {
			switch installedDep.State {
			case model.StateUnpacked:
				trans.Packages = append(trans.Packages, model.TransactionEntry{
					Package: installedDep.Clone(),
					Action:  model.ActionConfigure,
				})
			case model.StateInstalled:
				// already satisfied, nothing to queue
			}
			continue
		}

		candidate, ok := r.lookupDependency(dep, staged)
		if !ok {
			trans.MissingDeps = append(trans.MissingDeps, dep)
			continue
		}

		action := model.ActionInstall
		if isInstalled {
			action = model.ActionUpdate
		}
		if r.DownloadOnly {
			action = model.ActionDownload
		}

		queued := candidate.Clone()
		queued.AutomaticInstall = true
		if isInstalled {
			queued.Hold = installedDep.Hold
			queued.RepoLock = installedDep.RepoLock
		}

		if err := r.repoDeps(trans, queued, depth+1); err != nil {
			return err
		}
		trans.Packages = append(trans.Packages, model.TransactionEntry{Package: queued, Action: action})
	}
	return nil
}

func (r *Resolver) resolveInstalled(dep, depName string) (*model.PackageRecord, bool) {
	if rec, ok := r.DB.GetPkg(depName); ok {
		return rec, true
	}
	return r.DB.GetVirtualPkg(dep)
}

// lookupDependency finds dep in the repository pool, pinning the
// search to the installing package's own repository when it carries
// hold or repolock (spec §4.6 step 7).
func (r *Resolver) lookupDependency(dep string, installing *model.PackageRecord) (*model.PackageRecord, bool) {
	if installing.Hold || installing.RepoLock {
		for _, repository := range r.Pool.Repos {
			if repository.URL != installing.Repository {
				continue
			}
			if rec, ok := repository.GetPkg(dep); ok {
				return rec, true
			}
			return repository.GetVirtualPkg(dep)
		}
		return nil, false
	}
	if rec, ok := r.Pool.GetPkg(dep); ok {
		return rec, true
	}
	return r.Pool.GetVirtualPkg(dep)
}

// alreadyQueued implements spec §4.6 step 3: a transaction entry
// already satisfies dep and is not being removed.
func (r *Resolver) alreadyQueued(trans *model.Transaction, dep string) bool {
	for _, entry := range trans.Packages {
		if entry.Action == model.ActionRemove {
			continue
		}
		if match.Match(dep, entry.Package.Pkgver) || match.MatchProvides(dep, entry.Package.Provides) {
			return true
		}
	}
	return false
}
