// Package resolve implements the dependency resolver of spec.md §4.6:
// trans_find_pkg's per-package action decision, the recursive
// run_depends walk, whole-pkgdb update planning with a self-update
// guard, and package removal/orphan discovery. Grounded on
// original_source/lib/transaction_pkg_deps.c (the install/reinstall/
// update decision tree) and lib/package_orphans.c (the automatic-
// install orphan rule).
package resolve

import (
	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/match"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/pkgdb"
	"github.com/voidpkg/xbps-go/repo"
)

// Resolver ties together the installed-package database and the
// configured repository pool, the two lookup surfaces every resolver
// entry point needs.
type Resolver struct {
	DB   *pkgdb.DB
	Pool *repo.Pool

	// Ignore holds package names the resolver must never pull in as a
	// dependency (spec §4.6 step 1 of repo_deps).
	Ignore map[string]bool

	// DownloadOnly forces every resolved action to "download" (spec
	// §4.6: "Under download-only mode, always treat as install and tag
	// the action as download").
	DownloadOnly bool
}

// TransFindPkg implements spec §4.6's trans_find_pkg: choose the
// transaction action for a user-requested pkg (a name or pattern), and
// look the candidate up in the repository pool.
func (r *Resolver) TransFindPkg(pkg string, force bool) (*model.PackageRecord, model.TransactionAction, error) {
	installed, isInstalled := r.DB.GetPkg(pkg)

	if !isInstalled {
		candidate, ok := r.lookupForInstall(pkg, nil)
		if !ok {
			return nil, model.ActionNone, errs.NotFound("resolve: %s not found in any configured repository", pkg)
		}
		action := model.ActionInstall
		if r.DownloadOnly {
			action = model.ActionDownload
		}
		return candidate.Clone(), action, nil
	}

	if r.DownloadOnly {
		candidate, ok := r.lookupForInstall(pkg, installed)
		if !ok {
			return nil, model.ActionNone, errs.NotFound("resolve: %s not found in any configured repository", pkg)
		}
		staged := candidate.Clone()
		inheritFlags(staged, installed)
		return staged, model.ActionDownload, nil
	}

	if force {
		candidate, ok := r.lookupForInstall(pkg, installed)
		if !ok {
			return nil, model.ActionNone, errs.NotFound("resolve: %s not found in any configured repository", pkg)
		}
		staged := candidate.Clone()
		inheritFlags(staged, installed)

		action := model.ActionReinstall
		if match.CompareVersions(candidate.Pkgver, installed.Pkgver) > 0 {
			// spec §4.6: "For reinstall, downgrade to update if the
			// repo candidate is strictly newer."
			action = model.ActionUpdate
		}
		return staged, applyHold(staged, action, force), nil
	}

	candidate, ok := r.lookupForInstall(pkg, installed)
	if !ok {
		return nil, model.ActionNone, errs.NotFound("resolve: %s not found in any configured repository", pkg)
	}
	if match.CompareVersions(candidate.Pkgver, installed.Pkgver) <= 0 {
		return nil, model.ActionNone, errs.NotFound("resolve: %s has no newer version available", pkg)
	}
	staged := candidate.Clone()
	inheritFlags(staged, installed)
	return staged, applyHold(staged, model.ActionUpdate, force), nil
}

// lookupForInstall finds pkg in the repository pool, restricting to the
// originally-installed package's repository when repolock is set (spec
// §4.6: "if the installed package has repolock, restrict the lookup to
// the original repository").
func (r *Resolver) lookupForInstall(pkg string, installed *model.PackageRecord) (*model.PackageRecord, bool) {
	if installed != nil && installed.RepoLock {
		for _, repository := range r.Pool.Repos {
			if repository.URL != installed.Repository {
				continue
			}
			return repository.GetPkg(pkg)
		}
		return nil, false
	}
	if rec, ok := r.Pool.GetPkg(pkg); ok {
		return rec, true
	}
	return r.Pool.GetVirtualPkg(pkg)
}

func inheritFlags(staged, installed *model.PackageRecord) {
	staged.AutomaticInstall = installed.AutomaticInstall
	staged.Hold = installed.Hold
	staged.RepoLock = installed.RepoLock
}

// applyHold implements spec §4.6's last rule: "If the staged copy has
// hold = true and force = false, the action is hold (no-op in commit)."
func applyHold(staged *model.PackageRecord, action model.TransactionAction, force bool) model.TransactionAction {
	if staged.Hold && !force {
		return model.ActionHold
	}
	return action
}
