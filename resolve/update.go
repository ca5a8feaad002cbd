package resolve

import (
	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/model"
)

// selfPackageName is the resolver's own package name, checked by
// UpdatePackages' self-update guard (spec §4.6).
const selfPackageName = "xbps"

// UpdatePackages implements spec §4.6's update_packages: a dry-run
// self-update check, then TransFindPkg(name, force=false) for every
// installed package, accumulating resolved actions into trans and
// recursing into each candidate's own dependencies.
func (r *Resolver) UpdatePackages(trans *model.Transaction) error {
	if _, action, err := r.TransFindPkg(selfPackageName, false); err == nil && action == model.ActionUpdate {
		return errs.Busy("resolve: %s itself has an available update; update it before a full sysup", selfPackageName)
	}

	var names []string
	_ = r.DB.ForEachCB(func(pkg *model.PackageRecord) error {
		names = append(names, pkg.Pkgname)
		return nil
	})

	for _, name := range names {
		staged, action, err := r.TransFindPkg(name, false)
		if err != nil {
			// no update available for this package; not an error for
			// the sysup as a whole.
			continue
		}
		if err := r.RepoDeps(trans, staged); err != nil {
			return err
		}
		trans.Packages = append(trans.Packages, model.TransactionEntry{Package: staged, Action: action})
	}
	return nil
}
