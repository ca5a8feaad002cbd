// Package transaction implements the prepare-time checks and
// deterministic sort of spec.md §4.7/§4.8: replaces, reverse-dependency
// breakage, conflicts, shared-library resolvability, and file-conflict/
// obsolete-file scheduling, followed by the dependency-ordering sort
// that commit executes against. Grounded on original_source/lib/
// package_replaces.c, package_conflicts.c, and package_find_obsoletes.c
// for the check ordering and diagnostics wording.
package transaction

import (
	"fmt"
	"os"

	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/match"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/pkgdb"
)

// Checker runs prepare's check pipeline against a staged transaction.
// A single merged pipeline (Run) executes replaces, revdeps, conflicts,
// shlibs and file-conflicts/obsoletes in the spec's documented order,
// per the Open Question decision recorded in SPEC_FULL.md.
type Checker struct {
	DB               *pkgdb.DB
	PreserveList     []string
	ForceOverwrite   bool
	ForceRemoveFiles bool
}

// Run executes the full check pipeline over trans in place, populating
// MissingDeps/Conflicts/MissingShlibs/ObsoleteFiles and returning the
// first hard filesystem error encountered (checks that only produce
// diagnostics do not themselves fail the call; HasBlockingIssues tells
// the caller whether prepare must still abort).
func (c *Checker) Run(trans *model.Transaction) error {
	c.checkReplaces(trans)
	c.checkRevdeps(trans)
	c.checkConflicts(trans)
	c.checkShlibs(trans)
	return c.checkFileConflicts(trans)
}

// FileCollect re-runs just the file-conflict/obsolete-scheduling pass,
// the "run the file-collect pass one final time" step of spec §4.11's
// commit orchestrator (the fuller Run already executed it once during
// prepare; commit re-validates against the now-verified archives).
func (c *Checker) FileCollect(trans *model.Transaction) error {
	return c.checkFileConflicts(trans)
}

// checkReplaces implements spec §4.7's "Replaces" pass.
func (c *Checker) checkReplaces(trans *model.Transaction) {
	for i := range trans.Packages {
		p := trans.Packages[i].Package
		action := trans.Packages[i].Action
		if action != model.ActionInstall && action != model.ActionUpdate && action != model.ActionReinstall {
			continue
		}
		for _, pattern := range p.Replaces {
			installed, ok := c.DB.GetPkg(match.PatternName(pattern))
			if !ok || installed.Pkgname == p.Pkgname {
				continue
			}
			if !match.Match(pattern, installed.Pkgver) {
				continue
			}

			rewrote := false
			for j := range trans.Packages {
				if trans.Packages[j].Package.Pkgname != installed.Pkgname {
					continue
				}
				if trans.Packages[j].Action == model.ActionInstall || trans.Packages[j].Action == model.ActionUpdate {
					trans.Packages[j].Action = model.ActionRemove
					rewrote = true
				}
			}
			if !rewrote {
				trans.Packages = append(trans.Packages, model.TransactionEntry{
					Package: installed.Clone(),
					Action:  model.ActionRemove,
				})
			}
			if match.MatchProvides(pattern, p.Provides) {
				p.AutomaticInstall = installed.AutomaticInstall
			}
		}
	}
}

// checkRevdeps implements spec §4.7's "Reverse dependencies" pass.
func (c *Checker) checkRevdeps(trans *model.Transaction) {
	inTrans := transactionIndex(trans)
	for _, entry := range trans.Packages {
		if entry.Action != model.ActionUpdate && entry.Action != model.ActionRemove {
			continue
		}
		p := entry.Package
		for _, depVer := range c.DB.GetRevdeps(p.Pkgname) {
			dependent, ok := c.DB.GetPkg(depVer)
			if !ok {
				continue
			}
			if other, queued := inTrans[dependent.Pkgname]; queued && (other == model.ActionUpdate || other == model.ActionRemove) {
				continue
			}

			satisfied := false
			for _, dep := range dependent.RunDepends {
				name := match.PatternName(dep)
				if name != p.Pkgname {
					if match.MatchProvides(dep, p.Provides) {
						satisfied = true
					}
					continue
				}
				if entry.Action == model.ActionRemove {
					continue
				}
				if match.Match(dep, p.Pkgver) {
					satisfied = true
				}
			}
			if !satisfied {
				trans.MissingDeps = append(trans.MissingDeps,
					fmt.Sprintf("%s breaks installed pkg %s", dependent.Pkgver, p.Pkgver))
			}
		}
	}
}

// checkConflicts implements spec §4.7's two-phase "Conflicts" pass.
func (c *Checker) checkConflicts(trans *model.Transaction) {
	inTrans := transactionIndex(trans)
	removing := func(name string) bool { return inTrans[name] == model.ActionRemove }

	for _, entry := range trans.Packages {
		p := entry.Package
		for _, pattern := range p.Conflicts {
			if installed, ok := c.DB.GetPkg(match.PatternName(pattern)); ok && !removing(installed.Pkgname) && match.Match(pattern, installed.Pkgver) {
				trans.Conflicts = append(trans.Conflicts, fmt.Sprintf("%s conflicts with installed %s", p.Pkgver, installed.Pkgver))
			}
			for _, other := range trans.Packages {
				if other.Package.Pkgname == p.Pkgname {
					continue
				}
				if match.Match(pattern, other.Package.Pkgver) {
					trans.Conflicts = append(trans.Conflicts, fmt.Sprintf("%s conflicts with staged %s", p.Pkgver, other.Package.Pkgver))
				}
			}
		}
	}

	_ = c.DB.ForEachCB(func(installed *model.PackageRecord) error {
		if _, queued := inTrans[installed.Pkgname]; queued {
			return nil
		}
		for _, pattern := range installed.Conflicts {
			for _, entry := range trans.Packages {
				if match.Match(pattern, entry.Package.Pkgver) {
					trans.Conflicts = append(trans.Conflicts, fmt.Sprintf("installed %s conflicts with staged %s", installed.Pkgver, entry.Package.Pkgver))
				}
			}
		}
		return nil
	})
}

// checkShlibs implements spec §4.7's "Shared libraries" pass.
func (c *Checker) checkShlibs(trans *model.Transaction) {
	shProvides := map[string]string{}
	shRequires := map[string][]string{}

	inTrans := transactionIndex(trans)
	visit := func(p *model.PackageRecord) {
		for _, soname := range p.ShlibProvides {
			shProvides[soname] = p.Pkgver
		}
		for _, soname := range p.ShlibRequires {
			shRequires[soname] = append(shRequires[soname], p.Pkgver)
		}
	}

	for _, entry := range trans.Packages {
		if entry.Action == model.ActionRemove || entry.Action == model.ActionHold {
			continue
		}
		visit(entry.Package)
	}
	_ = c.DB.ForEachCB(func(installed *model.PackageRecord) error {
		if _, queued := inTrans[installed.Pkgname]; queued {
			return nil // already visited as a staged entry above, or excluded by it
		}
		visit(installed)
		return nil
	})

	for soname, requirers := range shRequires {
		if _, ok := shProvides[soname]; ok {
			continue
		}
		for _, pkgver := range requirers {
			trans.MissingShlibs = append(trans.MissingShlibs, fmt.Sprintf("%s broken, unresolvable shlib %s", pkgver, soname))
		}
	}
}

func transactionIndex(trans *model.Transaction) map[string]model.TransactionAction {
	idx := make(map[string]model.TransactionAction, len(trans.Packages))
	for _, e := range trans.Packages {
		idx[e.Package.Pkgname] = e.Action
	}
	return idx
}

// baseSymlinks lists the compatibility symlinks spec §4.7 exempts from
// obsolete-file removal (e.g. /lib -> usr/lib on a merged-/usr system).
var baseSymlinks = map[string]bool{
	"/bin": true, "/sbin": true, "/lib": true, "/lib32": true,
	"/lib64": true, "/usr/lib32": true, "/usr/lib64": true, "/var/run": true,
}

func inPreserveList(path string, preserve []string) bool {
	for _, p := range preserve {
		if p == path {
			return true
		}
	}
	return false
}

// fileSlot is one claimant of a path in the ownership table
// checkFileConflicts builds (spec §4.7: "old"/"new" side fields).
type fileSlot struct {
	pkgname string
	index   int
	sha256  string
	target  string
	isDir   bool
}

// checkFileConflicts implements spec §4.7's "File conflicts and
// obsoletes" pass: a simplified single-hash-table walk (one entry per
// path keyed by the transaction slot that claims it), scheduling
// removals for paths that become truly obsolete.
func (c *Checker) checkFileConflicts(trans *model.Transaction) error {
	newOwners := map[string]fileSlot{}

	for idx, entry := range trans.Packages {
		if entry.Action == model.ActionRemove || entry.Action == model.ActionHold {
			continue
		}
		p := entry.Package
		for _, f := range p.Files {
			registerNewFile(newOwners, f.File, fileSlot{pkgname: p.Pkgname, index: idx, sha256: f.SHA256})
		}
		for _, f := range p.Links {
			registerNewFile(newOwners, f.File, fileSlot{pkgname: p.Pkgname, index: idx, target: f.Target})
		}
		for _, f := range p.Dirs {
			registerNewFile(newOwners, f.File, fileSlot{pkgname: p.Pkgname, index: idx, isDir: true})
		}
		// conf_files are intentionally excluded from the conflict table:
		// spec §4.7 says a conffile in the new side is never scheduled
		// for removal and is left to the conffile merger (unpack §4.9).
	}

	// spec §4.7 / §8 scenario 4: an installed package not being updated
	// or removed by this transaction still owns its files, so a staged
	// package claiming one of those paths (with no replaces relation to
	// vacate it) is a hard EEXIST conflict, not a silent overwrite.
	inTrans := transactionIndex(trans)
	_ = c.DB.ForEachCB(func(installed *model.PackageRecord) error {
		if action, queued := inTrans[installed.Pkgname]; queued && (action == model.ActionUpdate || action == model.ActionRemove) {
			return nil // vacating its files; the old-side obsolete pass below handles this package
		}
		reportOwned := func(files []model.FileEntry) {
			for _, f := range files {
				owner, claimed := newOwners[f.File]
				if !claimed || owner.pkgname == installed.Pkgname {
					continue
				}
				trans.Conflicts = append(trans.Conflicts, fmt.Sprintf(
					"%s and installed %s both claim %s",
					trans.Packages[owner.index].Package.Pkgver, installed.Pkgver, f.File))
			}
		}
		reportOwned(installed.Files)
		reportOwned(installed.ConfFiles)
		reportOwned(installed.Links)
		reportOwned(installed.Dirs)
		return nil
	})

	if trans.ObsoleteFiles == nil {
		trans.ObsoleteFiles = map[string][]string{}
	}

	for idx, entry := range trans.Packages {
		if entry.Action != model.ActionUpdate && entry.Action != model.ActionRemove {
			continue
		}
		p := entry.Package
		old, ok := c.DB.GetPkg(p.Pkgname)
		if !ok {
			continue
		}
		for _, f := range old.Files {
			if _, stillOwned := newOwners[f.File]; stillOwned {
				continue
			}
			if scheduled, err := c.scheduleObsoleteFile(f.File, f.SHA256, idx); err != nil {
				return err
			} else if scheduled {
				trans.ObsoleteFiles[p.Pkgname] = append(trans.ObsoleteFiles[p.Pkgname], f.File)
			}
		}
	}
	return nil
}

func registerNewFile(owners map[string]fileSlot, path string, s fileSlot) {
	owners[path] = s
}

func (c *Checker) scheduleObsoleteFile(path, wantSHA256 string, transIndex int) (bool, error) {
	if inPreserveList(path, c.PreserveList) {
		return false, nil
	}
	if baseSymlinks[path] {
		return false, nil
	}

	actual, err := xbpsutil.SHA256File(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil // already gone, treat as scheduled/handled
		}
		return false, err
	}
	if xbpsutil.HashesEqual(actual, wantSHA256) {
		return true, nil
	}
	if c.ForceRemoveFiles {
		return true, nil
	}
	return false, nil
}
