// Package commit implements the 11-phase commit orchestrator of
// spec.md §4.11: fetch, verify, file-collect, pre-scripts, unpack,
// register, flush, post/purge-scripts, configure, flush again.
// Grounded on original_source/lib/transaction_commit.c for phase
// ordering and on the teacher's build-pipeline structure (holo-build/
// common/build.go runs a fixed sequence of steps over one package; this
// generalizes that into a sequence of steps over a whole transaction).
package commit

import (
	"os"
	"strings"
	"time"

	"github.com/voidpkg/xbps-go/alternatives"
	"github.com/voidpkg/xbps-go/crypto"
	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/pkgdb"
	"github.com/voidpkg/xbps-go/transaction"
	"github.com/voidpkg/xbps-go/unpack"
	"github.com/voidpkg/xbps-go/xbpslog"
)

// Orchestrator runs commit() over a checked, sorted transaction.
type Orchestrator struct {
	DB       *pkgdb.DB
	RootDir  string
	Arch     string
	CacheDir string

	// TrustedKeys maps a repository URL to the signing key accepted for
	// it (populated from repo.Repository.TrustedKey by the caller), used
	// to verify fetched archives in phase 1/2.
	TrustedKeys map[string]*crypto.PublicKey

	Checker *transaction.Checker
	Alt     *alternatives.Manager
	Unpack  *unpack.Engine

	Sink         xbpslog.EventSink
	DownloadOnly bool

	// ForceConfigure re-runs the configure step even for a package
	// already in the installed state (package_configure.c's -f flag).
	ForceConfigure bool
}

func (o *Orchestrator) notify(ev xbpslog.Event) {
	if o.Sink != nil {
		_ = o.Sink.Notify(ev)
	}
}

// archivePaths accumulates, per pkgname, the local path of a fetched
// and verified archive, threaded from phase 1 into phase 6.
type archivePaths map[string]string

// Commit runs every phase of spec §4.11 over trans, which must already
// have passed transaction.Checker.Run (prepare) and been ordered by
// transaction.Sort.
func (o *Orchestrator) Commit(trans *model.Transaction) error {
	paths, err := o.fetchAndVerify(trans)
	if err != nil {
		return err
	}
	if o.DownloadOnly {
		return nil
	}

	if err := o.Checker.FileCollect(trans); err != nil {
		return err
	}
	if trans.HasBlockingIssues() {
		return errs.FileConflict("commit: unresolved file conflicts remain after final collection pass")
	}

	savedRemoveScripts, err := o.scriptPhasePre(trans)
	if err != nil {
		return err
	}

	fresh, err := o.unpackPhase(trans, paths)
	if err != nil {
		return err
	}

	o.registerPhase(fresh)

	if err := o.DB.Update(true, false); err != nil {
		return err
	}

	if err := o.scriptPhasePostPurge(savedRemoveScripts); err != nil {
		return err
	}

	if err := o.configurePhase(trans); err != nil {
		return err
	}

	return o.DB.Update(true, false)
}

// fetchAndVerify implements spec §4.11 steps 1-2: download (or
// locate) and verify every archive a non-removal action needs.
func (o *Orchestrator) fetchAndVerify(trans *model.Transaction) (archivePaths, error) {
	paths := archivePaths{}
	for _, entry := range trans.Packages {
		switch entry.Action {
		case model.ActionInstall, model.ActionUpdate, model.ActionReinstall, model.ActionDownload:
		default:
			continue
		}
		p := entry.Package
		path, err := fetchOne(p.Repository, p.Pkgver, o.Arch, o.CacheDir, p.FilenameSHA256, o.TrustedKeys[p.Repository], o.Sink)
		if err != nil {
			return nil, err
		}
		paths[p.Pkgname] = path
	}
	return paths, nil
}

// removeScriptSave pairs a saved remove-script with the installed
// record it was captured from; phase 9 runs its post and purge actions.
type removeScriptSave struct {
	pkg    *model.PackageRecord
	script []byte
}

// scriptPhasePre implements spec §4.11 step 5.
func (o *Orchestrator) scriptPhasePre(trans *model.Transaction) ([]removeScriptSave, error) {
	var saved []removeScriptSave

	for _, entry := range trans.Packages {
		p := entry.Package
		switch entry.Action {
		case model.ActionRemove, model.ActionUpdate:
			installed, ok := o.DB.GetPkg(p.Pkgname)
			if ok && len(installed.RemoveScript) > 0 {
				if err := runPackageScript(installed.RemoveScript, ActionPre, p.Pkgname, installed.Pkgver, entry.Action == model.ActionUpdate, false, o.Arch, o.RootDir); err != nil {
					return nil, errs.Invalid("commit: %s remove-script(pre): %v", p.Pkgname, err)
				}
				saved = append(saved, removeScriptSave{pkg: installed, script: installed.RemoveScript})
			}
		}
		switch entry.Action {
		case model.ActionInstall, model.ActionUpdate, model.ActionReinstall:
			if len(p.InstallScript) > 0 {
				update := entry.Action == model.ActionUpdate
				if err := runPackageScript(p.InstallScript, ActionPre, p.Pkgname, p.Pkgver, update, false, o.Arch, o.RootDir); err != nil {
					return nil, errs.Invalid("commit: %s install-script(pre): %v", p.Pkgname, err)
				}
			}
		}
	}
	return saved, nil
}

// unpackResult is one freshly (re)installed package, ready for phase 7.
type unpackResult struct {
	entry  model.TransactionEntry
	result *unpack.Result
}

// unpackPhase implements spec §4.11 step 6.
func (o *Orchestrator) unpackPhase(trans *model.Transaction, paths archivePaths) ([]unpackResult, error) {
	var fresh []unpackResult

	for _, entry := range trans.Packages {
		p := entry.Package

		switch entry.Action {
		case model.ActionRemove:
			if err := o.removePkg(p, false); err != nil {
				return nil, err
			}
			continue
		case model.ActionUpdate:
			if err := o.removePkg(p, true); err != nil {
				return nil, err
			}
		case model.ActionConfigure, model.ActionHold:
			continue
		}

		if entry.Action != model.ActionInstall && entry.Action != model.ActionUpdate && entry.Action != model.ActionReinstall {
			continue
		}

		archivePath, ok := paths[p.Pkgname]
		if !ok {
			return nil, errs.NotFound("commit: no fetched archive for %s", p.Pkgname)
		}
		f, err := os.Open(archivePath)
		if err != nil {
			return nil, err
		}
		tr, err := unpack.Open(f)
		if err != nil {
			f.Close()
			return nil, err
		}

		var installed *model.PackageRecord
		if entry.Action == model.ActionUpdate {
			installed, _ = o.DB.GetPkg(p.Pkgname)
		}

		res, err := o.Unpack.Unpack(tr, p.Pkgver, installed)
		f.Close()
		if err != nil {
			return nil, err
		}
		fresh = append(fresh, unpackResult{entry: entry, result: res})
	}
	return fresh, nil
}

// removePkg implements the inline remove_pkg of spec §4.9/§4.11 step 6.
// update=true is the "update" bullet's case: alternatives are still
// unregistered (the new version re-registers them right after its own
// unpack), but the files themselves are left for Unpack's own
// old-vs-new diff rather than deleted wholesale here.
func (o *Orchestrator) removePkg(p *model.PackageRecord, update bool) error {
	installed, ok := o.DB.GetPkg(p.Pkgname)
	if !ok {
		return nil
	}
	if err := o.Alt.Unregister(installed, !update); err != nil {
		return err
	}
	if update {
		return nil
	}
	if err := o.Unpack.RemovePackageFiles(installed); err != nil {
		return err
	}
	o.DB.Delete(p.Pkgname)
	return nil
}

// registerPhase implements spec §4.11 step 7.
func (o *Orchestrator) registerPhase(fresh []unpackResult) {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, fr := range fresh {
		p := fr.entry.Package
		p.InstallScript = fr.result.InstallScript
		p.RemoveScript = fr.result.RemoveScript
		if fr.result.Files != nil {
			p.Files = fr.result.Files.Files
			p.ConfFiles = fr.result.Files.ConfFiles
			p.Links = fr.result.Files.Links
			p.Dirs = fr.result.Files.Dirs
		}
		p.InstallDate = now
		p.MetafileSHA256 = metafileHash(p)
		p.State = model.StateUnpacked

		if err := o.Alt.Register(p); err != nil {
			o.notify(xbpslog.Event{State: xbpslog.UnpackFail, Pkgname: p.Pkgname, Err: err})
		}
		o.DB.Put(p)
		o.notify(xbpslog.Event{State: xbpslog.TransAddPkg, Pkgname: p.Pkgname, Pkgver: p.Pkgver})
	}
}

// scriptPhasePostPurge implements spec §4.11 step 9.
func (o *Orchestrator) scriptPhasePostPurge(saved []removeScriptSave) error {
	for _, s := range saved {
		if err := runPackageScript(s.script, ActionPost, s.pkg.Pkgname, s.pkg.Pkgver, false, false, o.Arch, o.RootDir); err != nil {
			return errs.Invalid("commit: %s remove-script(post): %v", s.pkg.Pkgname, err)
		}
		if err := runPackageScript(s.script, ActionPurge, s.pkg.Pkgname, s.pkg.Pkgver, false, false, o.Arch, o.RootDir); err != nil {
			return errs.Invalid("commit: %s remove-script(purge): %v", s.pkg.Pkgname, err)
		}
	}
	return nil
}

// configurePhase implements spec §4.11 step 10, delegating the actual
// per-package work to Configure (so cmd/xbps-query's standalone -C
// reconfigure path can reuse the exact same idempotent logic, per the
// package_msg.c/package_configure.c supplement in SPEC_FULL.md §4).
func (o *Orchestrator) configurePhase(trans *model.Transaction) error {
	for _, entry := range trans.Packages {
		switch entry.Action {
		case model.ActionInstall, model.ActionUpdate, model.ActionReinstall, model.ActionConfigure:
			pkg, ok := o.DB.GetPkg(entry.Package.Pkgname)
			if !ok {
				pkg = entry.Package
			}
			if err := o.Configure(pkg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Configure runs a single package's install-script(post), marks it
// installed, and shows its install-msg exactly once. It is a no-op for
// a package already installed unless ForceConfigure is set, the
// idempotent behavior original_source/lib/package_configure.c
// implements and spec.md's distillation omitted.
func (o *Orchestrator) Configure(pkg *model.PackageRecord) error {
	if pkg.State == model.StateInstalled && !o.ForceConfigure {
		return nil
	}

	if err := runPackageScript(pkg.InstallScript, ActionPost, pkg.Pkgname, pkg.Pkgver, false, false, o.Arch, o.RootDir); err != nil {
		return errs.Invalid("commit: %s install-script(post): %v", pkg.Pkgname, err)
	}

	pkg.State = model.StateInstalled
	o.DB.Put(pkg)

	if len(pkg.InstallMsg) > 0 {
		o.notify(xbpslog.Event{State: xbpslog.ShowInstallMsg, Pkgname: pkg.Pkgname, Message: string(pkg.InstallMsg)})
	}
	return nil
}

func metafileHash(p *model.PackageRecord) string {
	var b strings.Builder
	b.WriteString(p.Pkgver)
	for _, f := range p.Files {
		b.WriteString(f.File)
		b.WriteString(f.SHA256)
	}
	for _, f := range p.ConfFiles {
		b.WriteString(f.File)
		b.WriteString(f.SHA256)
	}
	for _, f := range p.Links {
		b.WriteString(f.File)
		b.WriteString(f.Target)
	}
	for _, f := range p.Dirs {
		b.WriteString(f.File)
	}
	return xbpsutil.BytesSHA256([]byte(b.String()))
}
