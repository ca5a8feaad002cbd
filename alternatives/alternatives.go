// Package alternatives implements the provider-switching symlink groups
// of spec.md §4.10: register/unregister a package's alternatives on
// install/remove, and materialize the active provider's links on disk.
// Grounded on the teacher's relative-symlink materialization idiom used
// throughout holo-build's filesystem layer, generalized from "write a
// symlink node once at build time" into "repoint a live symlink group
// whenever the active provider changes".
package alternatives

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/pkgdb"
	"github.com/voidpkg/xbps-go/xbpslog"
)

// Manager applies a package's alternatives map against a pkgdb's
// global provider-group table and the on-disk rootdir.
type Manager struct {
	DB      *pkgdb.DB
	RootDir string
	Sink    xbpslog.EventSink
}

func (m *Manager) notify(ev xbpslog.Event) {
	if m.Sink != nil {
		_ = m.Sink.Notify(ev)
	}
}

// Register implements spec §4.10's "Register package P for each of P's
// groups".
func (m *Manager) Register(pkg *model.PackageRecord) error {
	for group, specs := range pkg.Alternatives {
		providers := m.DB.AlternativeGroupProviders(group)

		switch {
		case len(providers) == 0:
			m.DB.SetAlternativeGroupProviders(group, []string{pkg.Pkgname})
			if err := m.materialize(specs); err != nil {
				return err
			}
			m.notify(xbpslog.Event{State: xbpslog.AltGroupAdded, Pkgname: pkg.Pkgname, Message: group})
		case providers[0] == pkg.Pkgname:
			if err := m.materialize(specs); err != nil {
				return err
			}
			m.notify(xbpslog.Event{State: xbpslog.AltGroupSwitched, Pkgname: pkg.Pkgname, Message: group})
		case containsName(providers, pkg.Pkgname):
			// already a non-active provider: leave the head's links alone.
		default:
			m.DB.SetAlternativeGroupProviders(group, append(providers, pkg.Pkgname))
		}
	}
	return nil
}

// Unregister implements spec §4.10's "Unregister package P". removing
// is true when P is being fully removed from the system rather than
// updated in place (an update skips re-pointing the group since P
// returns and re-registers right after).
func (m *Manager) Unregister(pkg *model.PackageRecord, removing bool) error {
	for group, specs := range pkg.Alternatives {
		providers := m.DB.AlternativeGroupProviders(group)
		idx := indexOfName(providers, pkg.Pkgname)
		if idx < 0 {
			continue
		}
		wasHead := idx == 0

		if wasHead {
			if err := m.unlinkAll(specs); err != nil {
				return err
			}
		}

		remaining := append(append([]string(nil), providers[:idx]...), providers[idx+1:]...)
		if len(remaining) == 0 {
			m.DB.SetAlternativeGroupProviders(group, nil)
			continue
		}
		m.DB.SetAlternativeGroupProviders(group, remaining)

		if wasHead && removing {
			nextHead := pickNextHead(pkg, remaining)
			m.DB.SetAlternativeGroupProviders(group, rotateToHead(remaining, nextHead))
			if next, ok := pkgWithAlternatives(m.DB, nextHead); ok {
				if err := m.materialize(next.Alternatives[group]); err != nil {
					return err
				}
				m.notify(xbpslog.Event{State: xbpslog.AltGroupSwitched, Pkgname: nextHead, Message: group})
			}
		}
	}
	return nil
}

func pkgWithAlternatives(db *pkgdb.DB, pkgname string) (*model.PackageRecord, bool) {
	return db.GetPkg(pkgname)
}

// pickNextHead implements spec §4.10's "Pruning on replacement" rule:
// when the departing head pkg is a transitional metapackage (no
// run-deps and no shlib-requires), the first remaining provider takes
// over; otherwise the most recently added (last) provider does.
func pickNextHead(pkg *model.PackageRecord, remaining []string) string {
	if len(pkg.RunDepends) == 0 && len(pkg.ShlibRequires) == 0 {
		return remaining[0]
	}
	return remaining[len(remaining)-1]
}

// rotateToHead reorders providers so that head comes first, preserving
// the relative order of everyone else.
func rotateToHead(providers []string, head string) []string {
	out := make([]string, 0, len(providers))
	out = append(out, head)
	for _, p := range providers {
		if p != head {
			out = append(out, p)
		}
	}
	return out
}

// materialize implements spec §4.10's "Switching active provider"
// symlink materialization for every entry in a group.
func (m *Manager) materialize(specs []model.AlternativeSpec) error {
	for _, spec := range specs {
		linkPath := filepath.Join(m.RootDir, xbpsutil.Clean("/"+spec.LinkPath))
		targetPath := resolveTarget(spec)

		relTarget := xbpsutil.Relative(filepath.Dir(spec.LinkPath), targetPath)

		if err := os.MkdirAll(filepath.Dir(linkPath), 0755); err != nil {
			return err
		}
		_ = os.Remove(linkPath)
		if err := os.Symlink(relTarget, linkPath); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) unlinkAll(specs []model.AlternativeSpec) error {
	for _, spec := range specs {
		linkPath := filepath.Join(m.RootDir, xbpsutil.Clean("/"+spec.LinkPath))
		if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// resolveTarget resolves a relative TargetPath against the directory
// of LinkPath, per spec §4.10 ("relative linkpaths are resolved
// against the directory of targetpath" — applied here to the target
// side, since a relative target is anchored the same way).
func resolveTarget(spec model.AlternativeSpec) string {
	if strings.HasPrefix(spec.TargetPath, "/") {
		return spec.TargetPath
	}
	return xbpsutil.Clean(filepath.Join(filepath.Dir(spec.LinkPath), spec.TargetPath))
}

func containsName(names []string, name string) bool {
	return indexOfName(names, name) >= 0
}

func indexOfName(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
