package repo

import (
	"github.com/voidpkg/xbps-go/match"
	"github.com/voidpkg/xbps-go/model"
)

// Pool is the ordered list of configured repositories (spec §4.3).
type Pool struct {
	Repos        []*Repository
	BestMatching bool
	VirtualPkgs  map[string]string
}

// NewPool constructs a Pool over repos in configured order.
func NewPool(repos []*Repository, bestMatching bool, virtualPkgs map[string]string) *Pool {
	return &Pool{Repos: repos, BestMatching: bestMatching, VirtualPkgs: virtualPkgs}
}

// GetPkg implements spec §4.3's pool.get_pkg: in best-matching mode,
// every repository is scanned and the highest pkgver wins; otherwise
// the first repository with a hit wins.
func (p *Pool) GetPkg(pkg string) (*model.PackageRecord, bool) {
	if !p.BestMatching {
		for _, r := range p.Repos {
			if rec, ok := r.GetPkg(pkg); ok {
				return rec, true
			}
		}
		return nil, false
	}

	var best *model.PackageRecord
	for _, r := range p.Repos {
		rec, ok := r.GetPkg(pkg)
		if !ok {
			continue
		}
		if best == nil || match.CompareVersions(rec.Pkgver, best.Pkgver) > 0 {
			best = rec
		}
	}
	return best, best != nil
}

// GetVirtualPkg resolves pattern to a concrete provider, consulting the
// per-handle virtual-package configuration before falling back to each
// repository's provides (spec §4.3: "Virtual-package lookups consult
// per-handle configuration mappings first").
func (p *Pool) GetVirtualPkg(pattern string) (*model.PackageRecord, bool) {
	name := match.PatternName(pattern)
	if override, ok := p.VirtualPkgs[name]; ok {
		if rec, ok := p.GetPkg(override); ok {
			return rec, true
		}
	}

	if !p.BestMatching {
		for _, r := range p.Repos {
			if rec, ok := r.GetVirtualPkg(pattern); ok {
				return rec, true
			}
		}
		return nil, false
	}

	var best *model.PackageRecord
	for _, r := range p.Repos {
		rec, ok := r.GetVirtualPkg(pattern)
		if !ok {
			continue
		}
		if best == nil || match.CompareVersions(rec.Pkgver, best.Pkgver) > 0 {
			best = rec
		}
	}
	return best, best != nil
}
