package pkgdb

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/voidpkg/xbps-go/model"
)

// CallbackFunc is a read-only visitor over a single pkgd, used by
// ForEachCB/ForEachCBMulti (spec §4.4: "the callbacks must not mutate
// pkgdb").
type CallbackFunc func(pkg *model.PackageRecord) error

// ForEachCB visits every installed package in an unspecified order,
// stopping at the first error.
func (db *DB) ForEachCB(fn CallbackFunc) error {
	db.mu.RLock()
	pkgs := make([]*model.PackageRecord, 0, len(db.packages))
	for _, pkg := range db.packages {
		pkgs = append(pkgs, pkg)
	}
	db.mu.RUnlock()

	for _, pkg := range pkgs {
		if err := fn(pkg); err != nil {
			return err
		}
	}
	return nil
}

// ForEachCBMulti distributes the callback across GOMAXPROCS worker
// goroutines (spec §4.4: "a parallelized foreach_cb_multi... that
// distributes keys across worker threads"). Grounded on the errgroup
// worker-pool idiom used throughout the example corpus for bounded
// concurrent fan-out over a fixed item list.
func (db *DB) ForEachCBMulti(ctx context.Context, fn CallbackFunc) error {
	db.mu.RLock()
	pkgs := make([]*model.PackageRecord, 0, len(db.packages))
	for _, pkg := range db.packages {
		pkgs = append(pkgs, pkg)
	}
	db.mu.RUnlock()

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(pkgs) {
		workers = len(pkgs)
	}

	if workers == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan *model.PackageRecord)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case pkg, ok := <-jobs:
					if !ok {
						return nil
					}
					if err := fn(pkg); err != nil {
						return err
					}
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, pkg := range pkgs {
			select {
			case jobs <- pkg:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}
