// Package app holds the bootstrap sequence every xbps-* binary runs
// before doing its own work: load xbps.d config, open the package
// database, open the configured repository pool, and open the
// accepted-keys store. Grounded on the teacher's flag/config wiring in
// src/holo-build/main.go, generalized from "one build invocation" into
// "one command against a live rootdir".
package app

import (
	"fmt"
	"os"

	"github.com/voidpkg/xbps-go/config"
	"github.com/voidpkg/xbps-go/crypto"
	"github.com/voidpkg/xbps-go/keys"
	"github.com/voidpkg/xbps-go/pkgdb"
	"github.com/voidpkg/xbps-go/repo"
	"github.com/voidpkg/xbps-go/xbpslog"
)

// App bundles the pieces every command-line entry point needs.
type App struct {
	Config *config.Config
	DB     *pkgdb.DB
	Keys   *keys.Store
	Log    *xbpslog.Logger
	Sink   xbpslog.EventSink
}

// Open loads confPath (if non-empty) over defaults, applies rootDir/
// arch/cacheDir overrides from flags when set, and locks the pkgdb at
// the resolved rootdir.
func Open(confPath, rootDir, arch, cacheDir string) (*App, error) {
	cfg := config.New()
	if confPath != "" {
		loaded, err := config.Load(confPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", confPath, err)
		}
		cfg = loaded
	}
	if rootDir != "" {
		cfg.RootDir = rootDir
	}
	if cfg.RootDir == "" {
		cfg.RootDir = "/"
	}
	if arch != "" {
		cfg.Architecture = arch
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = config.TempDir()
	}

	log := xbpslog.New()
	db, err := pkgdb.Lock(cfg.RootDir, log)
	if err != nil {
		return nil, fmt.Errorf("opening package database at %s: %w", cfg.RootDir, err)
	}

	ks, err := keys.Open(pkgdb.Metadir(cfg.RootDir))
	if err != nil {
		db.Release()
		return nil, fmt.Errorf("opening key store: %w", err)
	}

	return &App{
		Config: cfg,
		DB:     db,
		Keys:   ks,
		Log:    log,
		Sink:   xbpslog.NewLogSink(log),
	}, nil
}

// Close releases the pkgdb lock.
func (a *App) Close() {
	a.DB.Release()
}

// OpenPool opens every configured repository, consulting a.Keys for
// trust and prompting on stdin for any unseen signing key, per spec
// §4.3 step 3.
func (a *App) OpenPool() (*repo.Pool, error) {
	trusted, err := a.Keys.All()
	if err != nil {
		return nil, err
	}

	var repos []*repo.Repository
	for _, url := range a.Config.Repositories {
		r, err := repo.Open(url, a.Config.Architecture, a.Config.CacheDir, trusted, a.promptTrustKey(url))
		if err != nil {
			return nil, fmt.Errorf("opening repository %s: %w", url, err)
		}
		repos = append(repos, r)
	}
	return repo.NewPool(repos, a.Config.BestMatching, a.Config.VirtualPkgs), nil
}

// promptTrustKey asks the operator on stdin/stderr whether to accept an
// unseen repository signing key, persisting acceptance to the key
// store (spec §4.3 step 3 / the repo_keys.c supplement).
func (a *App) promptTrustKey(repoURL string) repo.KeyImportFunc {
	return func(url string, pk *crypto.PublicKey) bool {
		fmt.Fprintf(os.Stderr, "%s: trust new signing key %s (%s)? [y/N] ", url, pk.KeyNumHex(), pk.Comment)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			return false
		}
		if err := a.Sink.Notify(xbpslog.Event{State: xbpslog.RepoKeyImport, Repository: repoURL, Message: pk.KeyNumHex(), Key: pk.Encode()}); err != nil {
			return false
		}
		if err := a.Keys.Trust(repoURL, pk); err != nil {
			fmt.Fprintf(os.Stderr, "%s: saving trusted key: %v\n", url, err)
			return false
		}
		return true
	}
}

// TrustedKeyMap resolves one crypto.PublicKey per repository URL (by
// fingerprint lookup in the accepted-keys store), the shape
// commit.Orchestrator.TrustedKeys wants.
func (a *App) TrustedKeyMap(pool *repo.Pool) map[string]*crypto.PublicKey {
	out := map[string]*crypto.PublicKey{}
	for _, r := range pool.Repos {
		if r.TrustedKey != nil {
			out[r.URL] = r.TrustedKey
		}
	}
	return out
}
