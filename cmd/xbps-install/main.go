// Command xbps-install resolves, checks, and commits an install/update
// transaction against a rootdir's package database, the CLI front end
// over resolve+transaction+commit (spec §4.6/§4.7/§4.11).
package main

import (
	"bufio"
	"fmt"
	"os"

	flag "github.com/ogier/pflag"

	"github.com/voidpkg/xbps-go/alternatives"
	"github.com/voidpkg/xbps-go/cmd/internal/app"
	"github.com/voidpkg/xbps-go/commit"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/resolve"
	"github.com/voidpkg/xbps-go/transaction"
	"github.com/voidpkg/xbps-go/unpack"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("xbps-install", flag.ContinueOnError)
	var (
		confPath     = fs.StringP("conf", "C", "", "configuration file to load")
		rootDir      = fs.StringP("rootdir", "r", "", "target root directory (default /)")
		cacheDir     = fs.StringP("cachedir", "c", "", "package cache directory")
		arch         = fs.String("arch", "", "target architecture (overrides config)")
		downloadOnly = fs.BoolP("download-only", "d", false, "fetch and verify only, do not unpack")
		forceUpdate  = fs.BoolP("force", "f", false, "force reinstall/overwrite")
		update       = fs.BoolP("update", "u", false, "update every installed package instead of installing args")
		assumeYes    = fs.BoolP("yes", "y", false, "assume yes to the confirmation prompt")
		dryRun       = fs.BoolP("dry-run", "n", false, "resolve and print the transaction without committing")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	a, err := app.Open(*confPath, *rootDir, *arch, *cacheDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "xbps-install:", err)
		return 1
	}
	defer a.Close()

	pool, err := a.OpenPool()
	if err != nil {
		fmt.Fprintln(os.Stderr, "xbps-install:", err)
		return 1
	}

	resolver := &resolve.Resolver{
		DB:           a.DB,
		Pool:         pool,
		Ignore:       toSet(a.Config.IgnorePkgs),
		DownloadOnly: *downloadOnly,
	}

	trans := &model.Transaction{}

	if *update {
		if err := resolver.UpdatePackages(trans); err != nil {
			fmt.Fprintln(os.Stderr, "xbps-install:", err)
			return 1
		}
	} else {
		if fs.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "xbps-install: no packages given, and -u not specified")
			return 2
		}
		for _, name := range fs.Args() {
			staged, action, err := resolver.TransFindPkg(name, *forceUpdate)
			if err != nil {
				fmt.Fprintln(os.Stderr, "xbps-install:", err)
				return 1
			}
			if err := resolver.RepoDeps(trans, staged); err != nil {
				fmt.Fprintln(os.Stderr, "xbps-install:", err)
				return 1
			}
			trans.Packages = append(trans.Packages, model.TransactionEntry{Package: staged, Action: action})
		}
	}

	checker := &transaction.Checker{
		DB:               a.DB,
		PreserveList:     a.Config.Preserve,
		ForceOverwrite:   *forceUpdate,
		ForceRemoveFiles: *forceUpdate,
	}
	if err := checker.Run(trans); err != nil {
		fmt.Fprintln(os.Stderr, "xbps-install:", err)
		return 1
	}
	if trans.HasBlockingIssues() {
		printBlockingIssues(trans)
		return 1
	}
	if len(trans.Packages) == 0 {
		fmt.Println("Nothing to do.")
		return 0
	}

	trans.Packages = transaction.Sort(a.DB, trans.Packages)

	printTransaction(trans)
	if *dryRun {
		return 0
	}
	if !*assumeYes && !confirm() {
		fmt.Println("Cancelled.")
		return 0
	}

	orch := &commit.Orchestrator{
		DB:           a.DB,
		RootDir:      a.Config.RootDir,
		Arch:         a.Config.Architecture,
		CacheDir:     a.Config.CacheDir,
		TrustedKeys:  a.TrustedKeyMap(pool),
		Checker:      checker,
		Alt:          &alternatives.Manager{DB: a.DB, RootDir: a.Config.RootDir, Sink: a.Sink},
		Unpack:       &unpack.Engine{RootDir: a.Config.RootDir, PreserveList: a.Config.Preserve, ForceOverwrite: *forceUpdate, Sink: a.Sink},
		Sink:         a.Sink,
		DownloadOnly: *downloadOnly,
	}
	if err := orch.Commit(trans); err != nil {
		fmt.Fprintln(os.Stderr, "xbps-install:", err)
		return 1
	}
	return 0
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func printBlockingIssues(trans *model.Transaction) {
	for _, m := range trans.MissingDeps {
		fmt.Fprintln(os.Stderr, "missing dependency:", m)
	}
	for _, m := range trans.Conflicts {
		fmt.Fprintln(os.Stderr, "conflict:", m)
	}
	for _, m := range trans.MissingShlibs {
		fmt.Fprintln(os.Stderr, "missing shared library:", m)
	}
}

func printTransaction(trans *model.Transaction) {
	fmt.Println("Transaction:")
	for _, e := range trans.Packages {
		fmt.Printf("  %-10s %s\n", e.Action, e.Package.Pkgver)
	}
}

func confirm() bool {
	fmt.Print("Do you want to continue? [Y/n] ")
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		return true
	}
	switch sc.Text() {
	case "", "y", "Y", "yes":
		return true
	default:
		return false
	}
}
