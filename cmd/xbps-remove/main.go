// Command xbps-remove removes installed packages (optionally with
// their now-orphaned dependencies) via the same check+commit pipeline
// xbps-install uses (spec §4.6's remove_pkg/autoremove_pkgs, §4.11).
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
	fs := flag.NewFlagSet("xbps-remove", flag.ContinueOnError)
	var (
		confPath    = fs.StringP("conf", "C", "", "configuration file to load")
		rootDir     = fs.StringP("rootdir", "r", "", "target root directory (default /)")
		recursive   = fs.BoolP("recursive", "R", false, "also remove now-orphaned dependencies")
		autoremove  = fs.BoolP("autoremove", "o", false, "remove every orphaned automatic-install package")
		assumeYes   = fs.BoolP("yes", "y", false, "assume yes to the confirmation prompt")
		dryRun      = fs.BoolP("dry-run", "n", false, "resolve and print the transaction without committing")
		forceRemove = fs.BoolP("force", "f", false, "remove files even if they no longer match the recorded hash")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	a, err := app.Open(*confPath, *rootDir, "", "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "xbps-remove:", err)
		return 1
	}
	defer a.Close()

	resolver := &resolve.Resolver{DB: a.DB}
	trans := &model.Transaction{}

	if *autoremove {
		if err := resolver.AutoremovePkgs(trans); err != nil {
			fmt.Fprintln(os.Stderr, "xbps-remove:", err)
			return 1
		}
	} else {
		if fs.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "xbps-remove: no packages given, and -o not specified")
			return 2
		}
		for _, name := range fs.Args() {
			if err := resolver.RemovePkg(trans, name, *recursive); err != nil {
				fmt.Fprintln(os.Stderr, "xbps-remove:", err)
				return 1
			}
		}
	}

	if len(trans.Packages) == 0 {
		fmt.Println("Nothing to do.")
		return 0
	}

	checker := &transaction.Checker{DB: a.DB, ForceRemoveFiles: *forceRemove}
	if err := checker.Run(trans); err != nil {
		fmt.Fprintln(os.Stderr, "xbps-remove:", err)
		return 1
	}
	if trans.HasBlockingIssues() {
		for _, m := range trans.MissingDeps {
			fmt.Fprintln(os.Stderr, "missing dependency:", m)
		}
		return 1
	}

	trans.Packages = transaction.Sort(a.DB, trans.Packages)

	fmt.Println("Packages to remove:")
	for _, e := range trans.Packages {
		fmt.Printf("  %s\n", e.Package.Pkgver)
	}
	if *dryRun {
		return 0
	}
	if !*assumeYes && !confirm() {
		fmt.Println("Cancelled.")
		return 0
	}

	orch := &commit.Orchestrator{
		DB:      a.DB,
		RootDir: a.Config.RootDir,
		Arch:    a.Config.Architecture,
		Checker: checker,
		Alt:     &alternatives.Manager{DB: a.DB, RootDir: a.Config.RootDir, Sink: a.Sink},
		Unpack:  &unpack.Engine{RootDir: a.Config.RootDir, ForceOverwrite: *forceRemove, Sink: a.Sink},
		Sink:    a.Sink,
	}
	if err := orch.Commit(trans); err != nil {
		fmt.Fprintln(os.Stderr, "xbps-remove:", err)
		return 1
	}
	return 0
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
