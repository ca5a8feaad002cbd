// Command xbps-query inspects the installed-package database: listing,
// single-package info, reverse/forward dependency trees, orphans, and
// forcing a package's configure step to re-run (spec §4.4/§4.6, plus
// the RequiredBy/Orphans/FullDepTree/package_configure.c supplements).
package main

import (
	"fmt"
	"os"
	"sort"

	flag "github.com/ogier/pflag"

	"github.com/voidpkg/xbps-go/cmd/internal/app"
	"github.com/voidpkg/xbps-go/commit"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/resolve"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("xbps-query", flag.ContinueOnError)
	var (
		confPath    = fs.StringP("conf", "C", "", "configuration file to load")
		rootDir     = fs.StringP("rootdir", "r", "", "target root directory (default /)")
		list        = fs.BoolP("list-pkgs", "l", false, "list every installed package")
		showFiles   = fs.BoolP("files", "R", false, "list the files a package owns")
		revdeps     = fs.BoolP("revdeps", "X", false, "list packages that depend on the named package")
		orphans     = fs.BoolP("orphans", "O", false, "list orphaned automatic-install packages")
		fullTree    = fs.BoolP("full-deptree", "T", false, "list the named package's full dependency tree")
		reconfigure = fs.Bool("configure", false, "re-run the named package's configure step")
		force       = fs.BoolP("force", "f", false, "force reconfigure even if already installed")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	a, err := app.Open(*confPath, *rootDir, "", "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "xbps-query:", err)
		return 1
	}
	defer a.Close()

	switch {
	case *list:
		return listInstalled(a)
	case *orphans:
		return listOrphans(a)
	case *reconfigure:
		return reconfigurePkg(a, fs.Args(), *force)
	case *revdeps:
		return showRevdeps(a, fs.Args())
	case *fullTree:
		return showFullTree(a, fs.Args())
	case *showFiles:
		return showFiles(a, fs.Args())
	default:
		return showInfo(a, fs.Args())
	}
}

func listInstalled(a *app.App) int {
	var names []string
	_ = a.DB.ForEachCB(func(pkg *model.PackageRecord) error {
		names = append(names, pkg.Pkgver)
		return nil
	})
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return 0
}

func listOrphans(a *app.App) int {
	orphans := (&resolve.Resolver{DB: a.DB}).Orphans()
	for _, pkg := range orphans {
		fmt.Println(pkg.Pkgver)
	}
	return 0
}

func reconfigurePkg(a *app.App, names []string, force bool) int {
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "xbps-query: --configure requires a package name")
		return 2
	}
	orch := &commit.Orchestrator{DB: a.DB, RootDir: a.Config.RootDir, Arch: a.Config.Architecture, Sink: a.Sink, ForceConfigure: force}
	for _, name := range names {
		pkg, ok := a.DB.GetPkg(name)
		if !ok {
			fmt.Fprintf(os.Stderr, "xbps-query: %s is not installed\n", name)
			return 1
		}
		if err := orch.Configure(pkg); err != nil {
			fmt.Fprintln(os.Stderr, "xbps-query:", err)
			return 1
		}
	}
	if err := a.DB.Update(true, false); err != nil {
		fmt.Fprintln(os.Stderr, "xbps-query:", err)
		return 1
	}
	return 0
}

func showRevdeps(a *app.App, names []string) int {
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "xbps-query: -X requires a package name")
		return 2
	}
	for _, dep := range a.DB.RequiredBy(names[0]) {
		fmt.Println(dep)
	}
	return 0
}

func showFullTree(a *app.App, names []string) int {
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "xbps-query: -T requires a package name")
		return 2
	}
	tree := (&resolve.Resolver{DB: a.DB}).FullDepTree(names[0])
	for _, pkg := range tree {
		fmt.Println(pkg.Pkgver)
	}
	return 0
}

func showFiles(a *app.App, names []string) int {
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "xbps-query: -R requires a package name")
		return 2
	}
	pkg, ok := a.DB.GetPkg(names[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "xbps-query: %s is not installed\n", names[0])
		return 1
	}
	for _, f := range pkg.Files {
		fmt.Println(f.File)
	}
	for _, f := range pkg.ConfFiles {
		fmt.Println(f.File)
	}
	for _, f := range pkg.Links {
		fmt.Printf("%s -> %s\n", f.File, f.Target)
	}
	return 0
}

func showInfo(a *app.App, names []string) int {
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "xbps-query: no package name given")
		return 2
	}
	pkg, ok := a.DB.GetPkg(names[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "xbps-query: %s is not installed\n", names[0])
		return 1
	}
	fmt.Printf("pkgname: %s\n", pkg.Pkgname)
	fmt.Printf("pkgver: %s\n", pkg.Pkgver)
	fmt.Printf("state: %s\n", pkg.State)
	fmt.Printf("architecture: %s\n", pkg.Architecture)
	fmt.Printf("automatic-install: %t\n", pkg.AutomaticInstall)
	fmt.Printf("installed-size: %d\n", pkg.InstalledSize)
	return 0
}
