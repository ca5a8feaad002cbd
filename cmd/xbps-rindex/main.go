// Command xbps-rindex builds (or rebuilds) a repository's
// "<arch>-repodata" index from a directory of built package archives,
// optionally signing it (spec §4.3 step 2 / original_source/lib/rindex.c).
package main

import (
	"fmt"
	"os"

	flag "github.com/ogier/pflag"

	"github.com/voidpkg/xbps-go/crypto"
	"github.com/voidpkg/xbps-go/repo"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("xbps-rindex", flag.ContinueOnError)
	var (
		arch       = fs.StringP("arch", "A", "x86_64", "architecture the index is built for")
		privateKey = fs.StringP("privkey", "s", "", "minisign secret key file to sign the index with")
		passphrase = fs.StringP("passphrase", "p", "", "passphrase for an encrypted secret key")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "xbps-rindex: usage: xbps-rindex [flags] <repo-directory>")
		return 2
	}
	dir := fs.Arg(0)

	index, err := repo.BuildIndex(dir, *arch)
	if err != nil {
		fmt.Fprintln(os.Stderr, "xbps-rindex:", err)
		return 1
	}

	var signingKey *crypto.SecretKey
	if *privateKey != "" {
		signingKey, err = loadSecretKey(*privateKey, *passphrase)
		if err != nil {
			fmt.Fprintln(os.Stderr, "xbps-rindex:", err)
			return 1
		}
	}

	path, err := repo.WriteRepodata(dir, *arch, index, signingKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, "xbps-rindex:", err)
		return 1
	}

	fmt.Printf("%s: %d packages indexed\n", path, len(index))
	return 0
}

func loadSecretKey(path, passphrase string) (*crypto.SecretKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return crypto.DecodeSecretKey(f, []byte(passphrase))
}
