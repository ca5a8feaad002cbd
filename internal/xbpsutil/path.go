// Package xbpsutil holds the primitives every other package in
// xbps-go builds on: path cleaning, atomic file writes, advisory
// locking, and hashing (spec.md §4.1). Grounded on the teacher's
// common/tar.go and common/reproducibility.go (filesystem plumbing
// around a package root), generalized from "build one rooted tree" to
// "mutate and lock a long-lived one".
package xbpsutil

import (
	"path"
	"strings"

	"github.com/voidpkg/xbps-go/errs"
)

// Clean normalizes "." / ".." / redundant slashes, preserving a leading
// "/". It is a thin, documented wrapper around path.Clean: Go's
// path.Clean already satisfies the idempotence law the spec requires
// (Clean(Clean(p)) == Clean(p)); no third-party path library in the
// example corpus does anything path.Clean doesn't already do correctly
// for POSIX paths, so reaching for one here would add a dependency with
// no behavioral gain.
func Clean(p string) string {
	return path.Clean(p)
}

// Join concatenates segments, inserting at most one "/" between parts,
// and fails with an ENOBUFS error (errs.NoBufferSpace) if the result
// would exceed maxLen (mirroring the C API's caller-provided-buffer
// ENOBUFS contract; Go strings don't need a real buffer, but callers
// can still ask for a hard ceiling on path length).
func Join(maxLen int, segments ...string) (string, error) {
	joined := path.Join(segments...)
	if maxLen > 0 && len(joined) > maxLen {
		return "", errs.NoBufferSpace("xbpsutil: joined path exceeds %d bytes", maxLen)
	}
	return joined, nil
}

// Relative computes the shortest relative path from "from" to "to"
// using ".." walks; both paths are cleaned first. Used by the
// alternatives subsystem to make symlink targets portable across
// rootdirs (spec §4.10).
func Relative(from, to string) string {
	from = Clean(from)
	to = Clean(to)
	if from == to {
		return "."
	}

	fromParts := splitPath(from)
	toParts := splitPath(to)

	common := 0
	for common < len(fromParts) && common < len(toParts) && fromParts[common] == toParts[common] {
		common++
	}

	var out []string
	for i := common; i < len(fromParts); i++ {
		out = append(out, "..")
	}
	out = append(out, toParts[common:]...)
	if len(out) == 0 {
		return "."
	}
	return strings.Join(out, "/")
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}
