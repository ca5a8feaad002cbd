package match

import (
	"path"
	"strings"
)

// relation is one comparison operator of a dewey constraint.
type relation struct {
	op      string // one of "<", "<=", "==", ">=", ">"
	version string
}

func (r relation) satisfiedBy(version string) bool {
	c := CompareVersions(version, r.version)
	switch r.op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case "==":
		return c == 0
	case ">=":
		return c >= 0
	case ">":
		return c > 0
	default:
		return false
	}
}

// quickReject implements the fast-path check of spec §4.5: if one of
// the pattern's first two characters is alphanumeric (or '-') and
// differs from pkg's character at the same position, with every
// character before it also alphanumeric (or '-') and equal, no further
// parsing is needed.
func quickReject(pattern, pkg string) bool {
	simple := func(b byte) bool {
		return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '-'
	}
	if len(pattern) == 0 {
		return false
	}
	if !simple(pattern[0]) {
		return false
	}
	if len(pkg) == 0 || pattern[0] != pkg[0] {
		return true
	}
	if len(pattern) < 2 || !simple(pattern[1]) {
		return false
	}
	if len(pkg) < 2 || pattern[1] != pkg[1] {
		return true
	}
	return false
}

// Match evaluates pattern against pkgver, implementing spec §4.5's
// pkgpattern_match: dewey range, glob, or plain-name equality, in that
// priority order. pkgver is a full "<name>-<version>_<revision>" string.
func Match(pattern, pkgver string) bool {
	if quickReject(pattern, pkgver) {
		return false
	}

	if strings.ContainsAny(pattern, "<>=") {
		return deweyMatch(pattern, pkgver)
	}
	if strings.ContainsAny(pattern, "*?[") {
		ok, _ := path.Match(pattern, pkgver)
		return ok
	}
	// Plain name: any version satisfies, per spec §3 ("Plain name (foo)
	// — any version satisfies"); equivalent to lib/match.c's fallback of
	// globbing pattern+"-[0-9]*" against pkgver.
	name, _, ok := splitPkgver(pkgver)
	if !ok {
		return pattern == pkgver
	}
	return pattern == name
}

// deweyMatch parses a pattern of the form "<name><op><ver>[,<op><ver>]"
// (e.g. "foo>=1.2", "bar>=1,<2") and evaluates it against pkgver.
func deweyMatch(pattern, pkgver string) bool {
	name, constraints, ok := splitDeweyPattern(pattern)
	if !ok {
		return false
	}
	pkgName, pkgVersion, ok := splitPkgver(pkgver)
	if !ok || pkgName != name {
		return false
	}
	for _, c := range constraints {
		if !c.satisfiedBy(pkgVersion) {
			return false
		}
	}
	return true
}

// splitDeweyPattern separates the package name from its list of
// relational constraints, e.g. "foo>=1.2,<2.0" -> ("foo",
// [{">=","1.2"},{"<","2.0"}]).
func splitDeweyPattern(pattern string) (name string, rels []relation, ok bool) {
	idx := strings.IndexAny(pattern, "<>=")
	if idx < 0 {
		return "", nil, false
	}
	name = pattern[:idx]
	rest := pattern[idx:]

	for _, clause := range strings.Split(rest, ",") {
		op, ver, ok := splitRelOp(clause)
		if !ok {
			return "", nil, false
		}
		rels = append(rels, relation{op: op, version: ver})
	}
	if len(rels) == 0 {
		return "", nil, false
	}
	return name, rels, true
}

func splitRelOp(clause string) (op, ver string, ok bool) {
	switch {
	case strings.HasPrefix(clause, ">="):
		return ">=", clause[2:], true
	case strings.HasPrefix(clause, "<="):
		return "<=", clause[2:], true
	case strings.HasPrefix(clause, "=="):
		return "==", clause[2:], true
	case strings.HasPrefix(clause, ">"):
		return ">", clause[1:], true
	case strings.HasPrefix(clause, "<"):
		return "<", clause[1:], true
	default:
		return "", "", false
	}
}

// splitPkgver separates a "<name>-<version>_<revision>" string into
// name and "<version>_<revision>".
func splitPkgver(pkgver string) (name, version string, ok bool) {
	idx := strings.LastIndexByte(pkgver, '-')
	if idx < 0 {
		return "", "", false
	}
	return pkgver[:idx], pkgver[idx+1:], true
}

// MatchProvides reports whether any entry of provides (each formatted
// "<name>-<version>_<revision>") satisfies pattern, implementing the
// virtual-package matching of spec §4.5.
func MatchProvides(pattern string, provides []string) bool {
	for _, vpkg := range provides {
		if Match(pattern, vpkg) {
			return true
		}
	}
	return false
}

// PatternName returns the package-name portion of a dependency pattern,
// stripping any dewey/glob qualifier, used to index pkgdb/vpkg lookups
// by name (spec §4.6 step 4: "look up installed pkg by pattern name").
func PatternName(pattern string) string {
	if idx := strings.IndexAny(pattern, "<>="); idx >= 0 {
		return pattern[:idx]
	}
	if idx := strings.IndexAny(pattern, "*?["); idx >= 0 {
		name := pattern[:idx]
		return strings.TrimSuffix(name, "-")
	}
	return pattern
}

// ParseDeweyRevision extracts the numeric revision suffix from a
// version string, mirroring splitRevision's role for callers outside
// this package that need just the revision (e.g. provides conflict
// diagnostics).
func ParseDeweyRevision(version string) int {
	_, rev := splitRevision(version)
	return rev
}
