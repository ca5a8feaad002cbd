// Package match implements the dependency-pattern matcher of spec.md
// §4.5: dewey version comparison, glob matching and plain-name
// equality against a pkgver string. Grounded on the dispatch structure
// of original_source/lib/match.c (xbps_pkgpattern_match): fast reject,
// then dewey/glob/plain in that order.
package match

import (
	"strconv"
	"strings"
)

// CompareVersions compares two dewey version strings component by
// component: runs of digits compare numerically, runs of non-digits
// compare lexically, and a trailing "_<revision>" compares numerically
// as a final tiebreaking key (spec §3). Returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	aVer, aRev := splitRevision(a)
	bVer, bRev := splitRevision(b)

	if c := compareDeweyRuns(aVer, bVer); c != 0 {
		return c
	}
	switch {
	case aRev < bRev:
		return -1
	case aRev > bRev:
		return 1
	default:
		return 0
	}
}

func splitRevision(v string) (ver string, rev int) {
	idx := strings.LastIndexByte(v, '_')
	if idx < 0 {
		return v, 0
	}
	n, err := strconv.Atoi(v[idx+1:])
	if err != nil {
		return v, 0
	}
	return v[:idx], n
}

func compareDeweyRuns(a, b string) int {
	ai, bi := 0, 0
	for ai < len(a) || bi < len(b) {
		aRun, aIsDigit, aNext := nextRun(a, ai)
		bRun, bIsDigit, bNext := nextRun(b, bi)
		ai, bi = aNext, bNext

		if aRun == "" && bRun == "" {
			return 0
		}
		if aRun == "" {
			return -1
		}
		if bRun == "" {
			return 1
		}

		if aIsDigit && bIsDigit {
			an, _ := strconv.ParseUint(aRun, 10, 64)
			bn, _ := strconv.ParseUint(bRun, 10, 64)
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			}
			continue
		}
		if aIsDigit != bIsDigit {
			// A digit run sorts after a non-digit run at the same
			// position (e.g. "1.a" < "1.0").
			if aIsDigit {
				return 1
			}
			return -1
		}
		if aRun != bRun {
			if aRun < bRun {
				return -1
			}
			return 1
		}
	}
	return 0
}

// nextRun returns the next maximal run of digits or non-digits starting
// at i, whether it is a digit run, and the index just past it.
func nextRun(s string, i int) (run string, isDigit bool, next int) {
	if i >= len(s) {
		return "", false, i
	}
	isDigit = s[i] >= '0' && s[i] <= '9'
	j := i
	for j < len(s) && (s[j] >= '0' && s[j] <= '9') == isDigit {
		j++
	}
	return s[i:j], isDigit, j
}
