package schema

import (
	"regexp"
	"strings"
)

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	digitRuns = regexp.MustCompile(`\d+`)
)

// normalizeName reduces a column name to lowercase alphanumerics, so
// "151_USER_THROUGHPUT(%)" and "151 User Throughput %" compare equal.
func normalizeName(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
}

// FuzzyMatch returns the column closest to target, trying tiers in order:
// exact match on the normalized form, substring containment either direction
// on the same form, then equality of the leading digit run when both sides
// carry one. First successful tier wins; there is no scoring beyond tier
// order.
func FuzzyMatch(columns []string, target string) (string, bool) {
	normTarget := normalizeName(target)
	if normTarget == "" {
		return "", false
	}

	for _, c := range columns {
		if normalizeName(c) == normTarget {
			return c, true
		}
	}

	for _, c := range columns {
		nc := normalizeName(c)
		if nc == "" {
			continue
		}
		if strings.Contains(nc, normTarget) || strings.Contains(normTarget, nc) {
			return c, true
		}
	}

	tNums := digitRuns.FindAllString(target, -1)
	if len(tNums) > 0 {
		for _, c := range columns {
			cNums := digitRuns.FindAllString(c, -1)
			if len(cNums) > 0 && cNums[0] == tNums[0] {
				return c, true
			}
		}
	}
	return "", false
}
