package registry

import "strings"

// NormalizeName maps hyphens to underscores, the same equivalence Go module
// path components and import names disagree on that crate names and Rust
// identifiers do in the source ecosystem this spec was distilled from.
func NormalizeName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// findMatches returns every name in available that is equivalent to or a
// substring match (in either direction) of target, case-insensitively, with
// hyphen/underscore treated as interchangeable.
func findMatches(target string, available []string) []string {
	normalized := strings.ToLower(NormalizeName(target))
	hyphenated := strings.ToLower(strings.ReplaceAll(normalized, "_", "-"))

	var matches []string
	for _, candidate := range available {
		c := strings.ToLower(NormalizeName(candidate))
		if c == normalized || c == hyphenated ||
			strings.Contains(c, normalized) || strings.Contains(normalized, c) {
			matches = append(matches, candidate)
		}
	}
	return matches
}
