package policy

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// allowlistAllows reports whether tool is permitted by allowlist.
// Matching is case-insensitive; an entry may be an exact string or a
// doublestar glob (e.g. "fs.*" matches "fs.read" and "fs.write"), a
// superset of spec.md's plain-string exact match (SPEC_FULL.md §4.4).
func allowlistAllows(allowlist []string, tool string) bool {
	needle := strings.ToLower(tool)
	for _, entry := range allowlist {
		pattern := strings.ToLower(entry)
		if pattern == needle {
			return true
		}
		ok, err := doublestar.Match(pattern, needle)
		if err == nil && ok {
			return true
		}
	}
	return false
}
