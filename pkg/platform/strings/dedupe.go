// Package strings holds the small string-slice helpers shared by handlers.
package strings

import "strings"

// DedupeIDs normalizes a list of identifiers for batch operations: whitespace
// is trimmed, empties dropped and duplicates removed case-insensitively.
// First-seen order is preserved so FIFO semantics downstream are unaffected.
func DedupeIDs(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		normalized := strings.ToLower(strings.TrimSpace(v))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
