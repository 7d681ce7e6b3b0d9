// Package strings holds small string-slice helpers shared across modules.
package strings

import "strings"

// DedupeAndTrimLower lowercases and trims every element, dropping empties
// and duplicates. Order of first occurrence is preserved. Used for mail
// recipient lists where case differences would double-send.
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
