// Package normalize provides canonicalization of merchant and description
// strings so that every matching stage compares like with like.
package normalize

import (
	"strings"
	"unicode"
)

// String lowercases s and collapses runs of whitespace into single spaces.
// Leading and trailing whitespace is dropped; empty or whitespace-only input
// returns the empty string.
func String(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
