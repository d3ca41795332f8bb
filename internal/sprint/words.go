package sprint

import "strings"

// CountWords counts non-empty whitespace-separated tokens in text.
// It is pure and idempotent; the same function feeds the live counter
// and the persisted word count.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
