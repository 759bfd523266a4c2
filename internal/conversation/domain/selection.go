package domain

import (
	"strconv"
	"strings"
)

// Select resolves a crew member's reply against the offered candidates:
// a 1-based index first, else a case-insensitive substring of the property
// name. Returns nil when nothing matches.
func Select(candidates []PropertyCandidate, input string) *PropertyCandidate {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(candidates) {
			picked := candidates[n-1]
			return &picked
		}
		return nil
	}

	needle := strings.ToLower(trimmed)
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			picked := c
			return &picked
		}
	}
	return nil
}
