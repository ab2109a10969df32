package scanner

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity is the normalized edit-distance similarity between two name
// strings: 1 - distance/max(len), clamped to [0, 1]. Comparison is
// case-insensitive with surrounding whitespace ignored.
func Similarity(a, b string) float64 {
	na := strings.ToLower(strings.TrimSpace(a))
	nb := strings.ToLower(strings.TrimSpace(b))

	if na == nb {
		return 1.0
	}

	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(na, nb)
	similarity := 1.0 - float64(distance)/float64(maxLen)
	if similarity < 0 {
		return 0
	}
	return similarity
}
