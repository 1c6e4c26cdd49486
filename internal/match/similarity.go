package match

import (
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Similarity returns a normalized string-similarity score in [0, 1]:
// 1 - levenshtein distance / length of the longer string. Both inputs are
// expected to be normalized already.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return 1.0 - float64(distance)/float64(maxLen)
}
