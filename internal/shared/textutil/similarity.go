package textutil

import (
	"strings"
	"unicode"
)

// SimilarityScore returns the Jaccard similarity of the word sets of a and b.
// Words are lower-cased runs of letters, digits and comparison signs, so
// "<=80 words" keeps its bound.
func SimilarityScore(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for word := range setB {
		if setA[word] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(value string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("<>=", r)
	})
	set := make(map[string]bool, len(words))
	for _, word := range words {
		set[word] = true
	}
	return set
}
