package vectorstore

import (
	"strings"
	"unicode"
)

// tokenize splits text into lowercase terms. Any run of letters or
// digits is a term; everything else separates. Unicode-aware so
// Vietnamese diacritics survive.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// termOverlap returns the ratio of unique query terms found in the
// document terms, in [0,1].
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0
	}

	docSet := make(map[string]struct{}, len(docTokens))
	for _, tok := range docTokens {
		docSet[tok] = struct{}{}
	}

	matched := 0
	counted := make(map[string]struct{}, len(queryTokens))
	unique := 0
	for _, tok := range queryTokens {
		if _, seen := counted[tok]; seen {
			continue
		}
		counted[tok] = struct{}{}
		unique++
		if _, ok := docSet[tok]; ok {
			matched++
		}
	}

	return float32(matched) / float32(unique)
}
