package country

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinConfidence is the lowest fuzzy confidence accepted as a match.
const MinConfidence = 0.5

// clean lowercases s, folds diacritics and collapses every run of
// non-alphanumerics into one space. clean(clean(s)) == clean(s).
func clean(s string) string {
	s = strings.ToLower(s)
	// Transformers hold state, so one chain per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

func tokenize(s string) []string {
	return strings.Fields(s)
}

func spaced(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

func informative(tokens []string) int {
	n := 0
	for _, t := range tokens {
		if !stopWords[t] {
			n++
		}
	}
	return n
}

// containsSeq reports whether needle occurs as a contiguous run in hay.
func containsSeq(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, t := range needle {
			if hay[i+j] != t {
				continue outer
			}
		}
		return true
	}
	return false
}

type fuzzyResult struct {
	key        string
	variant    string
	confidence float64
	ambiguous  bool
}

// fuzzyMatch finds variants whose tokens appear on token boundaries within
// cleaned input. It never matches inside a word, so "niger" does not match
// "nigeria".
func fuzzyMatch(cleaned string) (fuzzyResult, bool) {
	tokens := tokenize(cleaned)
	total := informative(tokens)
	if total == 0 {
		return fuzzyResult{}, false
	}

	var best fuzzyResult
	keys := map[string]bool{}
	for _, e := range fuzzy {
		if !containsSeq(tokens, e.tokens) {
			continue
		}
		matched := informative(e.tokens)
		if matched == 0 {
			continue
		}
		conf := float64(matched) / float64(total)
		switch {
		case conf > best.confidence:
			best = fuzzyResult{key: e.key, variant: e.variant, confidence: conf}
			keys = map[string]bool{e.key: true}
		case conf == best.confidence:
			keys[e.key] = true
			if len(e.variant) > len(best.variant) || (len(e.variant) == len(best.variant) && e.variant < best.variant) {
				best.key, best.variant = e.key, e.variant
			}
		}
	}

	if best.confidence < MinConfidence {
		return fuzzyResult{}, false
	}
	best.ambiguous = len(keys) > 1
	return best, true
}
