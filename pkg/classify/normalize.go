// Package classify implements the pure-function AMD classifier and intent
// matcher (§4.3). Nothing in this package performs I/O; both entry points
// are safe to call with no context and must never throw on empty input.
package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticsFold strips combining marks after NFD-normalising, i.e. it
// removes accents ("allô" -> "allo").
var diacriticsFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lower-cases, folds diacritics, and strips punctuation, matching
// the normalisation both the AMD classifier and the intent matcher apply
// before any keyword comparison (§4.3).
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	folded, _, err := transform.String(diacriticsFold, lowered)
	if err != nil {
		folded = lowered
	}
	var b strings.Builder
	b.Grow(len(folded))
	lastWasSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r):
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		default:
			// Punctuation is dropped, but treated as a word boundary.
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits already-normalised text on whitespace.
func Tokens(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}
