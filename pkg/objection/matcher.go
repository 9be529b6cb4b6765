package objection

import (
	"github.com/agnivade/levenshtein"
	"github.com/voxloop/voxloop/pkg/classify"
)

// sequenceSimilarity returns a 0..1 ratio derived from normalised
// Levenshtein edit distance between two strings, the same construction the
// AMD classifier's fuzzy tier uses (§4.3, §4.4).
func sequenceSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	ratio := 1.0 - float64(dist)/float64(maxLen)
	if ratio < 0 {
		ratio = 0
	}
	return ratio
}

// keywordOverlap is |intersection| / max(|a|, |b|) over two token sets.
func keywordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(b))
	for _, tok := range b {
		set[tok] = true
	}
	overlap := 0
	for _, tok := range a {
		if set[tok] {
			overlap++
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(overlap) / float64(denom)
}

// score implements the §4.4 hybrid formula:
//
//	0.7 * sequence_similarity(input, entry.canonical_form)
//	  + 0.3 * (|keyword_overlap| / max(|input_keywords|, |entry_keywords|))
func score(inputNormalized string, inputTokens []string, entry Entry) float64 {
	seq := sequenceSimilarity(inputNormalized, entry.CanonicalForm)
	overlap := keywordOverlap(inputTokens, entry.NormalizedTokens)
	return 0.7*seq + 0.3*overlap
}

// FindObjection returns the highest-scoring entry in theme's library whose
// score is >= minScore, or nil if none qualify (§4.4). Typical minScore: 0.5.
func FindObjection(registry *Registry, text, theme string, minScore float64) (*Entry, float64, error) {
	lib, err := registry.Get(theme)
	if err != nil {
		return nil, 0, err
	}

	normalized := classify.Normalize(text)
	tokens := filterStopwordTokens(normalized)

	var best *Entry
	var bestScore float64
	for i := range lib.Entries {
		s := score(normalized, tokens, lib.Entries[i])
		if best == nil || s > bestScore {
			bestScore = s
			best = &lib.Entries[i]
		}
	}
	if best == nil || bestScore < minScore {
		return nil, bestScore, nil
	}
	return best, bestScore, nil
}
