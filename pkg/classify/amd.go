package classify

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/voxloop/voxloop/pkg/schema"
)

// KeywordClass is one side of the AMD vocabulary (§4.3).
type KeywordClass struct {
	Keywords   []string
	normalized []string
}

// NewKeywordClass pre-normalises a keyword list once, mirroring the
// objection library's load-time pre-computation (§4.4).
func NewKeywordClass(keywords []string) KeywordClass {
	normalized := make([]string, len(keywords))
	for i, k := range keywords {
		normalized[i] = Normalize(k)
	}
	return KeywordClass{Keywords: keywords, normalized: normalized}
}

// fuzzyThreshold is the minimum token-level similarity ratio accepted by
// the AMD classifier's second tier (§4.3).
const fuzzyThreshold = 0.85

// matchScore scores one keyword class against normalised input text and
// its tokens, returning (confidence, matchCount).
func matchScore(input string, tokens []string, class KeywordClass) (float64, int) {
	if len(class.normalized) == 0 {
		return 0, 0
	}
	matches := 0
	for _, kw := range class.normalized {
		if kw == "" {
			continue
		}
		if strings.Contains(input, kw) {
			matches++
			continue
		}
		if fuzzyTokenMatch(kw, tokens) {
			matches++
		}
	}
	if matches == 0 {
		return 0, 0
	}
	conf := float64(matches) / float64(len(class.normalized))
	if matches >= 2 {
		conf += 0.2
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf, matches
}

// fuzzyTokenMatch reports whether any token's similarity ratio to kw meets
// the fuzzy threshold, using Levenshtein distance normalised by the longer
// string's length (a standard similarity-ratio construction).
func fuzzyTokenMatch(kw string, tokens []string) bool {
	for _, tok := range tokens {
		if similarityRatio(kw, tok) >= fuzzyThreshold {
			return true
		}
	}
	return false
}

// similarityRatio converts edit distance into a 0..1 similarity score.
func similarityRatio(a, b string) float64 {
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
	return 1.0 - float64(dist)/float64(maxLen)
}

// AMDVocabulary holds the human and machine keyword classes used by
// ClassifyAMD.
type AMDVocabulary struct {
	Human   KeywordClass
	Machine KeywordClass
}

// ClassifyAMD applies the two-tier (exact, then fuzzy) classifier and the
// §4.3 decision rule. On Unknown, the call continues — false-negative cost
// dominates false positives here.
func ClassifyAMD(text string, vocab AMDVocabulary) (schema.AMDResult, float64) {
	normalized := Normalize(text)
	if normalized == "" {
		return schema.AMDSilence, 0
	}
	tokens := Tokens(normalized)

	machineConf, _ := matchScore(normalized, tokens, vocab.Machine)
	humanConf, _ := matchScore(normalized, tokens, vocab.Human)

	switch {
	case machineConf >= 0.6 && machineConf > humanConf:
		return schema.AMDMachine, machineConf
	case humanConf >= 0.6:
		return schema.AMDHuman, humanConf
	default:
		return schema.AMDUnknown, maxFloat(machineConf, humanConf)
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
