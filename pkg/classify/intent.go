package classify

import (
	"strings"

	"github.com/voxloop/voxloop/pkg/schema"
)

// intentPriority is the fixed scan order from §4.3: first keyword hit wins.
var intentPriority = []schema.Intent{
	schema.IntentAffirm,
	schema.IntentInterested,
	schema.IntentDeny,
	schema.IntentNotInterested,
	schema.IntentCallback,
	schema.IntentObjection,
	schema.IntentQuestion,
	schema.IntentUnsure,
}

// IntentVocabulary maps each non-control-flow intent to its keyword class.
type IntentVocabulary map[schema.Intent]KeywordClass

// NewIntentVocabulary normalises a raw keyword-list-per-intent map once.
func NewIntentVocabulary(raw map[schema.Intent][]string) IntentVocabulary {
	vocab := make(IntentVocabulary, len(raw))
	for intent, keywords := range raw {
		vocab[intent] = NewKeywordClass(keywords)
	}
	return vocab
}

// MatchIntent scans intents in priority order and returns the first hit,
// with confidence scaled by match count (§4.3). It takes no theme
// parameter and is theme-agnostic; themed vocabularies are selected by the
// caller before invocation.
func MatchIntent(text string, vocab IntentVocabulary) (intent schema.Intent, confidence float64, matchedKeywords []string) {
	normalized := Normalize(text)
	if normalized == "" {
		return schema.IntentUnknown, 0, nil
	}
	tokens := Tokens(normalized)

	for _, candidate := range intentPriority {
		class, ok := vocab[candidate]
		if !ok {
			continue
		}
		matched := matchedKeywordsFor(normalized, tokens, class)
		if len(matched) == 0 {
			continue
		}
		conf := float64(len(matched)) / float64(len(class.normalized))
		if conf > 1.0 {
			conf = 1.0
		}
		return candidate, conf, matched
	}
	return schema.IntentUnknown, 0, nil
}

func matchedKeywordsFor(input string, tokens []string, class KeywordClass) []string {
	var matched []string
	for i, kw := range class.normalized {
		if kw == "" {
			continue
		}
		if strings.Contains(input, kw) || fuzzyTokenMatch(kw, tokens) {
			matched = append(matched, class.Keywords[i])
		}
	}
	return matched
}
