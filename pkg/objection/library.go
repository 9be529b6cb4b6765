// Package objection implements the thematic objection libraries and the
// fuzzy matcher described in §4.4. Theme libraries are loaded once and
// cached for process lifetime (§4.4 Lifecycle): the default theme eagerly,
// others lazily on first use.
package objection

import (
	"fmt"
	"sync"

	"github.com/voxloop/voxloop/pkg/classify"
	"github.com/voxloop/voxloop/pkg/schema"
)

// stopwords are pre-filtered out of both the input and entry keyword sets
// before the overlap term of the score is computed (§4.4).
var stopwords = map[string]bool{
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"de": true, "du": true, "et": true, "est": true, "je": true, "tu": true,
	"il": true, "elle": true, "nous": true, "vous": true, "ca": true, "ce": true,
	"a": true, "au": true, "que": true, "qui": true, "pour": true, "avec": true,
}

// Entry is a loaded, pre-computed objection entry (§3).
type Entry = schema.ObjectionEntry

// Loader produces the raw entries for one theme id. Implementations read
// from the pluggable prompts/grammars directory (§6); the core only needs
// the parsed result.
type Loader func(theme string) ([]RawEntry, error)

// RawEntry is an objection entry as authored, before keyword
// pre-computation.
type RawEntry struct {
	Keywords          []string
	ResponseAudioPath string
	FallbackText      string
	Category          string
}

// Library is a theme's loaded, pre-computed objection entries.
type Library struct {
	Theme   string
	Entries []Entry
}

// Registry lazily loads and caches theme libraries for process lifetime.
type Registry struct {
	loader Loader

	mu    sync.RWMutex
	cache map[string]*Library
}

// NewRegistry constructs a Registry. If defaultTheme is non-empty it is
// loaded eagerly, matching §4.4's default-eager / others-lazy lifecycle.
func NewRegistry(loader Loader, defaultTheme string) (*Registry, error) {
	r := &Registry{loader: loader, cache: make(map[string]*Library)}
	if defaultTheme != "" {
		if _, err := r.Get(defaultTheme); err != nil {
			return nil, fmt.Errorf("objection: eager load of default theme %q: %w", defaultTheme, err)
		}
	}
	return r, nil
}

// Get returns the cached Library for theme, loading and pre-computing it on
// first access.
func (r *Registry) Get(theme string) (*Library, error) {
	r.mu.RLock()
	lib, ok := r.cache[theme]
	r.mu.RUnlock()
	if ok {
		return lib, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if lib, ok := r.cache[theme]; ok {
		return lib, nil
	}

	raw, err := r.loader(theme)
	if err != nil {
		return nil, fmt.Errorf("objection: load theme %q: %w", theme, err)
	}

	lib = &Library{Theme: theme, Entries: make([]Entry, 0, len(raw))}
	for _, re := range raw {
		lib.Entries = append(lib.Entries, precompute(re))
	}
	r.cache[theme] = lib
	return lib, nil
}

// precompute normalises and tokenises an authored entry once at load time.
func precompute(re RawEntry) Entry {
	normalizedKeywords := make([]string, 0, len(re.Keywords))
	for _, kw := range re.Keywords {
		norm := classify.Normalize(kw)
		if norm == "" {
			continue
		}
		normalizedKeywords = append(normalizedKeywords, filterStopwordTokens(norm)...)
	}
	canonical := classify.Normalize(joinKeywords(re.Keywords))
	return Entry{
		Keywords:          re.Keywords,
		NormalizedTokens:  normalizedKeywords,
		CanonicalForm:     canonical,
		ResponseAudioPath: re.ResponseAudioPath,
		FallbackText:      re.FallbackText,
		Category:          re.Category,
	}
}

func joinKeywords(keywords []string) string {
	out := ""
	for i, kw := range keywords {
		if i > 0 {
			out += " "
		}
		out += kw
	}
	return out
}

func filterStopwordTokens(normalized string) []string {
	tokens := classify.Tokens(normalized)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !stopwords[tok] {
			out = append(out, tok)
		}
	}
	return out
}
