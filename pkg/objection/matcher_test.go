package objection

import "testing"

func testLoader(theme string) ([]RawEntry, error) {
	return []RawEntry{
		{
			Keywords:          []string{"trop cher", "prix eleve", "c'est cher"},
			ResponseAudioPath: "audio/price_too_high.wav",
			FallbackText:      "Je comprends, laissez-moi vous expliquer nos tarifs.",
			Category:          "price_too_high",
		},
		{
			Keywords:          []string{"pas le temps", "occupe", "plus tard"},
			ResponseAudioPath: "audio/no_time.wav",
			FallbackText:      "Cela ne prendra que deux minutes.",
			Category:          "no_time",
		},
	}, nil
}

func TestFindObjectionMatchesPriceConcern(t *testing.T) {
	reg, err := NewRegistry(testLoader, "default")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	entry, score, err := FindObjection(reg, "c'est trop cher pour moi", "default", 0.5)
	if err != nil {
		t.Fatalf("FindObjection: %v", err)
	}
	if entry == nil {
		t.Fatalf("expected a match, got none (score=%f)", score)
	}
	if entry.Category != "price_too_high" {
		t.Fatalf("expected price_too_high, got %s", entry.Category)
	}
}

func TestFindObjectionNoMatchBelowMinScore(t *testing.T) {
	reg, err := NewRegistry(testLoader, "default")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	entry, _, err := FindObjection(reg, "quel temps fait-il aujourd'hui", "default", 0.5)
	if err != nil {
		t.Fatalf("FindObjection: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected no match, got %+v", entry)
	}
}

func TestRegistryLazyLoadsNonDefaultTheme(t *testing.T) {
	calls := 0
	loader := func(theme string) ([]RawEntry, error) {
		calls++
		return testLoader(theme)
	}
	reg, err := NewRegistry(loader, "default")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected eager load of default theme exactly once, got %d", calls)
	}
	if _, _, err := FindObjection(reg, "trop cher", "upsell", 0.5); err != nil {
		t.Fatalf("FindObjection: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected lazy load of second theme, got %d calls", calls)
	}
	if _, _, err := FindObjection(reg, "trop cher", "upsell", 0.5); err != nil {
		t.Fatalf("FindObjection: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected cached theme not to reload, got %d calls", calls)
	}
}
