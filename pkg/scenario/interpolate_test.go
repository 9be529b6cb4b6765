package scenario

import "testing"

func interpolateDoc() string {
	return `{
		"agent_display_name": "Aria",
		"company_name": "Acme",
		"theme_id": "default",
		"entry_step": "bye",
		"variables": {"agent_name": "Aria", "company": "Acme Corp"},
		"steps": {
			"bye": {"id": "bye", "is_terminal": true, "result": "completed"}
		}
	}`
}

func TestInterpolateUsesCallVariablesOverScenarioDefaults(t *testing.T) {
	s, err := Load([]byte(interpolateDoc()), alwaysExists)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := s.Interpolate("Bonjour {{first_name}}, je suis {{agent_name}} de {{company}}.", map[string]string{"first_name": "Marie"})
	want := "Bonjour Marie, je suis Aria de Acme Corp."
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestInterpolateLeavesUnknownPlaceholderUntouched(t *testing.T) {
	s, err := Load([]byte(interpolateDoc()), alwaysExists)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := s.Interpolate("Valeur: {{unset_var}}", nil)
	if out != "Valeur: {{unset_var}}" {
		t.Fatalf("expected placeholder preserved, got %q", out)
	}
}

func TestInterpolateNoPlaceholdersIsNoop(t *testing.T) {
	s, err := Load([]byte(interpolateDoc()), alwaysExists)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out := s.Interpolate("plain text", nil); out != "plain text" {
		t.Fatalf("expected unchanged text, got %q", out)
	}
}
