package scenario

import (
	"testing"

	"github.com/voxloop/voxloop/pkg/schema"
)

func routingDoc() string {
	return `{
		"agent_display_name": "Aria",
		"company_name": "Acme",
		"theme_id": "default",
		"entry_step": "q1",
		"fallbacks": {"unknown": "bye_failed", "deny": "bye_failed"},
		"steps": {
			"q1": {
				"id": "q1",
				"intent_mapping": {"affirm": "q2", "*": "objection_handler"}
			},
			"q2": {"id": "q2", "intent_mapping": {"*": "bye"}},
			"objection_handler": {"id": "objection_handler", "intent_mapping": {"*": "q1"}},
			"bye": {"id": "bye", "is_terminal": true, "result": "completed"},
			"bye_failed": {"id": "bye_failed", "result": "failed"}
		}
	}`
}

func mustLoadRouting(t *testing.T) *Scenario {
	t.Helper()
	s, err := Load([]byte(routingDoc()), alwaysExists)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func TestRouteUsesStepIntentMappingFirst(t *testing.T) {
	s := mustLoadRouting(t)
	next, err := s.Route("q1", schema.IntentAffirm)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if next != "q2" {
		t.Fatalf("expected q2, got %s", next)
	}
}

func TestRouteFallsBackToStepWildcard(t *testing.T) {
	s := mustLoadRouting(t)
	next, err := s.Route("q1", schema.IntentObjection)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if next != "objection_handler" {
		t.Fatalf("expected objection_handler (step wildcard beats scenario fallback), got %s", next)
	}
}

func TestRouteStepWildcardOutranksScenarioFallbackForIntent(t *testing.T) {
	s := mustLoadRouting(t)
	next, err := s.Route("q2", schema.IntentDeny)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	// q2 has only a wildcard mapping to "bye", which wins over the
	// scenario-level deny fallback since step wildcard outranks it.
	if next != "bye" {
		t.Fatalf("expected bye via step wildcard, got %s", next)
	}
}

func TestRouteUnknownStepIsRoutingError(t *testing.T) {
	s := mustLoadRouting(t)
	_, err := s.Route("does_not_exist", schema.IntentAffirm)
	if err == nil {
		t.Fatalf("expected RoutingError for unknown step")
	}
	if _, ok := err.(*RoutingError); !ok {
		t.Fatalf("expected *RoutingError, got %T", err)
	}
}
