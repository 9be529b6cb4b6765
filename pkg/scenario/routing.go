package scenario

import "github.com/voxloop/voxloop/pkg/schema"

// Route resolves the next step id for a classified intent at the current
// step, applying the exact precedence order from §4.5:
//
//  1. step.intent_mapping[intent]
//  2. step.intent_mapping["*"]
//  3. scenario.fallbacks[intent]
//  4. scenario.fallbacks["unknown"]
//
// A step's own wildcard always takes precedence over the scenario-level
// fallbacks, even the scenario's intent-specific fallback.
func (s *Scenario) Route(stepID string, intent schema.Intent) (string, error) {
	step, ok := s.Step(stepID)
	if !ok {
		return "", &RoutingError{FromStep: stepID, ToStep: stepID}
	}

	if target, ok := step.IntentMapping[intent]; ok {
		return s.resolved(stepID, target)
	}
	if target, ok := step.IntentMapping[schema.IntentWildcard]; ok {
		return s.resolved(stepID, target)
	}
	if target, ok := s.doc.Fallbacks[intent]; ok {
		return s.resolved(stepID, target)
	}
	if target, ok := s.doc.Fallbacks[schema.IntentUnknown]; ok {
		return s.resolved(stepID, target)
	}
	return "", &RoutingError{FromStep: stepID, ToStep: "<no route>"}
}

// resolved validates that a chosen routing target actually exists before
// handing it back to the call controller. Load-time validation already
// rules this out for well-formed documents, but Route stays defensive since
// it runs against live call state.
func (s *Scenario) resolved(fromStep, target string) (string, error) {
	if _, ok := s.doc.Steps[target]; !ok {
		return "", &RoutingError{FromStep: fromStep, ToStep: target}
	}
	return target, nil
}
