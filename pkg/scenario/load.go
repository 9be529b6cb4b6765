package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/voxloop/voxloop/pkg/schema"
)

// FileExistsFunc probes whether an audio file is present; injected so
// loading can be tested without a real filesystem/CDN.
type FileExistsFunc func(path string) bool

var structValidator = validator.New()

// Scenario wraps a validated, immutable schema.Scenario with the indices
// the engine needs for fast step lookup (§4.5).
type Scenario struct {
	doc *schema.Scenario
}

// Document returns the underlying immutable scenario document.
func (s *Scenario) Document() *schema.Scenario { return s.doc }

// Step looks up a step by id.
func (s *Scenario) Step(id string) (schema.Step, bool) {
	step, ok := s.doc.Steps[id]
	return step, ok
}

// EntryStep returns the scenario's first step.
func (s *Scenario) EntryStep() (schema.Step, bool) {
	return s.Step(s.doc.EntryStep)
}

// RailProgress reports the step's position on the scenario's "rail" (happy
// path), for logging/metrics only — never used for routing (§10).
func (s *Scenario) RailProgress(stepID string) (index, total int) {
	total = len(s.doc.Rail)
	for i, id := range s.doc.Rail {
		if id == stepID {
			return i, total
		}
	}
	return -1, total
}

// Load parses and validates a scenario document from JSON bytes, rejecting
// every defect named in §4.5: unknown intent keys, dangling step
// references, missing audio files, cycles with no reachable terminal, and
// negative timeouts/turn counts.
func Load(raw []byte, fileExists FileExistsFunc) (*Scenario, error) {
	var doc schema.Scenario
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &LoadError{Errors: []*ValidationError{{
			Code:   ErrCodeInvalidJSON,
			Detail: fmt.Sprintf("malformed JSON: %v", err),
		}}}
	}

	var errs []*ValidationError

	if err := structValidator.Struct(&doc); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, &ValidationError{
					Code:   ErrCodeInvalidJSON,
					Detail: fmt.Sprintf("field %q failed %q validation", fe.Namespace(), fe.Tag()),
				})
			}
		} else {
			errs = append(errs, &ValidationError{Code: ErrCodeInvalidJSON, Detail: err.Error()})
		}
	}

	if doc.EntryStep == "" {
		errs = append(errs, &ValidationError{Code: ErrCodeNoEntryStep, Detail: "scenario has no entry_step"})
	} else if _, ok := doc.Steps[doc.EntryStep]; !ok {
		errs = append(errs, &ValidationError{Code: ErrCodeDanglingStepRef, Detail: fmt.Sprintf("entry_step %q not found", doc.EntryStep)})
	}

	for id, step := range doc.Steps {
		stepErrs := validateStep(id, step, doc, fileExists)
		errs = append(errs, stepErrs...)
	}

	for intent, target := range doc.Fallbacks {
		if intent != schema.IntentWildcard && !schema.ValidIntents[intent] {
			errs = append(errs, &ValidationError{Code: ErrCodeUnknownIntentKey, Detail: fmt.Sprintf("fallbacks has unknown intent key %q", intent)})
		}
		if _, ok := doc.Steps[target]; !ok {
			errs = append(errs, &ValidationError{Code: ErrCodeDanglingStepRef, Detail: fmt.Sprintf("fallbacks[%q] references undefined step %q", intent, target)})
		}
	}

	if len(errs) == 0 {
		if cycleErr := checkTerminalReachability(doc); cycleErr != nil {
			errs = append(errs, cycleErr)
		}
	}

	if len(errs) > 0 {
		return nil, &LoadError{Errors: errs}
	}
	return &Scenario{doc: &doc}, nil
}

func validateStep(id string, step schema.Step, doc schema.Scenario, fileExists FileExistsFunc) []*ValidationError {
	var errs []*ValidationError

	if step.TimeoutSeconds < 0 {
		errs = append(errs, &ValidationError{StepID: id, Code: ErrCodeNegativeTimeout, Detail: "negative timeout_seconds"})
	}
	if step.MaxAutonomousTurns < 0 {
		errs = append(errs, &ValidationError{StepID: id, Code: ErrCodeNegativeMaxTurns, Detail: "negative max_autonomous_turns"})
	}
	if step.AudioSource == schema.AudioSourcePreRecorded && fileExists != nil && step.AudioPath != "" {
		if !fileExists(step.AudioPath) {
			errs = append(errs, &ValidationError{StepID: id, Code: ErrCodeMissingAudioFile, Detail: fmt.Sprintf("audio file not found: %s", step.AudioPath)})
		}
	}
	for intent, target := range step.IntentMapping {
		if intent != schema.IntentWildcard && !schema.ValidIntents[intent] {
			errs = append(errs, &ValidationError{StepID: id, Code: ErrCodeUnknownIntentKey, Detail: fmt.Sprintf("unknown intent key %q", intent)})
		}
		if _, ok := doc.Steps[target]; !ok {
			errs = append(errs, &ValidationError{StepID: id, Code: ErrCodeDanglingStepRef, Detail: fmt.Sprintf("intent_mapping[%q] references undefined step %q", intent, target)})
		}
	}
	return errs
}

// checkTerminalReachability rejects scenarios containing a cycle from which
// no terminal step is reachable (§4.5 rule d). It performs a reachability
// sweep from every step to any terminal step using only intent_mapping and
// fallback edges.
func checkTerminalReachability(doc schema.Scenario) *ValidationError {
	adjacency := buildAdjacency(doc)
	terminal := make(map[string]bool)
	for id, step := range doc.Steps {
		if step.Terminal() {
			terminal[id] = true
		}
	}
	if len(terminal) == 0 {
		return &ValidationError{Code: ErrCodeUnreachableCycle, Detail: "scenario has no terminal step at all"}
	}

	canReachTerminal := make(map[string]bool)
	var visit func(id string, seen map[string]bool) bool
	visit = func(id string, seen map[string]bool) bool {
		if terminal[id] {
			return true
		}
		if v, ok := canReachTerminal[id]; ok {
			return v
		}
		if seen[id] {
			return false // currently on the stack: treat as not-yet-proven
		}
		seen[id] = true
		reach := false
		for _, next := range adjacency[id] {
			if visit(next, seen) {
				reach = true
				break
			}
		}
		canReachTerminal[id] = reach
		return reach
	}

	for id := range doc.Steps {
		if !visit(id, map[string]bool{}) {
			return &ValidationError{StepID: id, Code: ErrCodeUnreachableCycle, Detail: "no terminal step is reachable from here"}
		}
	}
	return nil
}

func buildAdjacency(doc schema.Scenario) map[string][]string {
	adj := make(map[string][]string, len(doc.Steps))
	for id, step := range doc.Steps {
		targets := make(map[string]bool)
		for _, target := range step.IntentMapping {
			targets[target] = true
		}
		for _, target := range doc.Fallbacks {
			targets[target] = true
		}
		for target := range targets {
			adj[id] = append(adj[id], target)
		}
	}
	return adj
}
