package scenario

import "fmt"

// Error codes for scenario load-time and runtime failures.
const (
	ErrCodeInvalidJSON        = "invalid_json"
	ErrCodeUnknownIntentKey   = "unknown_intent_key"
	ErrCodeDanglingStepRef    = "dangling_step_ref"
	ErrCodeMissingAudioFile   = "missing_audio_file"
	ErrCodeUnreachableCycle   = "unreachable_cycle"
	ErrCodeNegativeTimeout    = "negative_timeout"
	ErrCodeNegativeMaxTurns   = "negative_max_turns"
	ErrCodeStepNotFound       = "step_not_found"
	ErrCodeNoEntryStep        = "no_entry_step"
)

// ValidationError reports a single load-time scenario-authoring defect
// (§4.5). Multiple ValidationErrors are collected into a *LoadError.
type ValidationError struct {
	StepID string
	Code   string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("scenario: step %q: %s (%s)", e.StepID, e.Detail, e.Code)
	}
	return fmt.Sprintf("scenario: %s (%s)", e.Detail, e.Code)
}

// LoadError aggregates every ValidationError found for a scenario document,
// so authors see every problem in one pass instead of fixing them one at a
// time.
type LoadError struct {
	Errors []*ValidationError
}

func (e *LoadError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("scenario: %d validation errors, first: %s", len(e.Errors), e.Errors[0].Error())
}

func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		errs[i] = ve
	}
	return errs
}

// RoutingError reports a scenario attempting to route to a step id that
// does not exist. Per §4.6.7 this is a scenario-authoring bug discovered
// at runtime and aborts the call with FinalStatusFailed.
type RoutingError struct {
	FromStep string
	ToStep   string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("scenario: step %q routes to non-existent step %q", e.FromStep, e.ToStep)
}
