package scenario

import "github.com/voxloop/voxloop/pkg/schema"

// DefaultQualificationThreshold is the §4.5 default for the is_leads-type
// gating decision when a deployment does not override it via config.
const DefaultQualificationThreshold = 60.0

// QualificationDelta returns how much to add to a call's running
// qualification_score after the caller's intent is classified at stepID
// (§4.5). Only an affirm or interested on a determinant step (one with a
// non-zero qualification_weight) contributes; deny/not_interested and
// non-determinant steps contribute zero.
func (s *Scenario) QualificationDelta(stepID string, intent schema.Intent) float64 {
	step, ok := s.Step(stepID)
	if !ok || step.QualificationWeight == 0 {
		return 0
	}
	switch intent {
	case schema.IntentAffirm, schema.IntentInterested:
		return step.QualificationWeight
	default:
		return 0
	}
}

// IsDeterminant reports whether stepID contributes to the qualification
// score at all, i.e. whether it carries a non-zero qualification_weight.
// Membership in the scenario's "rail" is not consulted.
func (s *Scenario) IsDeterminant(stepID string) bool {
	step, ok := s.Step(stepID)
	return ok && step.QualificationWeight != 0
}

// QualifiesAsLead applies the gating rule at the is_leads-type terminal
// step: Lead iff the accumulated score is at least threshold, else
// NotInterested.
func QualifiesAsLead(qualificationScore, threshold float64) schema.FinalStatus {
	if threshold <= 0 {
		threshold = DefaultQualificationThreshold
	}
	if qualificationScore >= threshold {
		return schema.FinalStatusLead
	}
	return schema.FinalStatusNotInterested
}
