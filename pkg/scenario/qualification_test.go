package scenario

import (
	"testing"

	"github.com/voxloop/voxloop/pkg/schema"
)

func qualificationDoc() string {
	return `{
		"agent_display_name": "Aria",
		"company_name": "Acme",
		"theme_id": "default",
		"entry_step": "step1",
		"steps": {
			"step1": {"id": "step1", "qualification_weight": 40, "intent_mapping": {"*": "step2"}},
			"step2": {"id": "step2", "qualification_weight": 40, "intent_mapping": {"*": "bye"}},
			"bye": {"id": "bye", "is_terminal": true, "result": "completed"}
		}
	}`
}

func TestQualificationDeltaAddsWeightOnAffirm(t *testing.T) {
	s, err := Load([]byte(qualificationDoc()), alwaysExists)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d := s.QualificationDelta("step1", schema.IntentAffirm); d != 40 {
		t.Fatalf("expected 40, got %f", d)
	}
	if d := s.QualificationDelta("step1", schema.IntentInterested); d != 40 {
		t.Fatalf("expected 40 for interested, got %f", d)
	}
}

func TestQualificationDeltaZeroOnDeny(t *testing.T) {
	s, err := Load([]byte(qualificationDoc()), alwaysExists)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d := s.QualificationDelta("step1", schema.IntentDeny); d != 0 {
		t.Fatalf("expected 0 on deny, got %f", d)
	}
	if d := s.QualificationDelta("bye", schema.IntentAffirm); d != 0 {
		t.Fatalf("expected 0 on non-determinant step, got %f", d)
	}
}

func TestQualifiesAsLeadMatchesExample(t *testing.T) {
	// §/EXAMPLES: two determinant steps of weight 40 each -> score 80 -> Lead.
	score := 0.0
	score += 40
	score += 40
	if got := QualifiesAsLead(score, DefaultQualificationThreshold); got != schema.FinalStatusLead {
		t.Fatalf("expected Lead, got %s", got)
	}
	if got := QualifiesAsLead(40, DefaultQualificationThreshold); got != schema.FinalStatusNotInterested {
		t.Fatalf("expected NotInterested, got %s", got)
	}
}
