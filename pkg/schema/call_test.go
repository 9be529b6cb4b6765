package schema

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseDialing, PhaseAMD, true},
		{PhaseAMD, PhasePlaying, true},
		{PhasePlaying, PhaseWaiting, true},
		{PhaseWaiting, PhaseProcessing, true},
		{PhaseProcessing, PhasePlaying, true}, // cycle back for next step
		{PhaseProcessing, PhaseTerminating, true},
		{PhaseTerminating, PhaseDone, true},
		{PhasePlaying, PhaseDialing, false},
		{PhaseAMD, PhaseAMD, false},
		{PhaseDone, PhasePlaying, false},
		{PhaseWaiting, PhaseAMD, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCallSessionFinalStatusWriteOnce(t *testing.T) {
	s := NewCallSession("contact-1", "campaign-1")
	if err := s.SetFinalStatus(FinalStatusLead); err != nil {
		t.Fatalf("first SetFinalStatus: %v", err)
	}
	if err := s.SetFinalStatus(FinalStatusFailed); err == nil {
		t.Fatal("expected error writing final_status twice")
	}
	if s.FinalStatus != FinalStatusLead {
		t.Fatalf("final status mutated to %s by rejected write", s.FinalStatus)
	}
}

func TestCallSessionIllegalPhaseTransition(t *testing.T) {
	s := NewCallSession("contact-1", "campaign-1")
	if err := s.TransitionPhase(PhaseAMD); err != nil {
		t.Fatalf("Dialing->AMD should be legal: %v", err)
	}
	if err := s.TransitionPhase(PhaseDialing); err == nil {
		t.Fatal("expected error re-entering Dialing")
	}
}

func TestFinalStatusForHangupCause(t *testing.T) {
	cases := map[HangupCause]FinalStatus{
		HangupNormalClearing:  FinalStatusNotInterested,
		HangupOriginatorCancel: FinalStatusNotInterested,
		HangupRecvBye:         FinalStatusNotInterested,
		HangupUserBusy:        FinalStatusBusy,
		HangupNoAnswer:        FinalStatusNoAnswer,
		HangupNoUserResponse:  FinalStatusNoAnswer,
		HangupCause("SOMETHING_ELSE"): FinalStatusFailed,
	}
	for cause, want := range cases {
		if got := FinalStatusForHangupCause(cause); got != want {
			t.Errorf("FinalStatusForHangupCause(%s) = %s, want %s", cause, got, want)
		}
	}
}
