package callcontroller

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/classify"
	"github.com/voxloop/voxloop/pkg/config"
	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/persistence/iface"
	"github.com/voxloop/voxloop/pkg/persistence/providers/inmemory"
	"github.com/voxloop/voxloop/pkg/scenario"
	"github.com/voxloop/voxloop/pkg/schema"
	speechiface "github.com/voxloop/voxloop/pkg/speech/iface"
	softswitchiface "github.com/voxloop/voxloop/pkg/softswitch/iface"
)

func testTimeouts() config.PhaseTimeouts {
	return config.PhaseTimeouts{
		RTPPrimingDelay:      10 * time.Millisecond,
		AMDRecordingWindow:   200 * time.Millisecond,
		BargeInThreshold:     1800 * time.Millisecond,
		BargeInGracePeriod:   500 * time.Millisecond,
		SmoothInterruptDelay: 50 * time.Millisecond,
		SilenceThreshold:     500 * time.Millisecond,
		MinSpeechDuration:    300 * time.Millisecond,
		DefaultStepTimeout:   5 * time.Second,
		MaxCallDuration:      30 * time.Second,
		FileGrowthPollEvery:  100 * time.Millisecond,
	}
}

func loadTestScenario(t *testing.T, doc schema.Scenario) *scenario.Scenario {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal scenario: %v", err)
	}
	scn, err := scenario.Load(raw, nil)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	return scn
}

func leadQualifyingScenario() schema.Scenario {
	return schema.Scenario{
		AgentDisplayName: "Robo",
		CompanyName:      "Acme",
		ThemeID:          "default",
		EntryStep:        "greeting",
		Fallbacks: map[schema.Intent]string{
			schema.IntentUnknown: "close_not_interested",
		},
		Steps: map[string]schema.Step{
			"greeting": {
				ID:                  "greeting",
				AudioPath:           "greeting.wav",
				AudioSource:         schema.AudioSourcePreRecorded,
				QualificationWeight: 100,
				IntentMapping: map[schema.Intent]string{
					schema.IntentAffirm:        "close_lead",
					schema.IntentNotInterested: "close_not_interested",
				},
			},
			"close_lead": {
				ID:         "close_lead",
				IsTerminal: true,
				Result:     schema.StepResultCompleted,
			},
			"close_not_interested": {
				ID:         "close_not_interested",
				IsTerminal: true,
				Result:     schema.StepResultCompleted,
			},
		},
	}
}

func silenceLoopScenario() schema.Scenario {
	return schema.Scenario{
		AgentDisplayName: "Robo",
		CompanyName:      "Acme",
		ThemeID:          "default",
		EntryStep:        "greeting2",
		Steps: map[string]schema.Step{
			"greeting2": {
				ID:          "greeting2",
				AudioPath:   "greeting2.wav",
				AudioSource: schema.AudioSourcePreRecorded,
				IntentMapping: map[schema.Intent]string{
					schema.IntentWildcard:      "greeting2",
					schema.IntentNotInterested: "close_not_interested",
				},
			},
			"close_not_interested": {
				ID:         "close_not_interested",
				IsTerminal: true,
				Result:     schema.StepResultCompleted,
			},
		},
	}
}

func newTestController(t *testing.T, softswitch *fakeSoftswitch, speech *fakeSpeechGateway, persist *capturingPort, recordings *fakeRecordingInspector, clock *fakeClock, intentVocab classify.IntentVocabulary, amdVocab classify.AMDVocabulary) *Controller {
	t.Helper()
	return NewController(
		WithSoftswitch(softswitch),
		WithSpeech(speech),
		WithPersistence(persist),
		WithObjections(emptyObjectionRegistry()),
		WithAMDVocabulary(amdVocab),
		WithIntentVocabulary(intentVocab),
		WithTimeouts(testTimeouts()),
		WithQualificationThreshold(60),
		WithLogger(o11y.NewNop()),
		WithRecordingInspector(recordings),
		WithClock(clock),
	)
}

func basicAMDVocab() classify.AMDVocabulary {
	return classify.AMDVocabulary{
		Human:   classify.NewKeywordClass([]string{"hello"}),
		Machine: classify.NewKeywordClass([]string{"leave a message", "at the tone"}),
	}
}

func basicIntentVocab() classify.IntentVocabulary {
	return classify.NewIntentVocabulary(map[schema.Intent][]string{
		schema.IntentAffirm:        {"yes"},
		schema.IntentNotInterested: {"no thanks", "not interested"},
	})
}

func TestRunCall_HumanAnswersAndQualifiesAsLead(t *testing.T) {
	ss := newFakeSoftswitch("call-1")
	ss.push(&softswitchiface.Event{Type: softswitchiface.EventChannelAnswer, CallID: "call-1"})

	speech := &fakeSpeechGateway{
		transcriptions: []speechiface.TranscriptionResult{
			{Text: "hello this is john"},  // AMD window
			{Text: "yes absolutely"},      // WAITING after greeting
		},
	}

	store := &capturingPort{Port: inmemory.New()}
	recordings := newFakeRecordingInspector(4096)
	clock := newFakeClock()

	ctl := newTestController(t, ss, speech, store, recordings, clock, basicIntentVocab(), basicAMDVocab())
	scn := loadTestScenario(t, leadQualifyingScenario())

	err := ctl.RunCall(context.Background(), nil, CallParams{
		Campaign:    iface.CampaignDefinition{ID: "camp-1"},
		Contact:     iface.Contact{ID: "contact-1"},
		Scenario:    scn,
		Destination: "sofia/gateway/trunk1/15551234567",
		CallerID:    "15550001111",
	})
	if err != nil {
		t.Fatalf("RunCall returned error: %v", err)
	}

	record, ok := store.Port.(*inmemory.Store).Record(store.RowID())
	if !ok {
		t.Fatalf("no call record found for row %q", store.RowID())
	}
	if record.FinalStatus != schema.FinalStatusLead {
		t.Fatalf("final_status = %s, want %s", record.FinalStatus, schema.FinalStatusLead)
	}
	if !record.Finalized {
		t.Fatal("record was never finalized")
	}
	if len(ss.killed) != 1 {
		t.Fatalf("expected exactly one Kill, got %d", len(ss.killed))
	}
}

func TestRunCall_MachineDetectedEndsAsNoAnswer(t *testing.T) {
	ss := newFakeSoftswitch("call-2")
	ss.push(&softswitchiface.Event{Type: softswitchiface.EventChannelAnswer, CallID: "call-2"})

	speech := &fakeSpeechGateway{
		transcriptions: []speechiface.TranscriptionResult{
			{Text: "please leave a message at the tone"},
		},
	}

	store := &capturingPort{Port: inmemory.New()}
	recordings := newFakeRecordingInspector(4096)
	clock := newFakeClock()

	ctl := newTestController(t, ss, speech, store, recordings, clock, basicIntentVocab(), basicAMDVocab())
	scn := loadTestScenario(t, leadQualifyingScenario())

	if err := ctl.RunCall(context.Background(), nil, CallParams{
		Campaign:    iface.CampaignDefinition{ID: "camp-2"},
		Contact:     iface.Contact{ID: "contact-2"},
		Scenario:    scn,
		Destination: "sofia/gateway/trunk1/15551234568",
		CallerID:    "15550001111",
	}); err != nil {
		t.Fatalf("RunCall returned error: %v", err)
	}

	record, ok := store.Port.(*inmemory.Store).Record(store.RowID())
	if !ok {
		t.Fatal("no call record found")
	}
	if record.FinalStatus != schema.FinalStatusNoAnswer {
		t.Fatalf("final_status = %s, want %s", record.FinalStatus, schema.FinalStatusNoAnswer)
	}
	if len(ss.played) != 0 {
		t.Fatal("scenario audio should never play once AMD detects a machine")
	}
}

func TestRunCall_BusyTrunkStillProducesARetryableRecord(t *testing.T) {
	ss := newFakeSoftswitch("unused")
	ss.originateErr = &softswitchFailureError{msg: "NORMAL_TEMPORARY_FAILURE: USER_BUSY"}

	store := &capturingPort{Port: inmemory.New()}
	ctl := newTestController(t, ss, &fakeSpeechGateway{}, store, newFakeRecordingInspector(4096), newFakeClock(), basicIntentVocab(), basicAMDVocab())
	scn := loadTestScenario(t, leadQualifyingScenario())

	if err := ctl.RunCall(context.Background(), nil, CallParams{
		Campaign:    iface.CampaignDefinition{ID: "camp-3"},
		Contact:     iface.Contact{ID: "contact-3"},
		Scenario:    scn,
		Destination: "sofia/gateway/trunk1/15551234569",
		CallerID:    "15550001111",
	}); err != nil {
		t.Fatalf("RunCall returned error: %v", err)
	}

	record, ok := store.Port.(*inmemory.Store).Record(store.RowID())
	if !ok {
		t.Fatal("originate failure must still create a finalized call record")
	}
	if record.FinalStatus != schema.FinalStatusBusy {
		t.Fatalf("final_status = %s, want %s", record.FinalStatus, schema.FinalStatusBusy)
	}
	if !record.Finalized {
		t.Fatal("record was never finalized")
	}
}

func TestRunCall_CallerHangsUpDuringPrompt(t *testing.T) {
	ss := newFakeSoftswitch("call-4")
	ss.push(&softswitchiface.Event{Type: softswitchiface.EventChannelAnswer, CallID: "call-4"})
	ss.suppressPlaybackStop = true
	ss.onPlayEvent = &softswitchiface.Event{
		Type:    softswitchiface.EventChannelHangup,
		CallID:  "call-4",
		Headers: map[string]string{"Hangup-Cause": "NORMAL_CLEARING"},
	}

	speech := &fakeSpeechGateway{
		transcriptions: []speechiface.TranscriptionResult{
			{Text: "hello"},
		},
	}

	store := &capturingPort{Port: inmemory.New()}
	ctl := newTestController(t, ss, speech, store, newFakeRecordingInspector(4096), newFakeClock(), basicIntentVocab(), basicAMDVocab())
	scn := loadTestScenario(t, leadQualifyingScenario())

	if err := ctl.RunCall(context.Background(), nil, CallParams{
		Campaign:    iface.CampaignDefinition{ID: "camp-4"},
		Contact:     iface.Contact{ID: "contact-4"},
		Scenario:    scn,
		Destination: "sofia/gateway/trunk1/15551234570",
		CallerID:    "15550001111",
	}); err != nil {
		t.Fatalf("RunCall returned error: %v", err)
	}

	record, ok := store.Port.(*inmemory.Store).Record(store.RowID())
	if !ok {
		t.Fatal("no call record found")
	}
	if record.FinalStatus != schema.FinalStatusNotInterested {
		t.Fatalf("final_status = %s, want %s", record.FinalStatus, schema.FinalStatusNotInterested)
	}
	if len(ss.killed) != 0 {
		t.Fatal("a caller-initiated hangup must not be followed by a Kill")
	}
}

func TestRunCall_TwoConsecutiveSilencesForceNoAnswer(t *testing.T) {
	ss := newFakeSoftswitch("call-5")
	ss.push(&softswitchiface.Event{Type: softswitchiface.EventChannelAnswer, CallID: "call-5"})

	speech := &fakeSpeechGateway{
		transcriptions: []speechiface.TranscriptionResult{
			{Text: "hello"}, // AMD
			{Text: ""},      // first WAITING: silence
			{Text: ""},      // second WAITING: silence
		},
	}

	store := &capturingPort{Port: inmemory.New()}
	ctl := newTestController(t, ss, speech, store, newFakeRecordingInspector(4096), newFakeClock(), basicIntentVocab(), basicAMDVocab())
	scn := loadTestScenario(t, silenceLoopScenario())

	if err := ctl.RunCall(context.Background(), nil, CallParams{
		Campaign:    iface.CampaignDefinition{ID: "camp-5"},
		Contact:     iface.Contact{ID: "contact-5"},
		Scenario:    scn,
		Destination: "sofia/gateway/trunk1/15551234571",
		CallerID:    "15550001111",
	}); err != nil {
		t.Fatalf("RunCall returned error: %v", err)
	}

	record, ok := store.Port.(*inmemory.Store).Record(store.RowID())
	if !ok {
		t.Fatal("no call record found")
	}
	if record.FinalStatus != schema.FinalStatusNoAnswer {
		t.Fatalf("final_status = %s, want %s", record.FinalStatus, schema.FinalStatusNoAnswer)
	}
	if len(ss.played) != 2 {
		t.Fatalf("expected the greeting to replay on the self-loop, got %d plays", len(ss.played))
	}
}

// softswitchFailureError is a minimal error carrying the provider reply
// text mapOriginateFailure inspects.
type softswitchFailureError struct{ msg string }

func (e *softswitchFailureError) Error() string { return e.msg }
