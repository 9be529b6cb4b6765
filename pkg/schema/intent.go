package schema

// Intent is the closed set of classified caller-utterance meanings (§3).
type Intent string

const (
	IntentAffirm        Intent = "affirm"
	IntentDeny          Intent = "deny"
	IntentUnsure        Intent = "unsure"
	IntentQuestion      Intent = "question"
	IntentObjection     Intent = "objection"
	IntentInterested    Intent = "interested"
	IntentNotInterested Intent = "not_interested"
	IntentCallback      Intent = "callback"
	IntentSilence       Intent = "silence"
	IntentUnknown       Intent = "unknown"
	IntentWildcard      Intent = "*"
)

// ValidIntents is the closed set usable in scenario intent_mapping keys.
// `silence` is excluded: it is a control-flow intent only the Call
// Controller produces on timeout, never a matcher output (§4.3).
var ValidIntents = map[Intent]bool{
	IntentAffirm:        true,
	IntentDeny:          true,
	IntentUnsure:        true,
	IntentQuestion:      true,
	IntentObjection:     true,
	IntentInterested:    true,
	IntentNotInterested: true,
	IntentCallback:      true,
	IntentUnknown:       true,
	IntentWildcard:      true,
}

// AMDResult is the outcome of answering-machine detection (§4.3).
type AMDResult string

const (
	AMDHuman   AMDResult = "Human"
	AMDMachine AMDResult = "Machine"
	AMDUnknown AMDResult = "Unknown"
	AMDSilence AMDResult = "Silence"
)

// ObjectionEntry is one thematic library entry: a recognised caller
// concern paired with a pre-authored audio rebuttal (§3, §4.4).
type ObjectionEntry struct {
	Keywords         []string
	NormalizedTokens []string // pre-computed at library load (§3)
	CanonicalForm    string
	ResponseAudioPath string
	FallbackText     string
	Category         string
}

// HangupCause is the softswitch's channel-hangup cause header (§4.6.6).
type HangupCause string

const (
	HangupNormalClearing  HangupCause = "NORMAL_CLEARING"
	HangupOriginatorCancel HangupCause = "ORIGINATOR_CANCEL"
	HangupRecvBye         HangupCause = "recv_bye"
	HangupUserBusy        HangupCause = "USER_BUSY"
	HangupNoAnswer        HangupCause = "NO_ANSWER"
	HangupNoUserResponse  HangupCause = "NO_USER_RESPONSE"
)

// FinalStatusForHangupCause maps a caller-initiated hangup cause to the
// deterministic final_status required by §4.6.6 / §8 invariant 2.
func FinalStatusForHangupCause(cause HangupCause) FinalStatus {
	switch cause {
	case HangupNormalClearing, HangupOriginatorCancel, HangupRecvBye:
		return FinalStatusNotInterested
	case HangupUserBusy:
		return FinalStatusBusy
	case HangupNoAnswer, HangupNoUserResponse:
		return FinalStatusNoAnswer
	default:
		return FinalStatusFailed
	}
}
