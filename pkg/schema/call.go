// Package schema defines the wire- and memory-level data model shared by
// every VoxLoop package: the call session, the scenario document, objection
// entries, and the closed intent set (spec §3).
package schema

import "time"

// Phase is one node in the call lifecycle state machine (§4.6.1, §8.3).
type Phase string

const (
	PhaseDialing     Phase = "Dialing"
	PhaseAMD         Phase = "AMD"
	PhasePlaying     Phase = "Playing"
	PhaseWaiting     Phase = "Waiting"
	PhaseProcessing  Phase = "Processing"
	PhaseTerminating Phase = "Terminating"
	PhaseDone        Phase = "Done"
)

// phaseOrder is the strictly non-repeating prefix phases must follow,
// excluding the Playing/Waiting/Processing cycle (§8, invariant 3).
var phaseOrder = []Phase{PhaseDialing, PhaseAMD, PhasePlaying, PhaseWaiting, PhaseProcessing, PhaseTerminating, PhaseDone}

func phaseRank(p Phase) int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// CanTransition reports whether moving from `from` to `to` is legal under
// §8 invariant 3: never re-enter Dialing or AMD, otherwise either advance
// to a later phase or cycle within {Playing, Waiting, Processing}.
func CanTransition(from, to Phase) bool {
	if from == to {
		return false
	}
	fromRank, toRank := phaseRank(from), phaseRank(to)
	if fromRank < 0 || toRank < 0 {
		return false
	}
	cycle := map[Phase]bool{PhasePlaying: true, PhaseWaiting: true, PhaseProcessing: true}
	if cycle[from] && cycle[to] {
		return true
	}
	return toRank > fromRank
}

// FinalStatus is the terminal disposition of a call attempt (§3, §7).
type FinalStatus string

const (
	FinalStatusNone          FinalStatus = ""
	FinalStatusLead          FinalStatus = "Lead"
	FinalStatusNotInterested FinalStatus = "NotInterested"
	FinalStatusNoAnswer      FinalStatus = "NoAnswer"
	FinalStatusBusy          FinalStatus = "Busy"
	FinalStatusFailed        FinalStatus = "Failed"
)

// Role distinguishes who spoke a conversation-history turn.
type Role string

const (
	RoleBot    Role = "bot"
	RoleCaller Role = "caller"
)

// Turn is one entry in a call's conversation history (§3).
type Turn struct {
	Role        Role
	Text        string
	TimestampMs int64
}

// CallSession is the root aggregate owned by exactly one Call Controller
// instance for the lifetime of one call attempt (§3).
type CallSession struct {
	ID         string // softswitch-assigned channel id, set after ANSWERED
	ContactID  string
	CampaignID string

	Phase         Phase
	ScenarioStep  string
	History       []Turn
	Qualification float64

	ObjectionTurnsRemaining int
	ConsecutiveSilences     int

	RobotInitiatedHangup bool
	FinalStatus          FinalStatus

	RecordingPath string

	CreatedAt time.Time
}

// NewCallSession constructs a session in its initial Dialing phase.
func NewCallSession(contactID, campaignID string) *CallSession {
	return &CallSession{
		ContactID:  contactID,
		CampaignID: campaignID,
		Phase:      PhaseDialing,
		CreatedAt:  time.Now(),
	}
}

// AppendTurn records a conversation turn. Never re-orders history: callers
// must serialize calls to AppendTurn per the §5 ordering guarantee.
func (s *CallSession) AppendTurn(role Role, text string, timestampMs int64) {
	s.History = append(s.History, Turn{Role: role, Text: text, TimestampMs: timestampMs})
}

// TransitionPhase advances the session's phase, returning an error if the
// move is illegal under §8 invariant 3.
func (s *CallSession) TransitionPhase(to Phase) error {
	if !CanTransition(s.Phase, to) {
		return &InvalidTransitionError{From: s.Phase, To: to}
	}
	s.Phase = to
	return nil
}

// InvalidTransitionError reports an illegal phase transition attempt.
type InvalidTransitionError struct {
	From, To Phase
}

func (e *InvalidTransitionError) Error() string {
	return "schema: illegal phase transition " + string(e.From) + " -> " + string(e.To)
}

// SetFinalStatus writes the terminal disposition. It is a no-op error if
// final_status was already written once (§3 invariant: write-once).
func (s *CallSession) SetFinalStatus(status FinalStatus) error {
	if s.FinalStatus != FinalStatusNone {
		return &AlreadyFinalizedError{Existing: s.FinalStatus, Attempted: status}
	}
	s.FinalStatus = status
	return nil
}

// AlreadyFinalizedError reports a second attempt to set final_status.
type AlreadyFinalizedError struct {
	Existing, Attempted FinalStatus
}

func (e *AlreadyFinalizedError) Error() string {
	return "schema: final_status already set to " + string(e.Existing) + ", cannot set to " + string(e.Attempted)
}

// MarkRobotInitiatedHangup sets the monotone-true-once flag (§4.6.6). It
// must be written, under the session's mutex, before the Kill command is
// issued.
func (s *CallSession) MarkRobotInitiatedHangup() {
	s.RobotInitiatedHangup = true
}
