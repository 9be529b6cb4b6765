// Package iface declares the Persistence Port: a write-only contract for
// call lifecycle events and a read contract for contact lists and
// campaign definitions (§2, §6). Transport-agnostic — concrete backends
// live under persistence/providers.
package iface

import (
	"context"
	"time"

	"github.com/voxloop/voxloop/pkg/schema"
)

// Contact is one campaign target, as read from the pending queue (§6).
type Contact struct {
	ID         string
	CampaignID string
	Phone      string
	FirstName  string
	Variables  map[string]string
}

// CampaignDefinition carries the scenario and scheduling metadata a
// Campaign Runner needs to dispatch calls for one campaign (§6).
type CampaignDefinition struct {
	ID                string
	ScenarioJSON      []byte
	ObjectionTheme    string
	MaxConcurrentCalls int
	LegalHours        map[time.Weekday][]LegalHoursWindow
}

// LegalHoursWindow is one allowed wall-clock interval on a given weekday
// (§5 legal-hours gate).
type LegalHoursWindow struct {
	Start, End string // "HH:MM", inclusive
}

// Port is the transport-agnostic persistence contract required by the core
// (§6). Every operation is atomic.
type Port interface {
	// FetchDueContacts returns up to limit pending + legal-hours-eligible
	// contacts for campaignID.
	FetchDueContacts(ctx context.Context, campaignID string, limit int) ([]Contact, error)

	// CreateCallRecord creates a new call row and returns its row id.
	CreateCallRecord(ctx context.Context, campaignID, contactID, callID string) (rowID string, err error)

	// UpdateCallPhase records a phase transition for reporting (§8
	// invariant 3: this is the observation point for phase monotonicity).
	UpdateCallPhase(ctx context.Context, rowID string, phase schema.Phase, at time.Time) error

	// AppendCallEvent appends one conversation-history/intent/objection
	// event, keyed for later replay (§8: replaying CallEvents reconstructs
	// conversation_history and qualification_score).
	AppendCallEvent(ctx context.Context, rowID string, eventType string, payloadJSON []byte, at time.Time) error

	// FinalizeCall is invoked exactly once per CreateCallRecord (§8
	// invariant 1).
	FinalizeCall(ctx context.Context, rowID string, finalStatus schema.FinalStatus, durationSeconds float64, qualificationScore float64, recordingPath string) error

	// ScheduleRetry is only ever called from the terminal statuses
	// NoAnswer and Busy (§7).
	ScheduleRetry(ctx context.Context, rowID string, notBefore time.Time, attemptsLeft int) error

	// FetchCampaign reads a campaign's scenario and scheduling metadata.
	FetchCampaign(ctx context.Context, campaignID string) (CampaignDefinition, error)
}
