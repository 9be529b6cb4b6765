// Package inmemory implements the Persistence Port entirely in process
// memory, for unit and integration tests (§6).
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxloop/voxloop/pkg/persistence"
	"github.com/voxloop/voxloop/pkg/persistence/iface"
	"github.com/voxloop/voxloop/pkg/schema"
)

// CallRecord is one row as the in-memory store sees it, exported so tests
// can assert on it directly without replaying events.
type CallRecord struct {
	RowID              string
	CampaignID         string
	ContactID          string
	CallID             string
	Phases             []schema.Phase
	Events             []StoredEvent
	Finalized          bool
	FinalStatus        schema.FinalStatus
	DurationSeconds    float64
	QualificationScore float64
	RecordingPath      string
	RetryNotBefore     time.Time
	RetryAttemptsLeft  int
}

// StoredEvent is one AppendCallEvent call, retained verbatim for replay.
type StoredEvent struct {
	Type      string
	Payload   []byte
	Timestamp time.Time
}

// Store implements iface.Port over an in-process map.
type Store struct {
	mu        sync.Mutex
	records   map[string]*CallRecord
	contacts  map[string][]iface.Contact
	campaigns map[string]iface.CampaignDefinition
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		records:   make(map[string]*CallRecord),
		contacts:  make(map[string][]iface.Contact),
		campaigns: make(map[string]iface.CampaignDefinition),
	}
}

// SeedContacts preloads a campaign's pending-contact queue for tests.
func (s *Store) SeedContacts(campaignID string, contacts []iface.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[campaignID] = append(s.contacts[campaignID], contacts...)
}

// SeedCampaign preloads a campaign definition for tests.
func (s *Store) SeedCampaign(def iface.CampaignDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[def.ID] = def
}

// Record returns a copy of a row, for test assertions.
func (s *Store) Record(rowID string) (CallRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[rowID]
	if !ok {
		return CallRecord{}, false
	}
	return *r, true
}

func (s *Store) FetchDueContacts(ctx context.Context, campaignID string, limit int) ([]iface.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.contacts[campaignID]
	if limit > len(pending) {
		limit = len(pending)
	}
	due := make([]iface.Contact, limit)
	copy(due, pending[:limit])
	s.contacts[campaignID] = pending[limit:]
	return due, nil
}

func (s *Store) CreateCallRecord(ctx context.Context, campaignID, contactID, callID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rowID := uuid.NewString()
	s.records[rowID] = &CallRecord{
		RowID:      rowID,
		CampaignID: campaignID,
		ContactID:  contactID,
		CallID:     callID,
	}
	return rowID, nil
}

func (s *Store) UpdateCallPhase(ctx context.Context, rowID string, phase schema.Phase, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[rowID]
	if !ok {
		return persistence.NewPortError("UpdateCallPhase", persistence.ErrCodeNotFound, nil)
	}
	r.Phases = append(r.Phases, phase)
	return nil
}

func (s *Store) AppendCallEvent(ctx context.Context, rowID string, eventType string, payloadJSON []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[rowID]
	if !ok {
		return persistence.NewPortError("AppendCallEvent", persistence.ErrCodeNotFound, nil)
	}
	r.Events = append(r.Events, StoredEvent{Type: eventType, Payload: payloadJSON, Timestamp: at})
	return nil
}

func (s *Store) FinalizeCall(ctx context.Context, rowID string, finalStatus schema.FinalStatus, durationSeconds, qualificationScore float64, recordingPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[rowID]
	if !ok {
		return persistence.NewPortError("FinalizeCall", persistence.ErrCodeNotFound, nil)
	}
	if r.Finalized {
		return persistence.NewPortError("FinalizeCall", persistence.ErrCodeConstraint, nil)
	}
	r.Finalized = true
	r.FinalStatus = finalStatus
	r.DurationSeconds = durationSeconds
	r.QualificationScore = qualificationScore
	r.RecordingPath = recordingPath
	return nil
}

func (s *Store) ScheduleRetry(ctx context.Context, rowID string, notBefore time.Time, attemptsLeft int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[rowID]
	if !ok {
		return persistence.NewPortError("ScheduleRetry", persistence.ErrCodeNotFound, nil)
	}
	r.RetryNotBefore = notBefore
	r.RetryAttemptsLeft = attemptsLeft
	return nil
}

func (s *Store) FetchCampaign(ctx context.Context, campaignID string) (iface.CampaignDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.campaigns[campaignID]
	if !ok {
		return iface.CampaignDefinition{}, persistence.NewPortError("FetchCampaign", persistence.ErrCodeNotFound, nil)
	}
	return def, nil
}

var _ iface.Port = (*Store)(nil)
