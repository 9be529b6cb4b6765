// Package postgres implements the Persistence Port over PostgreSQL (§6).
// It is the canonical store: call rows, conversation-history events,
// contact lists, and campaign definitions all live here. The Redis
// provider (providers/redis) wraps a Store to give the pending-contact
// queue sorted-set semantics without duplicating the rest of the contract.
package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/voxloop/voxloop/pkg/persistence"
	"github.com/voxloop/voxloop/pkg/persistence/iface"
	"github.com/voxloop/voxloop/pkg/schema"
)

// Store implements iface.Port over a *sql.DB opened with the lib/pq
// driver.
type Store struct {
	db *sql.DB
}

// Open connects to dsn using the lib/pq driver and verifies connectivity.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, persistence.WrapError("Open", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, persistence.NewPortError("Open", persistence.ErrCodeConnection, err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *sql.DB, for callers that manage the
// connection pool themselves (e.g. sharing it with other schemas).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FetchDueContacts(ctx context.Context, campaignID string, limit int) ([]iface.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, phone, first_name, variables
		FROM contacts
		WHERE campaign_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, campaignID, limit)
	if err != nil {
		return nil, persistence.WrapError("FetchDueContacts", err)
	}
	defer rows.Close()

	var contacts []iface.Contact
	for rows.Next() {
		var c iface.Contact
		var variablesJSON []byte
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Phone, &c.FirstName, &variablesJSON); err != nil {
			return nil, persistence.WrapError("FetchDueContacts", err)
		}
		c.Variables = decodeVariables(variablesJSON)
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *Store) CreateCallRecord(ctx context.Context, campaignID, contactID, callID string) (string, error) {
	var rowID string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO call_records (campaign_id, contact_id, call_id, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id
	`, campaignID, contactID, callID).Scan(&rowID)
	if err != nil {
		return "", persistence.WrapError("CreateCallRecord", err)
	}
	return rowID, nil
}

func (s *Store) UpdateCallPhase(ctx context.Context, rowID string, phase schema.Phase, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE call_records SET phase = $2, phase_updated_at = $3 WHERE id = $1
	`, rowID, string(phase), at)
	return persistence.WrapError("UpdateCallPhase", err)
}

func (s *Store) AppendCallEvent(ctx context.Context, rowID string, eventType string, payloadJSON []byte, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_events (call_record_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4)
	`, rowID, eventType, payloadJSON, at)
	return persistence.WrapError("AppendCallEvent", err)
}

func (s *Store) FinalizeCall(ctx context.Context, rowID string, finalStatus schema.FinalStatus, durationSeconds, qualificationScore float64, recordingPath string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE call_records
		SET final_status = $2, duration_seconds = $3, qualification_score = $4,
		    recording_path = $5, finalized_at = now()
		WHERE id = $1 AND final_status IS NULL
	`, rowID, string(finalStatus), durationSeconds, qualificationScore, recordingPath)
	if err != nil {
		return persistence.WrapError("FinalizeCall", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence.WrapError("FinalizeCall", err)
	}
	if n == 0 {
		return persistence.NewPortError("FinalizeCall", persistence.ErrCodeConstraint, nil)
	}
	return nil
}

func (s *Store) ScheduleRetry(ctx context.Context, rowID string, notBefore time.Time, attemptsLeft int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE call_records SET retry_not_before = $2, retry_attempts_left = $3 WHERE id = $1
	`, rowID, notBefore, attemptsLeft)
	return persistence.WrapError("ScheduleRetry", err)
}

func (s *Store) FetchCampaign(ctx context.Context, campaignID string) (iface.CampaignDefinition, error) {
	var def iface.CampaignDefinition
	var legalHoursJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scenario_json, objection_theme, max_concurrent_calls, legal_hours
		FROM campaigns WHERE id = $1
	`, campaignID).Scan(&def.ID, &def.ScenarioJSON, &def.ObjectionTheme, &def.MaxConcurrentCalls, &legalHoursJSON)
	if err == sql.ErrNoRows {
		return iface.CampaignDefinition{}, persistence.NewPortError("FetchCampaign", persistence.ErrCodeNotFound, err)
	}
	if err != nil {
		return iface.CampaignDefinition{}, persistence.WrapError("FetchCampaign", err)
	}
	def.LegalHours = decodeLegalHours(legalHoursJSON)
	return def, nil
}

var _ iface.Port = (*Store)(nil)
