// Package eventbus publishes call-lifecycle notifications (§9: "event
// notifications" supplementing the core persistence contract) so other
// systems — a CRM sync job, a dashboard, an alerting rule — can react to a
// call finalizing without polling the persistence store.
package eventbus

import "context"

// Subjects used for call lifecycle notifications.
const (
	SubjectCallFinalized = "voxloop.call.finalized"
	SubjectCallLead      = "voxloop.call.lead"
)

// Event is one lifecycle notification payload.
type Event struct {
	RowID              string  `json:"row_id"`
	CampaignID         string  `json:"campaign_id"`
	ContactID          string  `json:"contact_id"`
	CallID             string  `json:"call_id"`
	FinalStatus        string  `json:"final_status"`
	QualificationScore float64 `json:"qualification_score"`
}

// Bus publishes call-lifecycle events. Implementations must not block the
// caller on a slow or down subscriber beyond a bounded timeout — a
// notification is best-effort, never on the call's critical path (§7:
// errors never cross call boundaries).
type Bus interface {
	Publish(ctx context.Context, subject string, event Event) error
	Close() error
}

// Noop discards every event; the default when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, Event) error { return nil }
func (Noop) Close() error                                 { return nil }

var _ Bus = Noop{}
