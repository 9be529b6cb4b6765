// Package redis augments a canonical Port implementation with a
// Redis sorted-set due-contact queue (§6 FetchDueContacts, §5 legal-hours
// gate): the score is the contact's next-eligible unix timestamp, so
// "due" is simply ZRANGEBYSCORE 0..now.
package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/voxloop/voxloop/pkg/persistence"
	"github.com/voxloop/voxloop/pkg/persistence/iface"
	"github.com/voxloop/voxloop/pkg/schema"
)

// Queue composes a canonical Port (typically providers/postgres.Store)
// with a Redis-backed due-contact queue. All non-queue operations
// delegate straight through to Canonical.
type Queue struct {
	Canonical iface.Port
	client    *redis.Client
}

// New builds a Queue backed by client, delegating everything but the
// due-contact queue to canonical.
func New(client *redis.Client, canonical iface.Port) *Queue {
	return &Queue{Canonical: canonical, client: client}
}

func queueKey(campaignID string) string {
	return "voxloop:due_contacts:" + campaignID
}

// Enqueue schedules contact for dispatch at notBefore. Neither
// ScheduleRetry nor the Campaign Runner calls it.
func (q *Queue) Enqueue(ctx context.Context, campaignID string, contact iface.Contact, notBefore time.Time) error {
	payload, err := json.Marshal(contact)
	if err != nil {
		return persistence.WrapError("Enqueue", err)
	}
	err = q.client.ZAdd(ctx, queueKey(campaignID), redis.Z{
		Score:  float64(notBefore.Unix()),
		Member: payload,
	}).Err()
	return persistence.WrapError("Enqueue", err)
}

// FetchDueContacts pops up to limit contacts whose score (next-eligible
// time) is <= now, atomically via a transaction so two Campaign Runner
// instances never dispatch the same contact twice (§5 shared-resource
// policy: persistence rows are owned by exactly one call).
func (q *Queue) FetchDueContacts(ctx context.Context, campaignID string, limit int) ([]iface.Contact, error) {
	key := queueKey(campaignID)
	now := float64(time.Now().Unix())

	var contacts []iface.Contact
	err := q.client.Watch(ctx, func(tx *redis.Tx) error {
		members, err := tx.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min:   "0",
			Max:   formatScore(now),
			Count: int64(limit),
		}).Result()
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, m := range members {
				pipe.ZRem(ctx, key, m)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, m := range members {
			var c iface.Contact
			if err := json.Unmarshal([]byte(m), &c); err != nil {
				continue
			}
			contacts = append(contacts, c)
		}
		return nil
	}, key)
	if err != nil {
		return nil, persistence.WrapError("FetchDueContacts", err)
	}
	return contacts, nil
}

func (q *Queue) CreateCallRecord(ctx context.Context, campaignID, contactID, callID string) (string, error) {
	return q.Canonical.CreateCallRecord(ctx, campaignID, contactID, callID)
}

func (q *Queue) UpdateCallPhase(ctx context.Context, rowID string, phase schema.Phase, at time.Time) error {
	return q.Canonical.UpdateCallPhase(ctx, rowID, phase, at)
}

func (q *Queue) AppendCallEvent(ctx context.Context, rowID string, eventType string, payloadJSON []byte, at time.Time) error {
	return q.Canonical.AppendCallEvent(ctx, rowID, eventType, payloadJSON, at)
}

func (q *Queue) FinalizeCall(ctx context.Context, rowID string, finalStatus schema.FinalStatus, durationSeconds, qualificationScore float64, recordingPath string) error {
	return q.Canonical.FinalizeCall(ctx, rowID, finalStatus, durationSeconds, qualificationScore, recordingPath)
}

// ScheduleRetry records notBefore and attempts-left on the canonical row
// (§7 retries are only scheduled from NoAnswer/Busy). It does not put the
// contact back onto the Redis due queue.
func (q *Queue) ScheduleRetry(ctx context.Context, rowID string, notBefore time.Time, attemptsLeft int) error {
	return q.Canonical.ScheduleRetry(ctx, rowID, notBefore, attemptsLeft)
}

func (q *Queue) FetchCampaign(ctx context.Context, campaignID string) (iface.CampaignDefinition, error) {
	return q.Canonical.FetchCampaign(ctx, campaignID)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var _ iface.Port = (*Queue)(nil)
