package campaign

import (
	"strconv"
	"time"

	"github.com/voxloop/voxloop/pkg/config"
	"github.com/voxloop/voxloop/pkg/schema"
)

// retryAttemptVar is the Contact.Variables key the persistence layer is
// expected to round-trip: the count of retries already consumed for this
// contact's current campaign attempt. Absent or unparsable means zero.
const retryAttemptVar = "_retry_attempt"

// retryableStatuses are the only terminal statuses ScheduleRetry is ever
// called from (§7 user-visible behaviour, §8 invariant).
var retryableStatuses = map[schema.FinalStatus]bool{
	schema.FinalStatusNoAnswer: true,
	schema.FinalStatusBusy:     true,
}

// decideRetry resolves §6/§9's retry policy (`NoAnswer -> +30min, <=2
// retries`; `Busy -> +5min, <=2 retries`) for one finalized call. ok is
// false when the status isn't retryable or the policy's attempt budget is
// already spent.
func decideRetry(status schema.FinalStatus, attemptsUsed int, policies map[string]config.RetryPolicy, now time.Time) (notBefore time.Time, attemptsLeft int, ok bool) {
	if !retryableStatuses[status] {
		return time.Time{}, 0, false
	}
	policy, configured := policies[string(status)]
	if !configured || policy.MaxAttempts <= 0 {
		return time.Time{}, 0, false
	}
	remaining := policy.MaxAttempts - attemptsUsed
	if remaining <= 0 {
		return time.Time{}, 0, false
	}
	return now.Add(policy.Delay), remaining - 1, true
}

// attemptsUsed reads the retry counter a Contact carries forward from the
// persistence layer's queue row.
func attemptsUsed(variables map[string]string) int {
	raw, ok := variables[retryAttemptVar]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// withIncrementedAttempt returns a copy of variables with retryAttemptVar
// set to used, for carrying the updated retry count into a redial.
func withIncrementedAttempt(variables map[string]string, used int) map[string]string {
	out := make(map[string]string, len(variables)+1)
	for k, v := range variables {
		out[k] = v
	}
	out[retryAttemptVar] = strconv.Itoa(used)
	return out
}
