package callcontroller

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/schema"
	"github.com/voxloop/voxloop/pkg/softswitch"
	softswitchiface "github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// waitForAnswer blocks until CHANNEL_ANSWER arrives, the channel hangs up
// first, or ctx is cancelled. Returns false if the call never answered.
func (c *Controller) waitForAnswer(ctx context.Context, sess *session, events <-chan *softswitchiface.Event, logger *o11y.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			switch ev.Type {
			case softswitchiface.EventChannelAnswer:
				return true
			case softswitchiface.EventChannelHangup, softswitchiface.EventChannelHangupComplete:
				return false
			case softswitchiface.EventProviderDisconnected:
				return false
			}
		}
	}
}

// isHangupEvent reports whether ev signals the channel is gone, either
// through a real softswitch hangup event or the client's synthetic
// disconnect notification (§4.1 design decisions).
func isHangupEvent(ev *softswitchiface.Event) bool {
	if ev == nil {
		return false
	}
	switch ev.Type {
	case softswitchiface.EventChannelHangup, softswitchiface.EventChannelHangupComplete, softswitchiface.EventProviderDisconnected:
		return true
	default:
		return false
	}
}

// callerHangupStatus resolves the §4.6.6 hangup disambiguation for a
// hangup event that arrived while robot_initiated_hangup was still
// false — i.e. the caller (or the provider, on disconnect) ended the
// call, not the bot.
func callerHangupStatus(ev *softswitchiface.Event) schema.FinalStatus {
	if ev.Type == softswitchiface.EventProviderDisconnected {
		return schema.FinalStatusFailed
	}
	cause := schema.HangupCause(ev.Header("Hangup-Cause"))
	return schema.FinalStatusForHangupCause(cause)
}

// killAndFinalize implements the bot-initiated hangup path of §4.6.6:
// the robot_initiated_hangup flag and the intended final_status are both
// written before Kill is issued, under the session's mutex (here, the
// single-goroutine-per-call model already serialises this — no explicit
// lock is needed because no other goroutine mutates *session).
func (c *Controller) killAndFinalize(ctx context.Context, sess *session, status schema.FinalStatus, logger *o11y.Logger) {
	sess.MarkRobotInitiatedHangup()
	if err := sess.SetFinalStatus(status); err != nil {
		logger.Warn(ctx, "final_status already set", "error", err)
	}
	if err := c.softswitch.Kill(ctx, sess.ID); err != nil {
		if !softswitch.IsClientError(err) {
			logger.Warn(ctx, "kill failed", "error", err)
		}
	}
	c.finalize(ctx, sess, logger)
}

// terminate drives a call straight to Terminating/Done with the given
// status, for paths that never reach the step loop and where no hangup has
// happened yet (no-answer AMD outcomes, scenario routing failures): the
// channel is still up, so this is itself a bot-initiated hangup and must
// set robot_initiated_hangup before issuing Kill, per §4.6.6.
func (c *Controller) terminate(ctx context.Context, sess *session, status schema.FinalStatus, logger *o11y.Logger) {
	_ = sess.TransitionPhase(schema.PhaseTerminating)
	c.reportPhase(ctx, sess, logger)
	if sess.ID != "" && !sess.RobotInitiatedHangup {
		sess.MarkRobotInitiatedHangup()
		if err := c.softswitch.Kill(ctx, sess.ID); err != nil {
			logger.Warn(ctx, "kill on terminate failed", "error", err)
		}
	}
	if err := sess.SetFinalStatus(status); err != nil {
		logger.Warn(ctx, "final_status already set", "error", err)
	}
	c.finalize(ctx, sess, logger)
}

// terminateAfterHangup drives a call to Terminating/Done for a channel that
// is already gone (the caller or the provider ended it first). It never
// touches robot_initiated_hangup or issues Kill, keeping the §4.6.6 flag
// true only when the bot itself decided to hang up.
func (c *Controller) terminateAfterHangup(ctx context.Context, sess *session, status schema.FinalStatus, logger *o11y.Logger) {
	_ = sess.TransitionPhase(schema.PhaseTerminating)
	c.reportPhase(ctx, sess, logger)
	if err := sess.SetFinalStatus(status); err != nil {
		logger.Warn(ctx, "final_status already set", "error", err)
	}
	c.finalize(ctx, sess, logger)
}

// forceFailed is the top-level panic-recovery path (§7 propagation
// policy): a crash in one call's task never escapes the call, it forces
// final_status=Failed and still releases resources through the normal
// finalisation path.
func (c *Controller) forceFailed(ctx context.Context, sess *session, logger *o11y.Logger) {
	if sess.FinalStatus == schema.FinalStatusNone {
		_ = sess.SetFinalStatus(schema.FinalStatusFailed)
	}
	c.finalize(ctx, sess, logger)
}

// finalize writes phase=Done and invokes FinalizeCall exactly once
// (§8 invariant 1). Safe to call on a session that was never fully set
// up (rowID may be empty only via forceFailed before CreateCallRecord —
// in which case there is nothing to finalize).
func (c *Controller) finalize(ctx context.Context, sess *session, logger *o11y.Logger) {
	if sess.rowID == "" {
		return
	}
	_ = sess.TransitionPhase(schema.PhaseDone)
	c.reportPhase(ctx, sess, logger)

	durationSeconds := c.nowMs(sess).Seconds()
	err := c.persistence.FinalizeCall(ctx, sess.rowID, sess.FinalStatus, durationSeconds, sess.Qualification, sess.RecordingPath)
	if err != nil {
		logger.Error(ctx, "finalize call failed", "error", err, "final_status", sess.FinalStatus)
		return
	}
	c.metrics.CallsFinalized.Add(ctx, 1, metric.WithAttributes(attribute.String("final_status", string(sess.FinalStatus))))
	c.metrics.QualificationScore.Record(ctx, sess.Qualification)
	if c.onFinalized != nil {
		c.onFinalized(FinalizedEvent{
			RowID:              sess.rowID,
			CampaignID:         sess.CampaignID,
			ContactID:          sess.ContactID,
			CallID:             sess.ID,
			FinalStatus:        sess.FinalStatus,
			QualificationScore: sess.Qualification,
			RecordingPath:      sess.RecordingPath,
		})
	}
}

// reportPhase persists a phase transition, tolerating failure: the in-
// memory session state is authoritative for the running call, the
// persisted phase is best-effort reporting (§6 UpdateCallPhase).
func (c *Controller) reportPhase(ctx context.Context, sess *session, logger *o11y.Logger) {
	if err := c.persistence.UpdateCallPhase(ctx, sess.rowID, sess.Phase, c.clock.Now()); err != nil {
		logger.Warn(ctx, "update call phase failed", "error", err, "phase", sess.Phase)
	}
}

// finalizeOriginateFailure implements §8 scenario 6: even a failed
// Originate produces a persisted call row with a deterministic
// final_status, so the Campaign Runner can schedule a retry from it.
func (c *Controller) finalizeOriginateFailure(ctx context.Context, params CallParams, originateErr error, logger *o11y.Logger) error {
	callID := generateFailedCallID()
	rowID, err := c.persistence.CreateCallRecord(ctx, params.Campaign.ID, params.Contact.ID, callID)
	if err != nil {
		return WrapError("finalizeOriginateFailure", callID, err)
	}
	status := mapOriginateFailure(originateErr)
	if err := c.persistence.FinalizeCall(ctx, rowID, status, 0, 0, ""); err != nil {
		logger.Error(ctx, "finalize originate failure failed", "error", err)
		return nil
	}
	c.metrics.CallsFinalized.Add(ctx, 1, metric.WithAttributes(attribute.String("final_status", string(status))))
	if c.onFinalized != nil {
		c.onFinalized(FinalizedEvent{
			RowID:       rowID,
			CampaignID:  params.Campaign.ID,
			ContactID:   params.Contact.ID,
			CallID:      callID,
			FinalStatus: status,
		})
	}
	return nil
}

// mapOriginateFailure resolves an Originate error into a deterministic
// final_status. Busy is distinguished from other provider rejections by
// inspecting the provider's reply text, matching §8 scenario 6; a timed-
// out dial attempt is treated as no-answer; anything else is Failed.
func mapOriginateFailure(err error) schema.FinalStatus {
	message := strings.ToUpper(err.Error())
	switch {
	case strings.Contains(message, "USER_BUSY") || strings.Contains(message, "BUSY"):
		return schema.FinalStatusBusy
	case softswitch.ClientErrorCode(err) == softswitch.ErrCodeTimeout:
		return schema.FinalStatusNoAnswer
	default:
		return schema.FinalStatusFailed
	}
}
