package callcontroller

import (
	"context"
	"time"

	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/scenario"
	"github.com/voxloop/voxloop/pkg/schema"
)

// terminalAudioGrace is how long runTerminalStep waits after starting a
// terminal step's closing audio before hanging up, since by definition no
// further listening follows a terminal step. The full interval always
// elapses; playback-completion events are not watched here.
const terminalAudioGrace = 3 * time.Second

// runTerminalStep implements §4.6.5 step 6 and §4.6.6's bot-initiated
// hangup path: play the terminal step's closing audio (if any), run its
// actions, resolve final_status, then Kill with robot_initiated_hangup
// set first.
func (c *Controller) runTerminalStep(ctx context.Context, sess *session, scn *scenario.Scenario, stepID string, logger *o11y.Logger) {
	if stepID == builtinNoAnswerStepID {
		c.killAndFinalize(ctx, sess, schema.FinalStatusNoAnswer, logger)
		return
	}

	step, ok := scn.Step(stepID)
	if !ok {
		logger.Error(ctx, "terminal step not found", "step", stepID)
		c.terminate(ctx, sess, schema.FinalStatusFailed, logger)
		return
	}

	if step.AudioPath != "" {
		path := scn.Interpolate(step.AudioPath, nil)
		if err := c.softswitch.Play(ctx, sess.ID, path); err != nil {
			logger.Warn(ctx, "terminal audio play failed", "error", err)
		} else {
			select {
			case <-c.clock.After(terminalAudioGrace):
			case <-ctx.Done():
			}
		}
	}

	for _, action := range step.Actions {
		c.dispatchAction(ctx, sess, action, logger)
	}

	status := finalStatusForStep(step, sess.Qualification, c.threshold)
	c.killAndFinalize(ctx, sess, status, logger)
}

// finalStatusForStep resolves a terminal step's result into a
// final_status, applying the §4.5 qualification gate when the step is
// the completed/"is_leads"-type outcome: Lead iff qualification_score
// meets threshold, otherwise NotInterested.
func finalStatusForStep(step schema.Step, qualificationScore, threshold float64) schema.FinalStatus {
	switch step.Result {
	case schema.StepResultFailed:
		return schema.FinalStatusFailed
	case schema.StepResultNoAnswer:
		return schema.FinalStatusNoAnswer
	default:
		return scenario.QualifiesAsLead(qualificationScore, threshold)
	}
}

// dispatchAction executes the one action type that is part of the core
// contract (transfer); the rest (webhook, send_email, update_crm) are
// delegated to pluggable executors outside the core per §6 — the
// controller's responsibility is only the dispatch point.
func (c *Controller) dispatchAction(ctx context.Context, sess *session, action schema.Action, logger *o11y.Logger) {
	switch action.Type {
	case schema.ActionTransfer:
		dest, _ := action.Config["destination"].(string)
		dialplanContext, _ := action.Config["context"].(string)
		if dest == "" {
			logger.Warn(ctx, "transfer action missing destination", "call_id", sess.ID)
			return
		}
		if err := c.softswitch.Transfer(ctx, sess.ID, dest, dialplanContext); err != nil {
			logger.Warn(ctx, "transfer action failed", "error", err)
		}
	case schema.ActionWebhook, schema.ActionSendEmail, schema.ActionUpdateCRM:
		logger.Info(ctx, "action delegated to pluggable executor", "type", action.Type, "call_id", sess.ID)
	default:
		logger.Warn(ctx, "unknown action type", "type", action.Type)
	}
}
