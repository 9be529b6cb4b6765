package callcontroller

import (
	"context"
	"fmt"

	"github.com/voxloop/voxloop/pkg/classify"
	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/objection"
	"github.com/voxloop/voxloop/pkg/scenario"
	"github.com/voxloop/voxloop/pkg/schema"
	softswitchiface "github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// objectionMinScore is the §4.4 "typical min score" for the fuzzy
// objection matcher.
const objectionMinScore = 0.5

// runProcessing implements §4.6.5: classify intent, optionally run the
// bounded-autonomous objection loop, route via the Scenario Engine,
// apply the consecutive-silence override, and update the qualification
// score. done is true if the call already ended inside the objection
// loop (hangup); next/terminal are meaningless in that case.
func (c *Controller) runProcessing(ctx context.Context, sess *session, events <-chan *softswitchiface.Event, scn *scenario.Scenario, step schema.Step, transcript string, logger *o11y.Logger) (next string, terminal, done bool) {
	if err := sess.TransitionPhase(schema.PhaseProcessing); err != nil {
		logger.Error(ctx, "illegal phase transition", "error", err)
		c.terminate(ctx, sess, schema.FinalStatusFailed, logger)
		return "", false, true
	}
	c.reportPhase(ctx, sess, logger)

	intent, confidence, matched := classify.MatchIntent(transcript, c.intentVocab)
	logger.Info(ctx, "intent classified", "intent", intent, "confidence", confidence, "matched_keywords", matched)
	c.persistIntent(ctx, sess, intent, confidence, logger)

	if intent == schema.IntentObjection && step.MaxAutonomousTurns > 0 && sess.ObjectionTurnsRemaining > 0 {
		resolved, ended := c.runObjectionLoop(ctx, sess, events, scn, step, transcript, logger)
		if ended {
			return "", false, true
		}
		intent = resolved
	}

	routed, err := scn.Route(step.ID, intent)
	if err != nil {
		logger.Error(ctx, "scenario routing failed", "error", err, "step", step.ID, "intent", intent)
		c.terminate(ctx, sess, schema.FinalStatusFailed, logger)
		return "", false, true
	}

	if sess.ConsecutiveSilences >= 2 {
		routed = c.silenceOverrideStep(scn, routed)
	}

	sess.Qualification += scn.QualificationDelta(step.ID, intent)
	c.persistQualification(ctx, sess, logger)

	if routed == builtinNoAnswerStepID {
		return routed, true, false
	}

	nextStep, ok := scn.Step(routed)
	if !ok {
		logger.Error(ctx, "scenario routing to non-existent step", "step", routed)
		c.terminate(ctx, sess, schema.FinalStatusFailed, logger)
		return "", false, true
	}
	return routed, nextStep.Terminal(), false
}

// silenceOverrideStep implements §4.6.5 step 4 and §8 invariant 4: two
// consecutive silences force a no-answer-style terminal regardless of
// the routed intent. The scenario's own fallbacks["silence"] wins if
// configured; otherwise an implicit no_answer is used and the scenario
// need not define one.
func (c *Controller) silenceOverrideStep(scn *scenario.Scenario, routed string) string {
	if fallback, ok := scn.Document().Fallbacks[schema.IntentSilence]; ok {
		if _, exists := scn.Step(fallback); exists {
			return fallback
		}
	}
	return builtinNoAnswerStepID
}

// builtinNoAnswerStepID is a sentinel scn.Step() will never resolve;
// runTerminalStep special-cases it so scenarios that don't author an
// explicit silence terminal still satisfy §8 invariant 4.
const builtinNoAnswerStepID = "__builtin_no_answer__"

// runObjectionLoop implements §4.6.5 step 2: it plays the matched
// objection's rebuttal audio (re-entering PLAYING with that audio, still
// within the current logical step), re-listens, and repeats until the
// caller affirms/shows interest, a non-objection intent occurs, or
// objection_turns_remaining is exhausted. Returns the intent routing
// should use next, and whether the call ended mid-loop.
func (c *Controller) runObjectionLoop(ctx context.Context, sess *session, events <-chan *softswitchiface.Event, scn *scenario.Scenario, step schema.Step, transcript string, logger *o11y.Logger) (schema.Intent, bool) {
	for sess.ObjectionTurnsRemaining > 0 {
		entry, score, err := objection.FindObjection(c.objections, transcript, scn.Document().ThemeID, objectionMinScore)
		if err != nil {
			logger.Warn(ctx, "objection lookup failed", "error", err)
			return schema.IntentObjection, false
		}
		if entry == nil {
			return schema.IntentObjection, false
		}
		logger.Info(ctx, "objection matched", "category", entry.Category, "score", score)

		sess.ObjectionTurnsRemaining--
		responseStep := schema.Step{
			ID:             step.ID,
			AudioPath:      entry.ResponseAudioPath,
			AudioSource:    schema.AudioSourcePreRecorded,
			BargeInEnabled: step.BargeInEnabled,
		}

		playingOK, bargeInText := c.runPlaying(ctx, sess, events, scn, responseStep, logger)
		if !playingOK {
			return "", true
		}
		nextTranscript, ok := c.runWaiting(ctx, sess, events, bargeInText, logger)
		if !ok {
			return "", true
		}
		if err := sess.TransitionPhase(schema.PhaseProcessing); err != nil {
			logger.Error(ctx, "illegal phase transition", "error", err)
			c.terminate(ctx, sess, schema.FinalStatusFailed, logger)
			return "", true
		}
		c.reportPhase(ctx, sess, logger)

		reaction, confidence, matched := classify.MatchIntent(nextTranscript, c.intentVocab)
		logger.Info(ctx, "objection reaction classified", "intent", reaction, "confidence", confidence, "matched_keywords", matched)
		c.persistIntent(ctx, sess, reaction, confidence, logger)

		if reaction == schema.IntentAffirm || reaction == schema.IntentInterested {
			return reaction, false
		}
		if reaction != schema.IntentObjection {
			return reaction, false
		}
		transcript = nextTranscript
	}
	return schema.IntentObjection, false
}

// persistIntent records an intent-classification event for reporting
// (§6 AppendCallEvent: "for conversation history, intents, matched
// objections").
func (c *Controller) persistIntent(ctx context.Context, sess *session, intent schema.Intent, confidence float64, logger *o11y.Logger) {
	payload := []byte(fmt.Sprintf(`{"intent":%q,"confidence":%f}`, intent, confidence))
	if err := c.persistence.AppendCallEvent(ctx, sess.rowID, "intent_classified", payload, c.clock.Now()); err != nil {
		logger.Warn(ctx, "append intent event failed", "error", err)
	}
}

// persistQualification records the running qualification score so
// reporting can replay it without re-deriving routing decisions (§8
// round-trip property).
func (c *Controller) persistQualification(ctx context.Context, sess *session, logger *o11y.Logger) {
	payload := []byte(fmt.Sprintf(`{"qualification_score":%f}`, sess.Qualification))
	if err := c.persistence.AppendCallEvent(ctx, sess.rowID, "qualification_updated", payload, c.clock.Now()); err != nil {
		logger.Warn(ctx, "append qualification event failed", "error", err)
	}
}
