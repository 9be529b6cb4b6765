package callcontroller

import (
	"context"
	"time"

	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/scenario"
	"github.com/voxloop/voxloop/pkg/schema"
	speechiface "github.com/voxloop/voxloop/pkg/speech/iface"
	softswitchiface "github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// playingOutcome records what ended a PLAYING phase, for logging and for
// the barge-in transcript to carry into WAITING.
type playingOutcome struct {
	bargedIn        bool
	partialOnBarge  string
	hungUp          bool
	hangupEvent     *softswitchiface.Event
}

// runPlaying implements §4.6.3: non-blocking playback of the step's audio
// with optional barge-in via a streaming ASR session. ok is false if the
// call ended during this phase (hangup); the caller must stop driving
// the lifecycle in that case. bargeInText carries the transcription
// accumulated up to the barge-in trigger, used as a WAITING fallback if
// the subsequent batch transcription comes back empty.
func (c *Controller) runPlaying(ctx context.Context, sess *session, events <-chan *softswitchiface.Event, scn *scenario.Scenario, step schema.Step, logger *o11y.Logger) (ok bool, bargeInText string) {
	if err := sess.TransitionPhase(schema.PhasePlaying); err != nil {
		logger.Error(ctx, "illegal phase transition", "error", err)
		c.terminate(ctx, sess, schema.FinalStatusFailed, logger)
		return false, ""
	}
	c.reportPhase(ctx, sess, logger)

	var stream speechiface.StreamHandle
	if step.BargeInEnabled {
		var err error
		stream, err = c.speech.OpenStream(ctx, sess.ID)
		if err != nil {
			logger.Warn(ctx, "open barge-in stream failed, disabling barge-in for this step", "error", err)
			stream = nil
		} else {
			if c.streamFork != nil {
				if err := c.softswitch.AudioStream(ctx, sess.ID, c.streamFork(sess.ID), "mono", 8000); err != nil {
					logger.Warn(ctx, "audio fork failed, disabling barge-in for this step", "error", err)
					stream.Close()
					stream = nil
				}
			}
		}
	}
	if stream != nil {
		defer stream.Close()
	}

	audioPath := scn.Interpolate(step.AudioPath, nil)
	if err := c.softswitch.Play(ctx, sess.ID, audioPath); err != nil {
		logger.Warn(ctx, "play failed, proceeding to waiting", "error", err)
		return true, ""
	}

	outcome := c.monitorPlayback(ctx, sess, events, stream, logger)
	if outcome.hungUp {
		c.resolveEarlyHangup(ctx, sess, outcome.hangupEvent, schema.FinalStatusNone, logger)
		return false, ""
	}
	return true, outcome.partialOnBarge
}

// monitorPlayback races playback completion, barge-in-triggering ASR
// events, and hangup, per §4.6.3 step 3.
func (c *Controller) monitorPlayback(ctx context.Context, sess *session, events <-chan *softswitchiface.Event, stream speechiface.StreamHandle, logger *o11y.Logger) playingOutcome {
	playbackStart := c.clock.Now()
	var speechStartedAt time.Time
	var streamEvents <-chan speechiface.StreamEvent
	if stream != nil {
		streamEvents = stream.Events()
	}

	threshold := c.timeouts.BargeInThreshold
	if threshold <= 0 {
		threshold = 1800 * time.Millisecond
	}
	grace := c.timeouts.BargeInGracePeriod
	smoothDelay := c.timeouts.SmoothInterruptDelay

	for {
		select {
		case <-ctx.Done():
			return playingOutcome{}

		case ev, ok := <-events:
			if !ok {
				return playingOutcome{}
			}
			if ev.Type == softswitchiface.EventPlaybackStop {
				return playingOutcome{}
			}
			if isHangupEvent(ev) {
				return playingOutcome{hungUp: true, hangupEvent: ev}
			}

		case se, ok := <-streamEvents:
			if !ok {
				streamEvents = nil
				continue
			}
			switch se.Kind {
			case speechiface.StreamSpeechStart:
				speechStartedAt = c.clock.Now()
			case speechiface.StreamSpeechEnd:
				if se.SpeechDurationMs < threshold.Milliseconds() {
					continue
				}
				if !speechStartedAt.IsZero() && c.clock.Now().Sub(playbackStart) < grace {
					continue
				}
				select {
				case <-c.clock.After(smoothDelay):
				case <-ctx.Done():
					return playingOutcome{}
				}
				if err := c.softswitch.Break(ctx, sess.ID); err != nil {
					logger.Warn(ctx, "barge-in break failed", "error", err)
				}
				c.metrics.BargeIns.Add(ctx, 1)
				return playingOutcome{bargedIn: true, partialOnBarge: se.Text}
			case speechiface.StreamFinal, speechiface.StreamPartial:
				// accumulated transcript is re-derived from batch
				// transcription in WAITING; these are only used to
				// detect speech timing here.
			}
		}
	}
}
