package callcontroller

import (
	"context"
	"fmt"
	"time"

	"github.com/voxloop/voxloop/pkg/classify"
	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/schema"
	speechiface "github.com/voxloop/voxloop/pkg/speech/iface"
	softswitchiface "github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// silenceSizeThresholdBytes is the cheap stand-in for the §4.6.2 volume
// probe ("mean amplitude < -50dB"): real amplitude analysis is audio DSP,
// delegated to the softswitch/STT stack per the Non-goals in §1. A
// recording that stayed at or below this many bytes after the fixed
// recording window almost certainly captured silence, and skipping
// transcription for it preserves the spec's "saves ~250ms" intent.
const silenceSizeThresholdBytes = 512

// runAMD implements §4.6.2: RTP priming, a fixed recording window, a
// cheap volume probe, and conditional batch transcription, then the
// §4.3 classifier. The second return value is false if the call ended
// (hangup or cancellation) before a classification could be produced —
// the caller must stop driving the lifecycle, finalisation has already
// happened.
func (c *Controller) runAMD(ctx context.Context, sess *session, events <-chan *softswitchiface.Event, logger *o11y.Logger) (schema.AMDResult, bool) {
	if err := sess.TransitionPhase(schema.PhaseAMD); err != nil {
		logger.Error(ctx, "illegal phase transition", "error", err)
		c.terminate(ctx, sess, schema.FinalStatusFailed, logger)
		return schema.AMDUnknown, false
	}
	c.reportPhase(ctx, sess, logger)

	if hangup := c.wait(ctx, events, c.timeouts.RTPPrimingDelay); hangup != nil {
		c.resolveEarlyHangup(ctx, sess, hangup, schema.FinalStatusNone, logger)
		return schema.AMDUnknown, false
	}

	path := fmt.Sprintf("amd_%s.wav", sess.ID)
	if err := c.softswitch.RecordStart(ctx, sess.ID, path, 0); err != nil {
		logger.Warn(ctx, "amd record start failed", "error", err)
	}

	window := c.timeouts.AMDRecordingWindow
	hangup := c.wait(ctx, events, window)
	if err := c.softswitch.RecordStop(ctx, sess.ID, path); err != nil {
		logger.Warn(ctx, "amd record stop failed", "error", err)
	}
	if hangup != nil {
		c.resolveEarlyHangup(ctx, sess, hangup, schema.FinalStatusNone, logger)
		return schema.AMDUnknown, false
	}

	if size, err := c.recordings.Size(ctx, path); err == nil && size <= silenceSizeThresholdBytes {
		logger.Info(ctx, "amd volume probe detected silence", "call_id", sess.ID)
		return schema.AMDSilence, true
	}

	result, err := c.speech.TranscribeFile(ctx, path, speechiface.TranscribeOptions{
		VAD:                 true,
		BeamWidth:           10,
		NoSpeechThreshold:   0.6,
		ConditionOnPrevious: false,
	})
	if err != nil {
		logger.Warn(ctx, "amd transcription failed, treating as silence", "error", err)
		return schema.AMDSilence, true
	}
	if result.Text == "" {
		return schema.AMDSilence, true
	}

	verdict, confidence := classify.ClassifyAMD(result.Text, c.amdVocab)
	logger.Info(ctx, "amd classified", "verdict", verdict, "confidence", confidence, "text", result.Text)
	return verdict, true
}

// wait blocks for d, returning early with the triggering event if a
// hangup arrives first, or nil if d elapsed or ctx was cancelled without
// one.
func (c *Controller) wait(ctx context.Context, events <-chan *softswitchiface.Event, d time.Duration) *softswitchiface.Event {
	timer := c.clock.After(d)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if isHangupEvent(ev) {
				return ev
			}
		}
	}
}

// resolveEarlyHangup terminates a call that hung up before reaching a
// step loop (during Dialing/AMD), applying the §4.6.6 cause mapping for
// caller-initiated hangups. priorSilence carries the AMD-already-produced
// Silence override from §8's boundary case.
func (c *Controller) resolveEarlyHangup(ctx context.Context, sess *session, ev *softswitchiface.Event, priorSilence schema.FinalStatus, logger *o11y.Logger) {
	status := callerHangupStatus(ev)
	if priorSilence == schema.FinalStatusNoAnswer {
		status = schema.FinalStatusNoAnswer
	}
	c.terminateAfterHangup(ctx, sess, status, logger)
}
