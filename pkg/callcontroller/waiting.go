package callcontroller

import (
	"context"
	"fmt"
	"time"

	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/schema"
	speechiface "github.com/voxloop/voxloop/pkg/speech/iface"
	softswitchiface "github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// runWaiting implements §4.6.4: record the caller leg, poll its growth
// until it stalls (caller finished), the timeout elapses (no response),
// or hangup arrives; then batch-transcribe and append the
// turn to conversation history. fallbackText seeds the transcript when
// the recording is too short to transcribe but a barge-in already
// captured something (§4.6.3 step 3). ok is false if the call ended in
// this phase. The timeout is Timeouts.DefaultStepTimeout (10s when unset)
// for every step; a step's own timeout_seconds is not consulted.
func (c *Controller) runWaiting(ctx context.Context, sess *session, events <-chan *softswitchiface.Event, fallbackText string, logger *o11y.Logger) (text string, ok bool) {
	if err := sess.TransitionPhase(schema.PhaseWaiting); err != nil {
		logger.Error(ctx, "illegal phase transition", "error", err)
		c.terminate(ctx, sess, schema.FinalStatusFailed, logger)
		return "", false
	}
	c.reportPhase(ctx, sess, logger)

	path := fmt.Sprintf("waiting_%s_%d.wav", sess.ID, len(sess.History))
	if err := c.softswitch.RecordStart(ctx, sess.ID, path, 0); err != nil {
		logger.Warn(ctx, "waiting record start failed", "error", err)
	}

	silenceThreshold := c.timeouts.SilenceThreshold
	if silenceThreshold <= 0 {
		silenceThreshold = 600 * time.Millisecond
	}
	pollEvery := c.timeouts.FileGrowthPollEvery
	if pollEvery <= 0 {
		pollEvery = 100 * time.Millisecond
	}
	timeout := c.timeouts.DefaultStepTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hangupEvent, timedOut := c.pollGrowth(ctx, sess, events, path, pollEvery, silenceThreshold, timeout)
	if err := c.softswitch.RecordStop(ctx, sess.ID, path); err != nil {
		logger.Warn(ctx, "waiting record stop failed", "error", err)
	}
	if hangupEvent != nil {
		c.resolveEarlyHangup(ctx, sess, hangupEvent, schema.FinalStatusNone, logger)
		return "", false
	}

	minSpeech := c.timeouts.MinSpeechDuration
	size, _ := c.recordings.Size(ctx, path)
	isShort := timedOut || bytesImplyShort(size, minSpeech)

	transcript := fallbackText
	if !isShort {
		result, err := c.speech.TranscribeFile(ctx, path, speechiface.TranscribeOptions{VAD: true})
		if err != nil {
			logger.Warn(ctx, "waiting transcription failed, treating as unknown intent", "error", err)
		} else if result.Text != "" {
			transcript = result.Text
		}
	}

	if transcript == "" {
		sess.ConsecutiveSilences++
	} else {
		sess.ConsecutiveSilences = 0
		sess.AppendTurn(schema.RoleCaller, transcript, c.nowMs(sess))
		if err := c.persistTurn(ctx, sess, schema.RoleCaller, transcript); err != nil {
			logger.Warn(ctx, "append conversation turn failed", "error", err)
		}
	}

	return transcript, true
}

// bytesImplyShort is a filesystem-only stand-in for "recording shorter
// than min_speech_ms" (§4.6.4 step 4): true amplitude/duration decoding
// is delegated per the Non-goals in §1, so a near-empty file is treated
// as too short to carry speech.
func bytesImplyShort(size int64, _ time.Duration) bool {
	return size <= silenceSizeThresholdBytes
}

// pollGrowth implements the §4.6.4 step-2/3 polling loop: it watches the
// recording file's size at pollEvery, ending the phase when growth has
// stalled for silenceThreshold, when timeout elapses, or on hangup.
func (c *Controller) pollGrowth(ctx context.Context, sess *session, events <-chan *softswitchiface.Event, path string, pollEvery, silenceThreshold, timeout time.Duration) (hangup *softswitchiface.Event, timedOut bool) {
	deadline := c.clock.Now().Add(timeout)
	lastSize := int64(-1)
	lastGrowth := c.clock.Now()

	for {
		remaining := deadline.Sub(c.clock.Now())
		if remaining <= 0 {
			return nil, true
		}
		tick := pollEvery
		if remaining < tick {
			tick = remaining
		}

		select {
		case <-ctx.Done():
			return nil, false
		case ev, ok := <-events:
			if !ok {
				return nil, false
			}
			if isHangupEvent(ev) {
				return ev, false
			}
		case <-c.clock.After(tick):
			size, err := c.recordings.Size(ctx, path)
			if err == nil && size != lastSize {
				lastSize = size
				lastGrowth = c.clock.Now()
			}
			if c.clock.Now().Sub(lastGrowth) >= silenceThreshold && lastSize > silenceSizeThresholdBytes {
				return nil, false
			}
		}
	}
}

// persistTurn records one conversation-history entry via AppendCallEvent
// (§6). The step label and intent are attached by the caller later at
// routing time, not here — this only commits the raw caller utterance.
func (c *Controller) persistTurn(ctx context.Context, sess *session, role schema.Role, text string) error {
	payload := []byte(fmt.Sprintf(`{"role":%q,"text":%q}`, role, text))
	return c.persistence.AppendCallEvent(ctx, sess.rowID, "conversation_turn", payload, c.clock.Now())
}
