package esl

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxloop/voxloop/pkg/softswitch"
)

// RecordStart instructs the softswitch to start recording the channel to
// path, for at most limitSeconds (0 = no limit) (§6 uuid_record start).
func (c *Client) RecordStart(ctx context.Context, callID, path string, limitSeconds int) error {
	cmd := fmt.Sprintf("api uuid_record %s start %s", callID, path)
	if limitSeconds > 0 {
		cmd = fmt.Sprintf("%s %d", cmd, limitSeconds)
	}
	return c.execOK(ctx, "RecordStart", cmd)
}

// RecordStop stops a recording previously started with RecordStart.
func (c *Client) RecordStop(ctx context.Context, callID, path string) error {
	return c.execOK(ctx, "RecordStop", fmt.Sprintf("api uuid_record %s stop %s", callID, path))
}

// Play begins non-blocking playback of audioPath on the channel (§6
// uuid_broadcast/playback).
func (c *Client) Play(ctx context.Context, callID, audioPath string) error {
	return c.execOK(ctx, "Play", fmt.Sprintf("api uuid_broadcast %s %s aleg", callID, audioPath))
}

// Break interrupts current playback on the channel (§6 uuid_break); this is
// how the Call Controller executes a barge-in (§4.6.3).
func (c *Client) Break(ctx context.Context, callID string) error {
	return c.execOK(ctx, "Break", fmt.Sprintf("api uuid_break %s", callID))
}

// SetVar sets a channel variable, used to pass stream URLs and grammar
// paths to the softswitch's dialplan (§6 uuid_setvar).
func (c *Client) SetVar(ctx context.Context, callID, key, value string) error {
	return c.execOK(ctx, "SetVar", fmt.Sprintf("api uuid_setvar %s %s %s", callID, key, value))
}

// Transfer moves the call to a dialplan extension (§6 uuid_transfer), used
// when an on-softswitch ASR module requires dialplan-side control.
func (c *Client) Transfer(ctx context.Context, callID, extension, dialplanContext string) error {
	return c.execOK(ctx, "Transfer", fmt.Sprintf("api uuid_transfer %s %s XML %s", callID, extension, dialplanContext))
}

// AudioStream forks the channel's media to an external WebSocket endpoint
// (§6 uuid_audio_stream), the alternative to the dialplan-transfer pattern
// for streaming ASR (§4.2, §4.6.3).
func (c *Client) AudioStream(ctx context.Context, callID, wsURL, mix string, rate int) error {
	return c.execOK(ctx, "AudioStream", fmt.Sprintf("api uuid_audio_stream %s start %s %s %d", callID, wsURL, mix, rate))
}

// Kill hangs up the channel (§6 uuid_kill). Callers must set
// robot_initiated_hangup before invoking Kill, per §4.6.6.
func (c *Client) Kill(ctx context.Context, callID string) error {
	return c.execOK(ctx, "Kill", fmt.Sprintf("api uuid_kill %s", callID))
}

// execOK runs command and treats any reply beginning with "-ERR" as a
// provider rejection.
func (c *Client) execOK(ctx context.Context, op, command string) error {
	reply, err := c.ExecApi(ctx, command)
	if err != nil {
		return softswitch.WrapError(op, err)
	}
	if strings.HasPrefix(strings.TrimSpace(reply), "-ERR") {
		return softswitch.NewClientErrorWithMessage(op, softswitch.ErrCodeProviderRejected, reply, nil)
	}
	return nil
}
