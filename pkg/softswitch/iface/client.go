// Package iface declares the Softswitch Client's public contract (§4.1):
// a reconnecting duplex bus over the softswitch's Event Socket control
// protocol. Concrete transports live under softswitch/providers.
package iface

import "context"

// EventType enumerates the channel/playback/recording lifecycle events the
// client dispatches to subscribers (§6).
type EventType string

const (
	EventChannelCreate      EventType = "CHANNEL_CREATE"
	EventChannelAnswer      EventType = "CHANNEL_ANSWER"
	EventChannelHangup      EventType = "CHANNEL_HANGUP"
	EventChannelHangupComplete EventType = "CHANNEL_HANGUP_COMPLETE"
	EventPlaybackStart      EventType = "PLAYBACK_START"
	EventPlaybackStop       EventType = "PLAYBACK_STOP"
	EventRecordStart        EventType = "RECORD_START"
	EventRecordStop         EventType = "RECORD_STOP"
	EventCustomSpeechDetect EventType = "CUSTOM_SPEECH_DETECTED"
	// EventProviderDisconnected is synthetic: the client manufactures it
	// for every open subscription when the event connection drops, so
	// every call context observes the disconnect without race-prone
	// polling of a shared health flag (§4.1 design decisions).
	EventProviderDisconnected EventType = "PROVIDER_DISCONNECTED"
)

// Event is one parsed Event Socket message. Headers retain their original
// casing and ordering is not significant — the protocol tolerates header
// ordering variance per §4.1.
type Event struct {
	Type    EventType
	CallID  string
	Headers map[string]string
	Body    string
}

// Header reads a header value, returning "" if absent.
func (e *Event) Header(key string) string {
	if e == nil || e.Headers == nil {
		return ""
	}
	return e.Headers[key]
}

// Client is the Softswitch Client's public contract (§4.1).
type Client interface {
	// Originate places an outbound call. Fails with ErrCodeProviderRejected,
	// ErrCodeNoTrunk, or ErrCodeTimeout.
	Originate(ctx context.Context, destination, callerID string, applicationVars map[string]string) (callID string, err error)

	// ExecApi issues a short request/response command over the API
	// connection. It never waits for a specific asynchronous event;
	// waiting on events is the caller's concern.
	ExecApi(ctx context.Context, command string) (replyText string, err error)

	// Subscribe multiplexes events by call_id. The returned channel is
	// closed when the channel is destroyed or the client is closed.
	Subscribe(callID string) (<-chan *Event, error)

	// Unsubscribe releases a call's dispatch table entry. Safe to call
	// more than once.
	Unsubscribe(callID string)

	// RecordStart instructs the softswitch to start recording the channel
	// to path, for at most limitSeconds (0 = no limit) (§6 uuid_record start).
	RecordStart(ctx context.Context, callID, path string, limitSeconds int) error

	// RecordStop stops a recording previously started with RecordStart.
	RecordStop(ctx context.Context, callID, path string) error

	// Play begins non-blocking playback of audioPath on the channel.
	Play(ctx context.Context, callID, audioPath string) error

	// Break interrupts current playback on the channel — how the Call
	// Controller executes a barge-in (§4.6.3).
	Break(ctx context.Context, callID string) error

	// SetVar sets a channel variable, used to pass stream URLs and
	// grammar paths to the softswitch's dialplan.
	SetVar(ctx context.Context, callID, key, value string) error

	// Transfer moves the call to a dialplan extension, used when an
	// on-softswitch ASR module requires dialplan-side control.
	Transfer(ctx context.Context, callID, extension, dialplanContext string) error

	// AudioStream forks the channel's media to an external WebSocket
	// endpoint, the alternative to the dialplan-transfer pattern for
	// streaming ASR (§4.2, §4.6.3).
	AudioStream(ctx context.Context, callID, wsURL, mix string, rate int) error

	// Kill hangs up the channel. Callers must set robot_initiated_hangup
	// before invoking Kill, per §4.6.6.
	Kill(ctx context.Context, callID string) error

	// Close performs a scoped shutdown, draining in-flight commands.
	Close() error
}
