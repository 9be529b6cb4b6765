// Package iface declares the Speech Recognition Gateway's public contract
// (§4.2): one interface over a batch (file-based) ASR backend and a
// streaming ASR backend bound to call_id.
package iface

import "context"

// StreamEventKind distinguishes the four event kinds a streaming ASR
// session can emit (§4.2).
type StreamEventKind string

const (
	StreamSpeechStart StreamEventKind = "speech_start"
	StreamSpeechEnd   StreamEventKind = "speech_end"
	StreamPartial     StreamEventKind = "partial"
	StreamFinal       StreamEventKind = "final"
)

// StreamEvent is one event from a streaming ASR session.
type StreamEvent struct {
	Kind StreamEventKind
	// Text carries the transcription for Partial and Final events.
	Text string
	// SpeechDurationMs carries the measured speech duration for
	// StreamSpeechEnd events — the Call Controller's primary barge-in
	// trigger (§4.2, §4.6.3).
	SpeechDurationMs int64
}

// TranscribeOptions tunes the batch transcriber (§4.2).
type TranscribeOptions struct {
	VAD                 bool
	BeamWidth           int
	NoSpeechThreshold   float64
	ConditionOnPrevious bool
}

// TranscriptionResult is the batch transcriber's output (§4.2).
type TranscriptionResult struct {
	Text             string
	DurationMs       int64
	LanguageConfidence float64
	LatencyMs        int64
}

// StreamHandle exposes a streaming ASR session's event sequence (§4.2).
type StreamHandle interface {
	// Events returns a finite, lazily-produced sequence of StreamEvents.
	// It terminates when the underlying transport closes.
	Events() <-chan StreamEvent
	Close() error
}

// Gateway presents a single interface over the batch and streaming ASR
// backends (§4.2).
type Gateway interface {
	// TranscribeFile is idempotent and side-effect free beyond reading
	// path. An empty Text in the result is a successful "silence
	// detected" outcome, not an error (§4.2 failure semantics).
	TranscribeFile(ctx context.Context, path string, opts TranscribeOptions) (TranscriptionResult, error)

	// OpenStream opens a streaming session keyed by callID. The
	// softswitch must already be instructed to fork the caller-leg
	// audio to this gateway's endpoint (§4.2, §4.6.3).
	OpenStream(ctx context.Context, callID string) (StreamHandle, error)

	// IsAvailable probes backend reachability at startup.
	IsAvailable(ctx context.Context) bool
}
