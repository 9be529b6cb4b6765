// Package streaming implements the Speech Recognition Gateway's streaming
// half (§4.2) over a WebSocket keyed by call_id — the transport the
// softswitch's media fork targets (§6). Framing is opaque binary chunks
// carrying raw PCM; the server side emits JSON control frames for the
// speech_start/speech_end/partial/final event kinds.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voxloop/voxloop/pkg/speech"
	"github.com/voxloop/voxloop/pkg/speech/iface"
)

// Config configures the streaming ASR WebSocket client.
type Config struct {
	// Endpoint is a ws:// or wss:// base URL; call_id is appended as a
	// path segment so the gateway can key sessions (§4.2).
	Endpoint       string
	HandshakeTimeout time.Duration
}

// Gateway implements iface.Gateway's streaming half.
type Gateway struct {
	cfg Config
}

// New builds a streaming Gateway.
func New(cfg Config) *Gateway {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	return &Gateway{cfg: cfg}
}

type wireEvent struct {
	Kind             string `json:"kind"`
	Text             string `json:"text,omitempty"`
	SpeechDurationMs int64  `json:"speech_duration_ms,omitempty"`
}

type handle struct {
	conn   *websocket.Conn
	events chan iface.StreamEvent
	closed chan struct{}
	once   sync.Once
}

// OpenStream opens a streaming session keyed by callID (§4.2).
func (g *Gateway) OpenStream(ctx context.Context, callID string) (iface.StreamHandle, error) {
	u, err := url.Parse(g.cfg.Endpoint)
	if err != nil {
		return nil, speech.WrapError("OpenStream", err)
	}
	u.Path = fmt.Sprintf("%s/%s", u.Path, callID)

	dialer := websocket.Dialer{HandshakeTimeout: g.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, speech.NewGatewayError("OpenStream", speech.ErrCodeBackendUnavailable, err)
	}

	h := &handle{
		conn:   conn,
		events: make(chan iface.StreamEvent, 32),
		closed: make(chan struct{}),
	}
	go h.readLoop()
	return h, nil
}

func (h *handle) readLoop() {
	defer close(h.events)
	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			return
		}
		var we wireEvent
		if err := json.Unmarshal(data, &we); err != nil {
			continue
		}
		evt := iface.StreamEvent{
			Kind:             iface.StreamEventKind(we.Kind),
			Text:             we.Text,
			SpeechDurationMs: we.SpeechDurationMs,
		}
		select {
		case h.events <- evt:
		case <-h.closed:
			return
		}
	}
}

// Events returns the session's lazily-produced event sequence (§4.2).
func (h *handle) Events() <-chan iface.StreamEvent { return h.events }

// Close terminates the session.
func (h *handle) Close() error {
	var err error
	h.once.Do(func() {
		close(h.closed)
		err = h.conn.Close()
	})
	return err
}

// IsAvailable is not meaningful for a streaming-only half; the composed
// gateway facade (pkg/speech) answers IsAvailable from the batch half.
func (g *Gateway) IsAvailable(ctx context.Context) bool { return true }

// TranscribeFile is not implemented by the streaming half; the composed
// gateway facade dispatches TranscribeFile to the batch half.
func (g *Gateway) TranscribeFile(ctx context.Context, path string, opts iface.TranscribeOptions) (iface.TranscriptionResult, error) {
	return iface.TranscriptionResult{}, speech.NewGatewayError("TranscribeFile", speech.ErrCodeInternalError, fmt.Errorf("streaming gateway does not implement batch transcription"))
}
