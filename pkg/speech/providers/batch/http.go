// Package batch implements the Speech Recognition Gateway's file-based
// (batch) transcriber (§4.2) as an HTTP client against an external STT
// endpoint. The STT engine itself is out of scope (§1): this package only
// implements the contract's client side.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/voxloop/voxloop/pkg/speech"
	"github.com/voxloop/voxloop/pkg/speech/iface"
)

// Config configures the batch transcriber HTTP client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Transcriber implements iface.Gateway's batch half over HTTP multipart
// upload. It does not implement streaming; callers needing both halves
// compose this with providers/streaming behind a single gateway facade.
type Transcriber struct {
	cfg    Config
	client *http.Client
}

// New builds a batch Transcriber. Timeout defaults to 10s if unset.
func New(cfg Config) *Transcriber {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Transcriber{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type transcribeResponse struct {
	Text               string  `json:"text"`
	DurationMs         int64   `json:"duration_ms"`
	LanguageConfidence float64 `json:"language_confidence"`
}

// TranscribeFile is idempotent and side-effect free beyond reading path
// (§4.2). An empty result.Text is a successful "silence detected" outcome.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string, opts iface.TranscribeOptions) (iface.TranscriptionResult, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return iface.TranscriptionResult{}, speech.NewGatewayError("TranscribeFile", speech.ErrCodeFileNotFound, err)
		}
		return iface.TranscriptionResult{}, speech.WrapError("TranscribeFile", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", path)
	if err != nil {
		return iface.TranscriptionResult{}, speech.WrapError("TranscribeFile", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return iface.TranscriptionResult{}, speech.WrapError("TranscribeFile", err)
	}
	writeOpt(mw, "vad", opts.VAD)
	writeOpt(mw, "beam_width", opts.BeamWidth)
	writeOpt(mw, "no_speech_threshold", opts.NoSpeechThreshold)
	writeOpt(mw, "condition_on_prev", opts.ConditionOnPrevious)
	if err := mw.Close(); err != nil {
		return iface.TranscriptionResult{}, speech.WrapError("TranscribeFile", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint+"/transcribe", &body)
	if err != nil {
		return iface.TranscriptionResult{}, speech.WrapError("TranscribeFile", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return iface.TranscriptionResult{}, speech.NewGatewayError("TranscribeFile", speech.ErrCodeBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return iface.TranscriptionResult{}, speech.NewGatewayError("TranscribeFile", speech.ErrCodeInternalError, fmt.Errorf("stt endpoint status %d", resp.StatusCode))
	}

	var decoded transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return iface.TranscriptionResult{}, speech.WrapError("TranscribeFile", err)
	}

	return iface.TranscriptionResult{
		Text:               decoded.Text,
		DurationMs:         decoded.DurationMs,
		LanguageConfidence: decoded.LanguageConfidence,
		LatencyMs:          time.Since(start).Milliseconds(),
	}, nil
}

// IsAvailable probes backend reachability at startup (§4.2).
func (t *Transcriber) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func writeOpt(mw *multipart.Writer, field string, v any) {
	mw.WriteField(field, fmt.Sprintf("%v", v))
}
