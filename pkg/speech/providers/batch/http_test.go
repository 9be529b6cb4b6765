package batch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/speech"
	"github.com/voxloop/voxloop/pkg/speech/iface"
)

func TestTranscribeFileRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"oui allo","duration_ms":1800,"language_confidence":0.92}`))
	}))
	defer srv.Close()

	f, err := os.CreateTemp(t.TempDir(), "call-*.wav")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.WriteString("RIFF....WAVEfmt ")
	f.Close()

	tr := New(Config{Endpoint: srv.URL, Timeout: 2 * time.Second})
	result, err := tr.TranscribeFile(context.Background(), f.Name(), iface.TranscribeOptions{VAD: true, BeamWidth: 5})
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if result.Text != "oui allo" {
		t.Fatalf("expected text 'oui allo', got %q", result.Text)
	}
	if result.DurationMs != 1800 {
		t.Fatalf("expected duration 1800, got %d", result.DurationMs)
	}
}

func TestTranscribeFileMissingFile(t *testing.T) {
	tr := New(Config{Endpoint: "http://unused.invalid"})
	_, err := tr.TranscribeFile(context.Background(), "/does/not/exist.wav", iface.TranscribeOptions{})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	ge, ok := err.(*speech.GatewayError)
	if !ok {
		t.Fatalf("expected *speech.GatewayError, got %T", err)
	}
	if ge.Code != speech.ErrCodeFileNotFound {
		t.Fatalf("expected %s, got %s", speech.ErrCodeFileNotFound, ge.Code)
	}
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := New(Config{Endpoint: srv.URL})
	if !tr.IsAvailable(context.Background()) {
		t.Fatalf("expected available")
	}
}

func TestIsAvailableFalseOnUnreachable(t *testing.T) {
	tr := New(Config{Endpoint: "http://127.0.0.1:1"})
	if tr.IsAvailable(context.Background()) {
		t.Fatalf("expected unavailable")
	}
}
