package streaming

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voxloop/voxloop/pkg/speech/iface"
)

func TestOpenStreamReceivesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"speech_start"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"speech_end","speech_duration_ms":1900}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"final","text":"c'est trop cher"}`))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	g := New(Config{Endpoint: wsURL})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	handle, err := g.OpenStream(ctx, "call-42")
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer handle.Close()

	var got []iface.StreamEvent
	for evt := range handle.Events() {
		got = append(got, evt)
		if len(got) == 3 {
			break
		}
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Kind != iface.StreamSpeechStart {
		t.Fatalf("expected speech_start, got %s", got[0].Kind)
	}
	if got[1].Kind != iface.StreamSpeechEnd || got[1].SpeechDurationMs != 1900 {
		t.Fatalf("expected speech_end with duration 1900, got %+v", got[1])
	}
	if got[2].Kind != iface.StreamFinal || got[2].Text != "c'est trop cher" {
		t.Fatalf("expected final with text, got %+v", got[2])
	}
}
