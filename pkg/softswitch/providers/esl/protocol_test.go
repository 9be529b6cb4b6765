package esl

import (
	"bufio"
	"strings"
	"testing"

	"github.com/voxloop/voxloop/pkg/softswitch/iface"
)

func TestReadFrameWithContentLength(t *testing.T) {
	raw := "Content-Type: text/event-plain\r\nContent-Length: 21\r\n\r\nEvent-Name: HEARTBEAT"
	r := bufio.NewReader(strings.NewReader(raw))
	f, err := readFrame(r)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.headers["Content-Type"] != "text/event-plain" {
		t.Fatalf("unexpected headers: %+v", f.headers)
	}
	if f.body != "Event-Name: HEARTBEAT" {
		t.Fatalf("unexpected body: %q", f.body)
	}
}

func TestReadFrameToleratesHeaderOrderVariance(t *testing.T) {
	raw := "Content-Length: 4\r\nContent-Type: text/event-plain\r\n\r\nabcd"
	r := bufio.NewReader(strings.NewReader(raw))
	f, err := readFrame(r)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.body != "abcd" {
		t.Fatalf("unexpected body: %q", f.body)
	}
}

func TestParseEventExtractsCallID(t *testing.T) {
	body := "Event-Name: CHANNEL_ANSWER\nUnique-ID: abc-123\nAnswer-State: answered\n"
	evt := parseEvent(body)
	if evt.Type != iface.EventChannelAnswer {
		t.Fatalf("expected CHANNEL_ANSWER, got %s", evt.Type)
	}
	if evt.CallID != "abc-123" {
		t.Fatalf("expected call id abc-123, got %s", evt.CallID)
	}
	if evt.Header("Answer-State") != "answered" {
		t.Fatalf("expected answered, got %s", evt.Header("Answer-State"))
	}
}

func TestParseEventUnknownTypeStillParses(t *testing.T) {
	body := "Event-Name: SOME_FUTURE_EVENT\nUnique-ID: xyz\n"
	evt := parseEvent(body)
	if evt.Type != "SOME_FUTURE_EVENT" {
		t.Fatalf("expected pass-through type, got %s", evt.Type)
	}
	if evt.CallID != "xyz" {
		t.Fatalf("expected xyz, got %s", evt.CallID)
	}
}
