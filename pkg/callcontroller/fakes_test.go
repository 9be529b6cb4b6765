package callcontroller

import (
	"context"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/objection"
	persistenceiface "github.com/voxloop/voxloop/pkg/persistence/iface"
	speechiface "github.com/voxloop/voxloop/pkg/speech/iface"
	softswitchiface "github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// fakeClock advances deterministically on every Now()/After() call so
// phase loops that poll wall-clock time converge without real sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	fired := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- fired
	return ch
}

// fakeSoftswitch is a single-call Softswitch Client test double. Play
// synthesises an immediate PLAYBACK_STOP unless suppressPlaybackStop is
// set, letting barge-in tests drive playback completion purely off
// streaming ASR events instead.
type fakeSoftswitch struct {
	mu sync.Mutex

	callID       string
	originateErr error

	events chan *softswitchiface.Event

	suppressPlaybackStop bool
	playErr              error
	// onPlayEvent, if set, is pushed instead of a synthesised PLAYBACK_STOP,
	// letting tests drive a deterministic mid-prompt hangup.
	onPlayEvent *softswitchiface.Event

	played    []string
	killed    []string
	transfers []string
	broke     int
}

func newFakeSoftswitch(callID string) *fakeSoftswitch {
	return &fakeSoftswitch{callID: callID, events: make(chan *softswitchiface.Event, 64)}
}

func (f *fakeSoftswitch) push(ev *softswitchiface.Event) { f.events <- ev }

func (f *fakeSoftswitch) Originate(ctx context.Context, destination, callerID string, applicationVars map[string]string) (string, error) {
	if f.originateErr != nil {
		return "", f.originateErr
	}
	return f.callID, nil
}

func (f *fakeSoftswitch) ExecApi(ctx context.Context, command string) (string, error) { return "", nil }

func (f *fakeSoftswitch) Subscribe(callID string) (<-chan *softswitchiface.Event, error) {
	return f.events, nil
}

func (f *fakeSoftswitch) Unsubscribe(callID string) {}

func (f *fakeSoftswitch) RecordStart(ctx context.Context, callID, path string, limitSeconds int) error {
	return nil
}

func (f *fakeSoftswitch) RecordStop(ctx context.Context, callID, path string) error { return nil }

func (f *fakeSoftswitch) Play(ctx context.Context, callID, audioPath string) error {
	f.mu.Lock()
	f.played = append(f.played, audioPath)
	suppress := f.suppressPlaybackStop
	err := f.playErr
	onPlay := f.onPlayEvent
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if onPlay != nil {
		f.push(onPlay)
		return nil
	}
	if !suppress {
		f.push(&softswitchiface.Event{Type: softswitchiface.EventPlaybackStop, CallID: callID})
	}
	return nil
}

func (f *fakeSoftswitch) Break(ctx context.Context, callID string) error {
	f.mu.Lock()
	f.broke++
	f.mu.Unlock()
	return nil
}

func (f *fakeSoftswitch) SetVar(ctx context.Context, callID, key, value string) error { return nil }

func (f *fakeSoftswitch) Transfer(ctx context.Context, callID, extension, dialplanContext string) error {
	f.mu.Lock()
	f.transfers = append(f.transfers, extension)
	f.mu.Unlock()
	return nil
}

func (f *fakeSoftswitch) AudioStream(ctx context.Context, callID, wsURL, mix string, rate int) error {
	return nil
}

func (f *fakeSoftswitch) Kill(ctx context.Context, callID string) error {
	f.mu.Lock()
	f.killed = append(f.killed, callID)
	f.mu.Unlock()
	return nil
}

func (f *fakeSoftswitch) Close() error { return nil }

var _ softswitchiface.Client = (*fakeSoftswitch)(nil)

// fakeStreamHandle replays a fixed, pre-scripted sequence of StreamEvents.
type fakeStreamHandle struct {
	events chan speechiface.StreamEvent
}

func newFakeStreamHandle(events ...speechiface.StreamEvent) *fakeStreamHandle {
	ch := make(chan speechiface.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	return &fakeStreamHandle{events: ch}
}

func (h *fakeStreamHandle) Events() <-chan speechiface.StreamEvent { return h.events }
func (h *fakeStreamHandle) Close() error                           { return nil }

// fakeSpeechGateway is a scripted Speech Recognition Gateway test double:
// each TranscribeFile call consumes the next queued result in order.
type fakeSpeechGateway struct {
	mu sync.Mutex

	transcriptions []speechiface.TranscriptionResult
	transcribeErr  error

	stream *fakeStreamHandle
}

func (g *fakeSpeechGateway) TranscribeFile(ctx context.Context, path string, opts speechiface.TranscribeOptions) (speechiface.TranscriptionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transcribeErr != nil {
		return speechiface.TranscriptionResult{}, g.transcribeErr
	}
	if len(g.transcriptions) == 0 {
		return speechiface.TranscriptionResult{}, nil
	}
	next := g.transcriptions[0]
	g.transcriptions = g.transcriptions[1:]
	return next, nil
}

func (g *fakeSpeechGateway) OpenStream(ctx context.Context, callID string) (speechiface.StreamHandle, error) {
	if g.stream == nil {
		return newFakeStreamHandle(), nil
	}
	return g.stream, nil
}

func (g *fakeSpeechGateway) IsAvailable(ctx context.Context) bool { return true }

var _ speechiface.Gateway = (*fakeSpeechGateway)(nil)

// fakeRecordingInspector reports a fixed size for every path unless an
// override is registered, standing in for the real filesystem probe.
type fakeRecordingInspector struct {
	mu          sync.Mutex
	defaultSize int64
	overrides   map[string]int64
}

func newFakeRecordingInspector(defaultSize int64) *fakeRecordingInspector {
	return &fakeRecordingInspector{defaultSize: defaultSize, overrides: make(map[string]int64)}
}

func (f *fakeRecordingInspector) Size(ctx context.Context, path string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if size, ok := f.overrides[path]; ok {
		return size, nil
	}
	return f.defaultSize, nil
}

var _ RecordingInspector = (*fakeRecordingInspector)(nil)

// capturingPort wraps a persistence Port and remembers the row id of the
// most recent CreateCallRecord, so tests can fetch the resulting record
// without re-deriving the random id RunCall generated internally.
type capturingPort struct {
	persistenceiface.Port
	mu        sync.Mutex
	lastRowID string
}

func (p *capturingPort) CreateCallRecord(ctx context.Context, campaignID, contactID, callID string) (string, error) {
	rowID, err := p.Port.CreateCallRecord(ctx, campaignID, contactID, callID)
	p.mu.Lock()
	p.lastRowID = rowID
	p.mu.Unlock()
	return rowID, err
}

func (p *capturingPort) RowID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRowID
}

// emptyObjectionRegistry builds a Registry whose loader always returns no
// entries, for tests that never need objection handling to trigger.
func emptyObjectionRegistry() *objection.Registry {
	registry, _ := objection.NewRegistry(func(theme string) ([]objection.RawEntry, error) {
		return nil, nil
	}, "")
	return registry
}
