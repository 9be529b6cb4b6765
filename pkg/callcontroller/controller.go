// Package callcontroller implements the per-call real-time control plane
// (§4.6): one instance drives one call's three-phase inner loop (AMD,
// then a Playing/Waiting/Processing cycle per scenario step) nested
// inside the scenario-level outer loop, until a terminal step or an
// external hangup is reached. It owns the call's phase transitions,
// conversation history, and final disposition.
package callcontroller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxloop/voxloop/pkg/classify"
	"github.com/voxloop/voxloop/pkg/config"
	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/objection"
	persistenceiface "github.com/voxloop/voxloop/pkg/persistence/iface"
	"github.com/voxloop/voxloop/pkg/scenario"
	"github.com/voxloop/voxloop/pkg/schema"
	speechiface "github.com/voxloop/voxloop/pkg/speech/iface"
	softswitchiface "github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// Semaphore bounds the number of concurrently active calls. The Campaign
// Runner owns the instance; the Call Controller acquires on dispatch and
// releases on Done (§5 shared-resource policy).
type Semaphore interface {
	Acquire(ctx context.Context) error
	Release()
}

// Clock abstracts wall-clock reads and waits so tests can run the
// RTP-priming, smooth-interrupt, and polling delays without waiting for
// them in real time. After mirrors time.After so call-phase loops can
// select it against the event stream and the cancel signal (§5
// suspension points).
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time                   { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// FinalizedEvent carries one call's outcome to whatever dispatched it, so
// a Campaign Runner can decide on a retry or publish a lifecycle
// notification without re-deriving state the Call Controller already
// computed (§6 ScheduleRetry, §9 event notifications).
type FinalizedEvent struct {
	RowID              string
	CampaignID         string
	ContactID          string
	CallID             string
	FinalStatus        schema.FinalStatus
	QualificationScore float64
	RecordingPath      string
}

// RecordingInspector reads the softswitch-owned recording files the
// growth-polling loop and AMD volume probe depend on (§4.6.2, §4.6.4,
// §5). Real amplitude analysis is audio DSP and is delegated to the
// softswitch/STT stack per the Non-goals in §1; the production
// implementation here is a thin filesystem boundary, not a decoder.
type RecordingInspector interface {
	// Size returns the current byte size of the recording at path.
	Size(ctx context.Context, path string) (int64, error)
}

// Controller drives one call's lifecycle (§4.6). Build with NewController
// and run with RunCall; a Controller is safe to reuse across many
// sequential or concurrent calls since all per-call state lives in the
// session it constructs internally.
type Controller struct {
	softswitch  softswitchiface.Client
	speech      speechiface.Gateway
	persistence persistenceiface.Port
	objections  *objection.Registry
	amdVocab    classify.AMDVocabulary
	intentVocab classify.IntentVocabulary
	timeouts    config.PhaseTimeouts
	threshold   float64
	logger      *o11y.Logger
	recordings  RecordingInspector
	clock       Clock
	streamFork  func(callID string) string
	onFinalized func(FinalizedEvent)
	metrics     *o11y.Metrics
	tracer      trace.Tracer
}

// Option configures a Controller built by NewController.
type Option func(*Controller)

func WithSoftswitch(c softswitchiface.Client) Option { return func(ctl *Controller) { ctl.softswitch = c } }
func WithSpeech(s speechiface.Gateway) Option        { return func(ctl *Controller) { ctl.speech = s } }
func WithPersistence(p persistenceiface.Port) Option { return func(ctl *Controller) { ctl.persistence = p } }
func WithObjections(r *objection.Registry) Option    { return func(ctl *Controller) { ctl.objections = r } }
func WithAMDVocabulary(v classify.AMDVocabulary) Option {
	return func(ctl *Controller) { ctl.amdVocab = v }
}
func WithIntentVocabulary(v classify.IntentVocabulary) Option {
	return func(ctl *Controller) { ctl.intentVocab = v }
}
func WithTimeouts(t config.PhaseTimeouts) Option { return func(ctl *Controller) { ctl.timeouts = t } }
func WithQualificationThreshold(threshold float64) Option {
	return func(ctl *Controller) { ctl.threshold = threshold }
}
func WithLogger(l *o11y.Logger) Option                   { return func(ctl *Controller) { ctl.logger = l } }
func WithRecordingInspector(r RecordingInspector) Option { return func(ctl *Controller) { ctl.recordings = r } }
func WithClock(c Clock) Option                           { return func(ctl *Controller) { ctl.clock = c } }

// WithStreamForkURLBuilder supplies the function that turns a call id
// into the WebSocket URL the softswitch should fork caller-leg audio to
// (§6 uuid_audio_stream). Without one, barge-in steps still open a
// streaming ASR session but skip instructing the softswitch to fork
// media — suitable for deployments where forking is configured once in
// the dialplan rather than per-call.
func WithStreamForkURLBuilder(fn func(callID string) string) Option {
	return func(ctl *Controller) { ctl.streamFork = fn }
}

// WithOnFinalized registers a callback invoked once per call, right after
// FinalizeCall succeeds, with the resolved outcome. Used by the Campaign
// Runner to schedule retries and publish call-lifecycle notifications
// without a second read of the persisted row.
func WithOnFinalized(fn func(FinalizedEvent)) Option {
	return func(ctl *Controller) { ctl.onFinalized = fn }
}

// SetOnFinalized assigns the finalize hook after construction, so a
// Campaign Runner (which needs a reference to its Controller to build the
// hook's closure) can wire itself in after NewController returns, before
// any call is dispatched.
func (c *Controller) SetOnFinalized(fn func(FinalizedEvent)) { c.onFinalized = fn }

// WithMetrics wires the shared counters/histograms a Call Controller and
// Campaign Runner both report into (§8 ambient stack). Without one, calls
// still run correctly; only observability is lost.
func WithMetrics(m *o11y.Metrics) Option {
	return func(ctl *Controller) {
		ctl.metrics = m
		ctl.tracer = o11y.Tracer("voxloop/callcontroller")
	}
}

// NewController builds a Controller. Sensible zero-value defaults are
// used for Logger, RecordingInspector, and Clock when not supplied;
// softswitch/speech/persistence have no usable default and must be
// supplied by the caller.
func NewController(opts ...Option) *Controller {
	ctl := &Controller{
		threshold:  scenario.DefaultQualificationThreshold,
		logger:     o11y.NewNop(),
		recordings: osRecordingInspector{},
		clock:      RealClock{},
		metrics:    o11y.NoopMetrics(),
		tracer:     o11y.Tracer("voxloop/callcontroller"),
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// CallParams is everything RunCall needs to place and drive one call.
type CallParams struct {
	Campaign    persistenceiface.CampaignDefinition
	Contact     persistenceiface.Contact
	Scenario    *scenario.Scenario
	Destination string
	CallerID    string
}

// session bundles the schema.CallSession with the extra runtime fields a
// running call needs but that don't belong in the persisted aggregate.
type session struct {
	*schema.CallSession
	rowID string
}

// RunCall places one call and drives it through §4.6's lifecycle to
// completion, returning only when the call has reached Done. It returns
// a non-nil error solely for pre-call setup failures (semaphore
// acquisition, context cancellation before Originate); once a call
// record exists, every subsequent failure is absorbed, logged, and
// resolved into a final_status instead of propagating (§7 propagation
// policy: errors never cross call boundaries).
func (c *Controller) RunCall(ctx context.Context, sem Semaphore, params CallParams) error {
	ctx, span := c.tracer.Start(ctx, "callcontroller.RunCall")
	defer span.End()

	if sem != nil {
		if err := sem.Acquire(ctx); err != nil {
			return WrapError("RunCall", "", err)
		}
		defer sem.Release()
	}

	c.metrics.CallsStarted.Add(ctx, 1)
	c.metrics.ActiveCalls.Add(ctx, 1)
	defer c.metrics.ActiveCalls.Add(ctx, -1)

	logger := c.logger.With("campaign_id", params.Campaign.ID, "contact_id", params.Contact.ID)

	callID, originateErr := c.softswitch.Originate(ctx, params.Destination, params.CallerID, map[string]string{
		"campaign_id": params.Campaign.ID,
		"contact_id":  params.Contact.ID,
	})
	if originateErr != nil {
		logger.Warn(ctx, "originate failed", "error", originateErr)
		return c.finalizeOriginateFailure(ctx, params, originateErr, logger)
	}

	sess := &session{CallSession: schema.NewCallSession(params.Contact.ID, params.Campaign.ID)}
	sess.ID = callID
	logger = logger.With("call_id", callID)

	rowID, err := c.persistence.CreateCallRecord(ctx, params.Campaign.ID, params.Contact.ID, callID)
	if err != nil {
		logger.Error(ctx, "create call record failed", "error", err)
		return WrapError("RunCall", callID, err)
	}
	sess.rowID = rowID

	events, err := c.softswitch.Subscribe(callID)
	if err != nil {
		logger.Error(ctx, "subscribe failed", "error", err)
		c.forceFailed(ctx, sess, logger)
		return nil
	}
	defer c.softswitch.Unsubscribe(callID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "call panicked", "panic", r)
			c.forceFailed(ctx, sess, logger)
		}
	}()

	maxDuration := c.timeouts.MaxCallDuration
	if maxDuration <= 0 {
		maxDuration = 5 * time.Minute
	}
	callCtx, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()

	c.runLifecycle(callCtx, sess, events, params, logger)
	return nil
}

// runLifecycle is the top-level state machine: Dialing → AMD → step loop
// → Terminating → Done (§4.6.1).
func (c *Controller) runLifecycle(ctx context.Context, sess *session, events <-chan *softswitchiface.Event, params CallParams, logger *o11y.Logger) {
	if !c.waitForAnswer(ctx, sess, events, logger) {
		c.terminate(ctx, sess, schema.FinalStatusNoAnswer, logger)
		return
	}

	amdResult, ok := c.runAMD(ctx, sess, events, logger)
	if !ok {
		return
	}
	if amdResult == schema.AMDMachine || amdResult == schema.AMDSilence {
		c.terminate(ctx, sess, schema.FinalStatusNoAnswer, logger)
		return
	}

	stepID := params.Scenario.Document().EntryStep
	if stepID == "" {
		if step, ok := params.Scenario.EntryStep(); ok {
			stepID = step.ID
		}
	}
	c.setStep(ctx, sess, stepID, logger)

	for {
		step, ok := params.Scenario.Step(stepID)
		if !ok {
			logger.Error(ctx, "scenario routing to non-existent step", "step", stepID)
			c.terminate(ctx, sess, schema.FinalStatusFailed, logger)
			return
		}

		playingOK, bargeInText := c.runPlaying(ctx, sess, events, params.Scenario, step, logger)
		if !playingOK {
			return
		}

		transcript, ok := c.runWaiting(ctx, sess, events, bargeInText, logger)
		if !ok {
			return
		}

		next, terminal, done := c.runProcessing(ctx, sess, events, params.Scenario, step, transcript, logger)
		if done {
			return
		}
		stepID = next
		if !terminal {
			c.setStep(ctx, sess, stepID, logger)
			continue
		}

		c.runTerminalStep(ctx, sess, params.Scenario, stepID, logger)
		return
	}
}

// setStep updates the in-memory scenario cursor and persists it at once as
// a step_entered AppendCallEvent so reporting can replay step-by-step
// progress.
func (c *Controller) setStep(ctx context.Context, sess *session, stepID string, logger *o11y.Logger) {
	sess.ScenarioStep = stepID
	payload := []byte(`{"step":"` + stepID + `"}`)
	if err := c.persistence.AppendCallEvent(ctx, sess.rowID, "step_entered", payload, c.clock.Now()); err != nil {
		logger.Warn(ctx, "append step_entered event failed", "error", err)
	}
}

// nowMs returns a timestamp relative to the session's creation, used for
// conversation-history turn timestamps (§3).
func (c *Controller) nowMs(sess *session) int64 {
	return c.clock.Now().Sub(sess.CreatedAt).Milliseconds()
}

// generateFailedCallID builds a local identifier for a call row created
// after a failed Originate, which never received a softswitch-assigned
// channel id.
func generateFailedCallID() string {
	return "originate-failed-" + uuid.NewString()
}
