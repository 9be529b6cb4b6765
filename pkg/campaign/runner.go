// Package campaign implements the Campaign Runner (§5, §6): it polls each
// configured campaign's pending-contact queue, gates dispatch on the
// legal-hours window and the concurrency cap, hands each due contact to
// the Call Controller, and reacts to a call's outcome by scheduling a
// retry or publishing a lifecycle notification.
package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxloop/voxloop/pkg/callcontroller"
	"github.com/voxloop/voxloop/pkg/campaign/eventbus"
	"github.com/voxloop/voxloop/pkg/campaign/retryworkflow"
	"github.com/voxloop/voxloop/pkg/config"
	"github.com/voxloop/voxloop/pkg/o11y"
	persistenceiface "github.com/voxloop/voxloop/pkg/persistence/iface"
	"github.com/voxloop/voxloop/pkg/scenario"
	"github.com/voxloop/voxloop/pkg/schema"
)

// Runner polls every configured campaign on a fixed schedule and dispatches
// due contacts through a shared Call Controller under a shared
// concurrency cap. Build with NewRunner, wire its finalize callback onto
// the Controller with SetOnFinalized, then call Run.
type Runner struct {
	persistence persistenceiface.Port
	controller  *callcontroller.Controller
	sem         callcontroller.Semaphore

	campaignIDs  []string
	pollInterval time.Duration
	batchSize    int
	callerID     string
	location     *time.Location
	now          func() time.Time

	retryPolicies map[string]config.RetryPolicy
	retryExec     *retryworkflow.Executor
	bus           eventbus.Bus

	logger  *o11y.Logger
	metrics *o11y.Metrics
	tracer  trace.Tracer

	mu        sync.Mutex
	scenarios map[string]scenarioCacheEntry

	attempts sync.Map // contactID -> persistenceiface.Contact, set by dispatch (also when reached via Redial), consumed by HandleFinalized

	wg sync.WaitGroup
}

type scenarioCacheEntry struct {
	hash string
	scn  *scenario.Scenario
}

// Option configures a Runner built by NewRunner.
type Option func(*Runner)

func WithCampaigns(ids ...string) Option { return func(r *Runner) { r.campaignIDs = ids } }
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.pollInterval = d }
}
func WithBatchSize(n int) Option    { return func(r *Runner) { r.batchSize = n } }
func WithCallerID(id string) Option { return func(r *Runner) { r.callerID = id } }
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) { r.location = loc }
}
func WithNowFunc(fn func() time.Time) Option { return func(r *Runner) { r.now = fn } }
func WithRetryPolicies(p map[string]config.RetryPolicy) Option {
	return func(r *Runner) { r.retryPolicies = p }
}
func WithRetryExecutor(e *retryworkflow.Executor) Option {
	return func(r *Runner) { r.retryExec = e }
}
func WithEventBus(b eventbus.Bus) Option { return func(r *Runner) { r.bus = b } }
func WithLogger(l *o11y.Logger) Option   { return func(r *Runner) { r.logger = l } }
func WithMetrics(m *o11y.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// NewRunner builds a Runner. persistence, controller, and sem have no
// usable default; everything else falls back to the same defaults
// pkg/config.setDefaults would apply.
func NewRunner(persistence persistenceiface.Port, controller *callcontroller.Controller, sem callcontroller.Semaphore, opts ...Option) *Runner {
	r := &Runner{
		persistence:  persistence,
		controller:   controller,
		sem:          sem,
		pollInterval: 15 * time.Second,
		batchSize:    20,
		location:     time.UTC,
		now:          time.Now,
		logger:       o11y.NewNop(),
		metrics:      o11y.NoopMetrics(),
		tracer:       o11y.Tracer("voxloop/campaign"),
		bus:          eventbus.Noop{},
		scenarios:    make(map[string]scenarioCacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls every configured campaign immediately, then again every
// pollInterval via a cron schedule, until ctx is cancelled. It blocks
// until every in-flight dispatch goroutine has returned.
func (r *Runner) Run(ctx context.Context) error {
	sched := cron.New()
	spec := fmt.Sprintf("@every %s", r.pollInterval)
	if _, err := sched.AddFunc(spec, func() { r.pollAll(ctx) }); err != nil {
		return WrapError("Run", "", err)
	}

	r.pollAll(ctx)
	sched.Start()
	<-ctx.Done()
	stopCtx := sched.Stop()
	<-stopCtx.Done()
	r.wg.Wait()
	return nil
}

// pollAll runs one poll tick across every configured campaign.
func (r *Runner) pollAll(ctx context.Context) {
	for _, campaignID := range r.campaignIDs {
		if ctx.Err() != nil {
			return
		}
		r.pollCampaign(ctx, campaignID)
	}
}

// pollCampaign implements one campaign's §5/§6 poll cycle: fetch the
// campaign definition, check the legal-hours gate, fetch due contacts,
// and dispatch each one. Contacts stay queued (never failed) when the
// campaign is outside its legal-hours window.
func (r *Runner) pollCampaign(ctx context.Context, campaignID string) {
	ctx, span := r.tracer.Start(ctx, "campaign.pollCampaign", trace.WithAttributes(attribute.String("campaign_id", campaignID)))
	defer span.End()

	logger := r.logger.With("campaign_id", campaignID)

	def, err := r.persistence.FetchCampaign(ctx, campaignID)
	if err != nil {
		logger.Error(ctx, "fetch campaign failed", "error", err)
		return
	}

	now := r.now().In(r.location)
	if !WithinLegalHours(now, def.LegalHours) {
		logger.Debug(ctx, "outside legal hours, skipping poll", "weekday", now.Weekday())
		return
	}

	scn, err := r.scenarioForCampaign(def)
	if err != nil {
		logger.Error(ctx, "load scenario failed", "error", err)
		return
	}

	contacts, err := r.persistence.FetchDueContacts(ctx, campaignID, r.batchSize)
	if err != nil {
		logger.Error(ctx, "fetch due contacts failed", "error", err)
		return
	}

	for _, contact := range contacts {
		contact := contact
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.dispatch(ctx, def, contact, scn, logger)
		}()
	}
}

// dispatch hands one contact to the Call Controller. RunCall blocks until
// the call is Done (or the semaphore/context fails before Originate); the
// finalize callback wired via SetOnFinalized handles the outcome.
func (r *Runner) dispatch(ctx context.Context, def persistenceiface.CampaignDefinition, contact persistenceiface.Contact, scn *scenario.Scenario, logger *o11y.Logger) {
	ctx, span := r.tracer.Start(ctx, "campaign.dispatch", trace.WithAttributes(
		attribute.String("campaign_id", def.ID),
		attribute.String("contact_id", contact.ID),
	))
	defer span.End()

	r.attempts.Store(contact.ID, contact)
	params := callcontroller.CallParams{
		Campaign:    def,
		Contact:     contact,
		Scenario:    scn,
		Destination: contact.Phone,
		CallerID:    r.callerID,
	}
	if err := r.controller.RunCall(ctx, r.sem, params); err != nil {
		logger.Error(ctx, "run call failed", "error", err, "contact_id", contact.ID)
	}
}

// scenarioForCampaign returns a cached parsed Scenario for def, reloading
// only when the campaign's stored document has changed.
func (r *Runner) scenarioForCampaign(def persistenceiface.CampaignDefinition) (*scenario.Scenario, error) {
	hash := scenarioHash(def.ScenarioJSON)

	r.mu.Lock()
	entry, ok := r.scenarios[def.ID]
	r.mu.Unlock()
	if ok && entry.hash == hash {
		return entry.scn, nil
	}

	scn, err := scenario.Load(def.ScenarioJSON, audioFileAlwaysPresent)
	if err != nil {
		return nil, WrapError("scenarioForCampaign", def.ID, err)
	}

	r.mu.Lock()
	r.scenarios[def.ID] = scenarioCacheEntry{hash: hash, scn: scn}
	r.mu.Unlock()
	return scn, nil
}

// audioFileAlwaysPresent is the scenario loader's existence probe in
// production: audio assets are served from a CDN/shared volume the
// Campaign Runner process doesn't necessarily mount, so presence is
// trusted rather than statted (the Call Controller surfaces a playback
// error at call time if it's actually missing).
func audioFileAlwaysPresent(string) bool { return true }

func scenarioHash(raw []byte) string {
	var h uint64 = 14695981039346656037
	for _, b := range raw {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return fmt.Sprintf("%x:%d", h, len(raw))
}

// HandleFinalized is the callback wired onto the Controller via
// SetOnFinalized. It publishes a call.finalized notification for every
// outcome (plus call.lead for Lead) and then schedules a retry for
// NoAnswer/Busy outcomes (§6 ScheduleRetry, §9 event notifications).
func (r *Runner) HandleFinalized(ev callcontroller.FinalizedEvent) {
	ctx, span := r.tracer.Start(context.Background(), "campaign.HandleFinalized", trace.WithAttributes(
		attribute.String("campaign_id", ev.CampaignID),
		attribute.String("call_id", ev.CallID),
		attribute.String("final_status", string(ev.FinalStatus)),
	))
	defer span.End()

	logger := r.logger.With("campaign_id", ev.CampaignID, "call_id", ev.CallID)

	r.publish(ctx, ev, logger)

	var contact persistenceiface.Contact
	used := 0
	if v, ok := r.attempts.LoadAndDelete(ev.ContactID); ok {
		contact = v.(persistenceiface.Contact)
		used = attemptsUsed(contact.Variables)
	}
	notBefore, attemptsLeft, ok := decideRetry(ev.FinalStatus, used, r.retryPolicies, r.now())
	if !ok {
		return
	}

	if err := r.persistence.ScheduleRetry(ctx, ev.RowID, notBefore, attemptsLeft); err != nil {
		logger.Error(ctx, "schedule retry failed", "error", err)
		return
	}
	r.metrics.Retries.Add(ctx, 1)
	if r.retryExec != nil {
		contact.Variables = withIncrementedAttempt(contact.Variables, used+1)
		_, err := r.retryExec.ScheduleRetry(ctx, retryworkflow.RetryParams{
			RowID:        ev.RowID,
			CampaignID:   ev.CampaignID,
			ContactID:    ev.ContactID,
			Contact:      contact,
			NotBefore:    notBefore,
			AttemptsLeft: attemptsLeft,
		})
		if err != nil {
			logger.Warn(ctx, "durable retry workflow not started, falling back to poll-only retry", "error", err)
		}
	}
}

// Redial re-dispatches one contact through the normal dispatch path,
// fetching a fresh campaign definition/scenario since the durable retry
// workflow may fire long after the original poll cycle. Bound as the
// RedialFunc a Temporal worker registers for retryworkflow.Activities.
func (r *Runner) Redial(ctx context.Context, params retryworkflow.RetryParams) error {
	ctx, span := r.tracer.Start(ctx, "campaign.Redial", trace.WithAttributes(
		attribute.String("campaign_id", params.CampaignID),
		attribute.String("contact_id", params.ContactID),
	))
	defer span.End()

	def, err := r.persistence.FetchCampaign(ctx, params.CampaignID)
	if err != nil {
		return WrapError("Redial", params.CampaignID, err)
	}
	scn, err := r.scenarioForCampaign(def)
	if err != nil {
		return WrapError("Redial", params.CampaignID, err)
	}
	r.dispatch(ctx, def, params.Contact, scn, r.logger.With("campaign_id", params.CampaignID))
	return nil
}

func (r *Runner) publish(ctx context.Context, ev callcontroller.FinalizedEvent, logger *o11y.Logger) {
	payload := eventbus.Event{
		RowID:              ev.RowID,
		CampaignID:         ev.CampaignID,
		ContactID:          ev.ContactID,
		CallID:             ev.CallID,
		FinalStatus:        string(ev.FinalStatus),
		QualificationScore: ev.QualificationScore,
	}
	if err := r.bus.Publish(ctx, eventbus.SubjectCallFinalized, payload); err != nil {
		logger.Warn(ctx, "publish call.finalized failed", "error", err)
	}
	if ev.FinalStatus == schema.FinalStatusLead {
		if err := r.bus.Publish(ctx, eventbus.SubjectCallLead, payload); err != nil {
			logger.Warn(ctx, "publish call.lead failed", "error", err)
		}
	}
}
