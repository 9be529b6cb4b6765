// Package retryworkflow schedules §6/§9 call retries as durable Temporal
// workflows instead of a bare "not_before" row a poller has to remember to
// re-check: a retry surviving a Campaign Runner restart is then a property
// of the workflow engine, not of the poll loop. Adapted from the teacher's
// workflow/providers/temporal executor wrapper.
package retryworkflow

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	persistenceiface "github.com/voxloop/voxloop/pkg/persistence/iface"
)

// Config configures an Executor. Client has no usable default; TaskQueue
// and DefaultTimeout fall back to voxloop's conventions.
type Config struct {
	Client         client.Client
	TaskQueue      string
	DefaultTimeout time.Duration
}

// Executor starts and supervises retry workflows against one Temporal
// client.
type Executor struct {
	client    client.Client
	taskQueue string
	timeout   time.Duration
}

// NewExecutor builds an Executor. Client is required; a retry scheduler
// with nowhere to send workflows is a configuration error, not a runtime
// one (§7 configuration/scenario errors are rejected at load time).
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("retryworkflow: client is required")
	}
	taskQueue := cfg.TaskQueue
	if taskQueue == "" {
		taskQueue = "voxloop-retries"
	}
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Executor{client: cfg.Client, taskQueue: taskQueue, timeout: timeout}, nil
}

// RetryParams is both the workflow input and the activity input: the full
// context a redial needs to re-dispatch one contact.
type RetryParams struct {
	RowID        string
	CampaignID   string
	ContactID    string
	Contact      persistenceiface.Contact
	NotBefore    time.Time
	AttemptsLeft int
}

// ScheduleRetry starts one durable retry workflow, keyed so a duplicate
// ScheduleRetry for the same row is a harmless no-op (Temporal rejects a
// second start with the same workflow id while the first is running).
func (e *Executor) ScheduleRetry(ctx context.Context, params RetryParams) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:                       "voxloop-retry-" + params.RowID,
		TaskQueue:                e.taskQueue,
		WorkflowExecutionTimeout: e.timeout,
		WorkflowIDReusePolicy:    0,
	}
	return e.client.ExecuteWorkflow(ctx, opts, RetryWorkflow, params)
}

// RetryWorkflow sleeps until params.NotBefore, then executes the redial
// activity exactly once. Sleeping inside the workflow (rather than the
// caller blocking on time.Sleep) is what makes the delay durable across a
// Campaign Runner restart.
func RetryWorkflow(ctx workflow.Context, params RetryParams) error {
	ao := workflow.ActivityOptions{StartToCloseTimeout: 2 * time.Minute}
	ctx = workflow.WithActivityOptions(ctx, ao)

	if delay := params.NotBefore.Sub(workflow.Now(ctx)); delay > 0 {
		if err := workflow.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return workflow.ExecuteActivity(ctx, RedialActivityName, params).Get(ctx, nil)
}

// RedialActivityName is the activity RetryWorkflow invokes by name, so the
// workflow definition never needs a bound receiver.
const RedialActivityName = "RedialActivity"

// RedialFunc re-dispatches one contact through the Campaign Runner's
// normal dispatch path. Bound by the process wiring the Temporal worker,
// not by this package.
type RedialFunc func(ctx context.Context, params RetryParams) error

// Activities bundles the activity implementations a worker registers,
// closing over the Campaign Runner's redial callback.
type Activities struct {
	Redial RedialFunc
}

// RedialActivity is the activity implementation, registered under
// RedialActivityName via worker.RegisterActivityWithOptions.
func (a *Activities) RedialActivity(ctx context.Context, params RetryParams) error {
	return a.Redial(ctx, params)
}
