package main

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/voxloop/voxloop/pkg/campaign"
	"github.com/voxloop/voxloop/pkg/campaign/retryworkflow"
	"github.com/voxloop/voxloop/pkg/config"
	"github.com/voxloop/voxloop/pkg/o11y"
)

// startRetryWorker registers the durable retry workflow/activity on a
// Temporal worker bound to runner's redial path, and starts it in the
// background. The returned func stops the worker.
func startRetryWorker(c client.Client, cfg *config.Config, runner *campaign.Runner, log *o11y.Logger) (func(), error) {
	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = "voxloop-retries"
	}

	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(retryworkflow.RetryWorkflow)

	activities := &retryworkflow.Activities{Redial: runner.Redial}
	w.RegisterActivityWithOptions(activities.RedialActivity, activity.RegisterOptions{
		Name: retryworkflow.RedialActivityName,
	})

	if err := w.Start(); err != nil {
		return nil, err
	}
	log.Info(context.Background(), "temporal retry worker started", "task_queue", taskQueue)
	return w.Stop, nil
}
