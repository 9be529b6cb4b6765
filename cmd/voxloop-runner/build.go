package main

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"

	"github.com/voxloop/voxloop/pkg/callcontroller"
	"github.com/voxloop/voxloop/pkg/campaign"
	"github.com/voxloop/voxloop/pkg/campaign/eventbus"
	"github.com/voxloop/voxloop/pkg/campaign/retryworkflow"
	"github.com/voxloop/voxloop/pkg/config"
	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/objection"
	persistenceiface "github.com/voxloop/voxloop/pkg/persistence/iface"
	"github.com/voxloop/voxloop/pkg/persistence/providers/postgres"
	redisqueue "github.com/voxloop/voxloop/pkg/persistence/providers/redis"
	"github.com/voxloop/voxloop/pkg/softswitch/providers/esl"
	"github.com/voxloop/voxloop/pkg/speech"
	"github.com/voxloop/voxloop/pkg/speech/providers/batch"
	"github.com/voxloop/voxloop/pkg/speech/providers/streaming"
)

// buildPersistence opens the canonical Postgres store and, when a Redis
// address is configured, wraps it with the sorted-set due-contact queue
// (§6: "the Redis provider wraps a Store").
func buildPersistence(cfg *config.Config) (persistenceiface.Port, func() error, error) {
	store, err := postgres.Open(cfg.Persistence.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.Persistence.RedisAddr == "" {
		return store, store.Close, nil
	}

	rdb := redisv9.NewClient(&redisv9.Options{Addr: cfg.Persistence.RedisAddr})
	queue := redisqueue.New(rdb, store)
	closeFn := func() error {
		_ = rdb.Close()
		return store.Close()
	}
	return queue, closeFn, nil
}

func buildSoftswitch(ctx context.Context, cfg *config.Config, log *o11y.Logger) (*esl.Client, error) {
	eslCfg := esl.NewConfig(cfg.Softswitch.EventHost, cfg.Softswitch.Password)
	if cfg.Softswitch.EventPort != 0 {
		eslCfg.Port = cfg.Softswitch.EventPort
	}
	return esl.New(ctx, eslCfg, log)
}

func buildSpeech(cfg *config.Config) *speech.Gateway {
	transcriber := batch.New(batch.Config{Endpoint: cfg.Speech.BatchEndpoint})
	streamGateway := streaming.New(streaming.Config{Endpoint: cfg.Speech.StreamEndpoint})
	return speech.New(transcriber, streamGateway)
}

func buildObjections(cfg *config.Config, themeDir string) (*objection.Registry, error) {
	loader := objection.DirectoryLoader(themeDir)
	return objection.NewRegistry(loader, cfg.DefaultObjectionTheme)
}

func buildEventBus(cfg *config.Config) eventbus.Bus {
	if cfg.NATSUrl == "" {
		return eventbus.Noop{}
	}
	bus, err := eventbus.Dial(cfg.NATSUrl)
	if err != nil {
		return eventbus.Noop{}
	}
	return bus
}

func buildRetryExecutor(cfg *config.Config) (*retryworkflow.Executor, client.Client, error) {
	if cfg.Temporal.HostPort == "" {
		return nil, nil, nil
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial temporal: %w", err)
	}
	exec, err := retryworkflow.NewExecutor(retryworkflow.Config{
		Client:    c,
		TaskQueue: cfg.Temporal.TaskQueue,
	})
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return exec, c, nil
}

// retryPoliciesFromConfig falls back to the §7 default retry policy
// (NoAnswer +30m, Busy +5m, both capped at 2 attempts) when the operator
// hasn't overridden campaign.retry.
func retryPoliciesFromConfig(cfg *config.Config) map[string]config.RetryPolicy {
	if len(cfg.Campaign.Retry) > 0 {
		return cfg.Campaign.Retry
	}
	return map[string]config.RetryPolicy{
		"NoAnswer": {Delay: 30 * time.Minute, MaxAttempts: 2},
		"Busy":     {Delay: 5 * time.Minute, MaxAttempts: 2},
	}
}

func buildController(sw *esl.Client, gw *speech.Gateway, persistence persistenceiface.Port, objections *objection.Registry, cfg *config.Config, log *o11y.Logger, metrics *o11y.Metrics) *callcontroller.Controller {
	return callcontroller.NewController(
		callcontroller.WithSoftswitch(sw),
		callcontroller.WithSpeech(gw),
		callcontroller.WithPersistence(persistence),
		callcontroller.WithObjections(objections),
		callcontroller.WithAMDVocabulary(defaultAMDVocabulary()),
		callcontroller.WithIntentVocabulary(defaultIntentVocabulary()),
		callcontroller.WithTimeouts(cfg.Timeouts),
		callcontroller.WithQualificationThreshold(cfg.QualificationThreshold),
		callcontroller.WithLogger(log),
		callcontroller.WithMetrics(metrics),
	)
}

func buildRunner(persistence persistenceiface.Port, ctrl *callcontroller.Controller, sem callcontroller.Semaphore, cfg *config.Config, campaignIDs []string, bus eventbus.Bus, retryExec *retryworkflow.Executor, log *o11y.Logger, metrics *o11y.Metrics) *campaign.Runner {
	loc, err := time.LoadLocation(cfg.Campaign.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return campaign.NewRunner(persistence, ctrl, sem,
		campaign.WithCampaigns(campaignIDs...),
		campaign.WithLocation(loc),
		campaign.WithPollInterval(cfg.Campaign.PollInterval),
		campaign.WithBatchSize(cfg.Campaign.BatchSize),
		campaign.WithRetryPolicies(retryPoliciesFromConfig(cfg)),
		campaign.WithRetryExecutor(retryExec),
		campaign.WithEventBus(bus),
		campaign.WithLogger(log),
		campaign.WithMetrics(metrics),
	)
}
