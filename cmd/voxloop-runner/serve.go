package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/voxloop/voxloop/pkg/campaign"
	"github.com/voxloop/voxloop/pkg/config"
	"github.com/voxloop/voxloop/pkg/o11y"
)

var (
	flagCampaigns   []string
	flagObjectionDir string
	flagMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the Campaign Runner until interrupted",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&flagCampaigns, "campaigns", nil, "campaign ids to poll (required)")
	serveCmd.Flags().StringVar(&flagObjectionDir, "objection-dir", "./objections", "directory of per-theme objection JSON files")
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")
	_ = serveCmd.MarkFlagRequired("campaigns")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configName, configPaths)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logOpts := []o11y.LogOption{o11y.WithLevel(cfg.Logging.Level)}
	if cfg.Logging.JSON {
		logOpts = append(logOpts, o11y.WithJSON())
	}
	log := o11y.NewLogger(logOpts...)
	defer log.Sync()

	metrics, meterProvider, err := o11y.NewMetrics("voxloop-runner")
	if err != nil {
		return fmt.Errorf("build metrics: %w", err)
	}

	metricsServer := &http.Server{Addr: flagMetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server failed", "error", err)
		}
	}()
	defer metricsServer.Shutdown(context.Background())
	defer meterProvider.Shutdown(context.Background())

	persistence, closePersistence, err := buildPersistence(cfg)
	if err != nil {
		return fmt.Errorf("build persistence: %w", err)
	}
	defer closePersistence()

	sw, err := buildSoftswitch(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build softswitch client: %w", err)
	}
	defer sw.Close()

	gw := buildSpeech(cfg)

	objections, err := buildObjections(cfg, flagObjectionDir)
	if err != nil {
		return fmt.Errorf("build objection registry: %w", err)
	}

	bus := buildEventBus(cfg)
	defer bus.Close()

	retryExec, temporalClient, err := buildRetryExecutor(cfg)
	if err != nil {
		return fmt.Errorf("build retry executor: %w", err)
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	ctrl := buildController(sw, gw, persistence, objections, cfg, log, metrics)
	sem := campaign.NewChanSemaphore(cfg.Campaign.MaxConcurrentCalls)
	runner := buildRunner(persistence, ctrl, sem, cfg, flagCampaigns, bus, retryExec, log, metrics)
	ctrl.SetOnFinalized(runner.HandleFinalized)

	var workerStop func()
	if retryExec != nil {
		stopWorker, err := startRetryWorker(temporalClient, cfg, runner, log)
		if err != nil {
			return fmt.Errorf("start retry worker: %w", err)
		}
		workerStop = stopWorker
	}
	if workerStop != nil {
		defer workerStop()
	}

	log.Info(ctx, "voxloop-runner starting", "campaigns", flagCampaigns, "metrics_addr", flagMetricsAddr)
	return runner.Run(ctx)
}
