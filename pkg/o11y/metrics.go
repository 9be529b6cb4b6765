package o11y

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
)

// Metrics bundles the counters and histograms shared by the Call Controller
// and Campaign Runner. Built once per process and passed down by
// construction, matching the teacher's no-globals rule (§9 DESIGN NOTES).
type Metrics struct {
	meter metric.Meter

	CallsStarted      metric.Int64Counter
	CallsFinalized    metric.Int64Counter
	BargeIns          metric.Int64Counter
	Retries           metric.Int64Counter
	PhaseDuration      metric.Float64Histogram
	ActiveCalls        metric.Int64UpDownCounter
	QualificationScore metric.Float64Histogram
}

// NewMetrics wires an OpenTelemetry MeterProvider exporting to Prometheus,
// adapted from pkg/monitoring/providers/opentelemetry.Provider.
func NewMetrics(serviceName string) (*Metrics, *sdkmetric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("o11y: create prometheus exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("o11y: build resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("voxloop")

	m := &Metrics{meter: meter}
	if m.CallsStarted, err = meter.Int64Counter("voxloop_calls_started_total"); err != nil {
		return nil, nil, err
	}
	if m.CallsFinalized, err = meter.Int64Counter("voxloop_calls_finalized_total"); err != nil {
		return nil, nil, err
	}
	if m.BargeIns, err = meter.Int64Counter("voxloop_barge_ins_total"); err != nil {
		return nil, nil, err
	}
	if m.Retries, err = meter.Int64Counter("voxloop_retries_scheduled_total"); err != nil {
		return nil, nil, err
	}
	if m.PhaseDuration, err = meter.Float64Histogram("voxloop_phase_duration_seconds"); err != nil {
		return nil, nil, err
	}
	if m.ActiveCalls, err = meter.Int64UpDownCounter("voxloop_active_calls"); err != nil {
		return nil, nil, err
	}
	if m.QualificationScore, err = meter.Float64Histogram("voxloop_qualification_score"); err != nil {
		return nil, nil, err
	}

	return m, mp, nil
}

// NoopMetrics returns a Metrics whose instruments are backed by the global
// no-op MeterProvider; used in unit tests that don't need a Prometheus
// registry.
func NoopMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter("voxloop-noop")
	m := &Metrics{meter: meter}
	m.CallsStarted, _ = meter.Int64Counter("voxloop_calls_started_total")
	m.CallsFinalized, _ = meter.Int64Counter("voxloop_calls_finalized_total")
	m.BargeIns, _ = meter.Int64Counter("voxloop_barge_ins_total")
	m.Retries, _ = meter.Int64Counter("voxloop_retries_scheduled_total")
	m.PhaseDuration, _ = meter.Float64Histogram("voxloop_phase_duration_seconds")
	m.ActiveCalls, _ = meter.Int64UpDownCounter("voxloop_active_calls")
	m.QualificationScore, _ = meter.Float64Histogram("voxloop_qualification_score")
	return m
}

// Tracer returns the named tracer used for the Call Controller's one span
// per call and the Campaign Runner's poll/dispatch/finalize/redial spans.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
