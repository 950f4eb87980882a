package refresh

import (
	"context"

	"github.com/zeromicro/go-zero/core/metric"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	metricNamespace = "refresh"
	tracerName      = "nof0-refresh/refresh"
)

var (
	metricJobs = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: metricNamespace,
		Subsystem: "dispatch",
		Name:      "jobs_total",
		Help:      "fetch jobs handed to the worker pool, by outcome",
		Labels:    []string{"timeframe", "result"},
	})
	metricCallbacks = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: metricNamespace,
		Subsystem: "callback",
		Name:      "total",
		Help:      "terminal callbacks received, by status and outcome",
		Labels:    []string{"status", "outcome"},
	})
	metricRuns = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: metricNamespace,
		Subsystem: "run",
		Name:      "completed_total",
		Help:      "runs that reached SUCCESS",
		Labels:    []string{"timeframe", "source"},
	})
	metricMismatch = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: metricNamespace,
		Subsystem: "run",
		Name:      "counter_mismatch_total",
		Help:      "completed runs whose terminal counters do not add up to enqueued",
		Labels:    []string{"timeframe"},
	})
	metricNotify = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: metricNamespace,
		Subsystem: "chain",
		Name:      "notifications_total",
		Help:      "analysis notifications emitted, by outcome",
		Labels:    []string{"timeframe", "result"},
	})
)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
