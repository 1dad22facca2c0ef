package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rahul/foundry/internal/usage"
)

const (
	metricStageCalls    = "foundry.stage.calls"
	metricStageDuration = "foundry.stage.duration.seconds"
	metricTokens        = "foundry.tokens"
	metricRetries       = "foundry.retries"

	attrStage     = "stage"
	attrStatus    = "status"
	attrDirection = "direction"
	attrKind      = "kind"
)

// stageBuckets covers quick structured calls up to long grounded research.
var stageBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Metrics holds the OTel instruments for stage calls. A nil *Metrics is a no-op.
type Metrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	tokens   metric.Int64Counter
	retries  metric.Int64Counter
}

func NewMetrics(mt metric.Meter) (*Metrics, error) {
	calls, err := mt.Int64Counter(metricStageCalls,
		metric.WithDescription("Completed stage calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStageCalls, err)
	}

	duration, err := mt.Float64Histogram(metricStageDuration,
		metric.WithDescription("Stage duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStageDuration, err)
	}

	tokens, err := mt.Int64Counter(metricTokens,
		metric.WithDescription("Model tokens consumed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTokens, err)
	}

	retries, err := mt.Int64Counter(metricRetries,
		metric.WithDescription("Retried or downgraded model calls"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRetries, err)
	}

	return &Metrics{calls: calls, duration: duration, tokens: tokens, retries: retries}, nil
}

// RecordStage records a finished stage with its status and duration.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrStatus, status),
	)
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

// AddTokens records input and output tokens for a stage.
func (m *Metrics) AddTokens(ctx context.Context, stage string, u usage.Usage) {
	if m == nil {
		return
	}
	m.tokens.Add(ctx, int64(u.Input), metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrDirection, "input"),
	))
	m.tokens.Add(ctx, int64(u.Output), metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrDirection, "output"),
	))
}

// RecordRetry counts a backoff retry or a tier fallback.
func (m *Metrics) RecordRetry(ctx context.Context, stage, kind string) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrKind, kind),
	))
}
