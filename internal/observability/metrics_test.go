package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rahul/foundry/internal/usage"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordStage(ctx, "Problem Research", "ok", 2*time.Second)
	m.RecordStage(ctx, "Problem Research", "error", time.Second)
	m.AddTokens(ctx, "Problem Research", usage.Usage{Input: 100, Output: 40, Total: 140})
	m.RecordRetry(ctx, "Problem Research", "fallback")

	got := collect(t, reader)

	calls, ok := got[metricStageCalls].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, calls.DataPoints, 2)

	tokens, ok := got[metricTokens].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range tokens.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(140), total)

	hist, ok := got[metricStageDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)

	retries, ok := got[metricRetries].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, retries.DataPoints, 1)
	assert.Equal(t, int64(1), retries.DataPoints[0].Value)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordStage(context.Background(), "s", "ok", time.Second)
		m.AddTokens(context.Background(), "s", usage.Usage{Input: 1})
	})
}

func TestPrometheusMeter(t *testing.T) {
	handler, meter, err := PrometheusMeter()
	require.NoError(t, err)
	m, err := NewMetrics(meter)
	require.NoError(t, err)
	m.RecordRetry(context.Background(), "Brand Naming", "backoff")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "foundry_retries"), rec.Body.String())
}
