package instrumentation

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestProvider(t *testing.T) (*Provider, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider, ctx
}

// newReaderMetrics returns Metrics backed by a manual reader so tests can
// inspect what was recorded.
func newReaderMetrics(t *testing.T, detailed bool) (*Metrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailed)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is not an int64 sum", m.Name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordCalendarOperation(t *testing.T) {
	provider, ctx := newTestProvider(t)

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// Should not panic
	metrics.RecordCalendarOperation(ctx, OperationList, StatusSuccess, 200*time.Millisecond)
	metrics.RecordCalendarOperation(ctx, OperationCreate, StatusError, 500*time.Millisecond)
}

func TestMetrics_CalendarOperationCounted(t *testing.T) {
	m, reader := newReaderMetrics(t, false)
	ctx := context.Background()

	m.RecordCalendarOperation(ctx, OperationBulk, StatusSuccess, time.Second)
	m.RecordCalendarOperation(ctx, OperationBulk, StatusError, time.Second)
	m.RecordBatchItems(ctx, OperationBulk, 3)

	got := collect(t, reader)
	ops, ok := got["calendar_api_operations_total"]
	if !ok {
		t.Fatal("expected calendar_api_operations_total to be recorded")
	}
	if v := sumValue(t, ops); v != 2 {
		t.Errorf("expected 2 operations, got %d", v)
	}
	if _, ok := got["calendar_batch_items"]; !ok {
		t.Error("expected calendar_batch_items to be recorded")
	}
}

func TestMetrics_RecordAuthTransition(t *testing.T) {
	m, reader := newReaderMetrics(t, false)
	ctx := context.Background()

	m.RecordAuthTransition(ctx, true)
	m.RecordAuthTransition(ctx, false)

	got := collect(t, reader)
	if v := sumValue(t, got["calendar_auth_transitions_total"]); v != 2 {
		t.Errorf("expected 2 transitions, got %d", v)
	}
}

func TestMetrics_RecordBootstrap(t *testing.T) {
	m, reader := newReaderMetrics(t, false)

	m.RecordBootstrap(context.Background(), StatusError)

	got := collect(t, reader)
	if v := sumValue(t, got["calendar_bootstrap_total"]); v != 1 {
		t.Errorf("expected 1 bootstrap attempt, got %d", v)
	}
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	provider, ctx := newTestProvider(t)

	metrics := provider.Metrics()

	// Should not panic
	metrics.RecordToolInvocation(ctx, "calendar_list_events", StatusSuccess, 100*time.Millisecond)
	metrics.RecordToolInvocation(ctx, "calendar_create_events", StatusError, 50*time.Millisecond)
}

func TestMetrics_RecordToolInvocationWithAccount_DetailedLabels(t *testing.T) {
	m, reader := newReaderMetrics(t, true)

	m.RecordToolInvocationWithAccount(context.Background(), "calendar_get_event", StatusSuccess, "jane@example.com", time.Millisecond)

	got := collect(t, reader)
	sum, ok := got["mcp_tool_invocations_total"].Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatal("expected one tool invocation data point")
	}
	domain, ok := sum.DataPoints[0].Attributes.Value(attrAccountDomain)
	if !ok {
		t.Fatal("expected account_domain attribute with detailed labels")
	}
	if domain.AsString() != "example.com" {
		t.Errorf("expected account_domain 'example.com', got %q", domain.AsString())
	}
}

func TestMetrics_RecordToolInvocationWithAccount_NoDetailedLabels(t *testing.T) {
	m, reader := newReaderMetrics(t, false)

	m.RecordToolInvocationWithAccount(context.Background(), "calendar_get_event", StatusSuccess, "jane@example.com", time.Millisecond)

	got := collect(t, reader)
	sum := got["mcp_tool_invocations_total"].Data.(metricdata.Sum[int64])
	if _, ok := sum.DataPoints[0].Attributes.Value(attrAccountDomain); ok {
		t.Error("expected no account_domain attribute without detailed labels")
	}
}

func TestMetrics_NoOp_WhenDisabled(t *testing.T) {
	ctx := context.Background()

	provider, err := NewProvider(ctx, Config{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	metrics := provider.Metrics()

	// None of these should panic
	metrics.RecordCalendarOperation(ctx, OperationGet, StatusSuccess, time.Second)
	metrics.RecordBatchItems(ctx, OperationCreate, 10)
	metrics.RecordAuthTransition(ctx, true)
	metrics.RecordBootstrap(ctx, StatusSuccess)
	metrics.RecordToolInvocation(ctx, "tool", StatusSuccess, time.Second)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var metrics *Metrics
	ctx := context.Background()

	// A nil recorder is valid and records nothing
	metrics.RecordCalendarOperation(ctx, OperationGet, StatusSuccess, time.Second)
	metrics.RecordBatchItems(ctx, OperationCreate, 10)
	metrics.RecordAuthTransition(ctx, false)
	metrics.RecordBootstrap(ctx, StatusError)
	metrics.RecordToolInvocationWithAccount(ctx, "tool", StatusError, "a@b.c", time.Second)
}
