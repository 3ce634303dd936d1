package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStatus        = "status"
	attrOperation     = "operation"
	attrService       = "service"
	attrTool          = "tool"
	attrAccountDomain = "account_domain"
	attrAuthenticated = "authenticated"
)

// Metrics records calendar client and MCP tool metrics. A nil *Metrics, or
// one returned by a disabled Provider, records nothing.
type Metrics struct {
	// Calendar API metrics
	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram
	batchItems                metric.Int64Histogram

	// Service lifecycle metrics
	authTransitionsTotal metric.Int64Counter
	bootstrapTotal       metric.Int64Counter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.calendarOperationsTotal, err = meter.Int64Counter(
		"calendar_api_operations_total",
		metric.WithDescription("Total number of calendar API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operations_total counter: %w", err)
	}

	m.calendarOperationDuration, err = meter.Float64Histogram(
		"calendar_api_operation_duration_seconds",
		metric.WithDescription("Calendar API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operation_duration_seconds histogram: %w", err)
	}

	m.batchItems, err = meter.Int64Histogram(
		"calendar_batch_items",
		metric.WithDescription("Number of requests sent in one calendar batch"),
		metric.WithUnit("{request}"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_batch_items histogram: %w", err)
	}

	m.authTransitionsTotal, err = meter.Int64Counter(
		"calendar_auth_transitions_total",
		metric.WithDescription("Total number of sign-in state changes"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_auth_transitions_total counter: %w", err)
	}

	m.bootstrapTotal, err = meter.Int64Counter(
		"calendar_bootstrap_total",
		metric.WithDescription("Total number of calendar provider bootstrap attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_bootstrap_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordCalendarOperation records one calendar API operation.
//
// Parameters:
//   - operation: get, list, create, update, delete or bulk
//   - status: "success" or "error"
//   - duration: time taken including the whole batch round trip
func (m *Metrics) RecordCalendarOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.calendarOperationsTotal == nil || m.calendarOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, ServiceCalendar),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.calendarOperationsTotal.Add(ctx, 1, attrs)
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordBatchItems records the number of requests queued into one batch.
func (m *Metrics) RecordBatchItems(ctx context.Context, operation string, items int) {
	if m == nil || m.batchItems == nil {
		return
	}

	m.batchItems.Record(ctx, int64(items), metric.WithAttributes(
		attribute.String(attrOperation, operation),
	))
}

// RecordAuthTransition records a change of the sign-in state.
func (m *Metrics) RecordAuthTransition(ctx context.Context, signedIn bool) {
	if m == nil || m.authTransitionsTotal == nil {
		return
	}

	m.authTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAuthenticated, strconv.FormatBool(signedIn)),
	))
}

// RecordBootstrap records a provider bootstrap attempt with its status.
func (m *Metrics) RecordBootstrap(ctx context.Context, status string) {
	if m == nil || m.bootstrapTotal == nil {
		return
	}

	m.bootstrapTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStatus, status),
	))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithAccount(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithAccount records an MCP tool invocation. The
// account's domain is added as a label only when detailed labels are enabled.
func (m *Metrics) RecordToolInvocationWithAccount(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccountDomain, ExtractUserDomain(account)))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
