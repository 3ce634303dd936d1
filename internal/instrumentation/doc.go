// Package instrumentation provides OpenTelemetry instrumentation for the
// gcalkit calendar client and its MCP server.
//
// # Metrics
//
// Calendar API Metrics:
//   - calendar_api_operations_total: Counter of calendar operations by operation and status
//   - calendar_api_operation_duration_seconds: Histogram of calendar operation durations
//   - calendar_batch_items: Histogram of requests per batch
//
// Service Metrics:
//   - calendar_auth_transitions_total: Counter of sign-in state changes
//   - calendar_bootstrap_total: Counter of provider bootstrap attempts by status
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>) and calendar
// operations (google.calendar.<operation>).
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: gcalkit)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	svc := calendar.NewService(cfg, google.Load,
//		calendar.WithMetrics(provider.Metrics()))
package instrumentation
