// Package server provides the MCP server context and the optional metrics
// listener of gcalkit.
//
// ServerContext holds the calendar.Service shared by all MCP tools together
// with the metrics recorder their instrumented handlers report to. Shutdown
// cancels the context and closes the calendar service.
//
// MetricsServer exposes the Prometheus registry on /metrics. With a
// HealthChecker it also serves /healthz, /readyz and /healthz/detailed,
// which report whether the calendar provider has been bootstrapped and
// whether the account is signed in.
package server
