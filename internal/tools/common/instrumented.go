package common

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/gcalkit/internal/instrumentation"
	"github.com/teemow/gcalkit/internal/logging"
	"github.com/teemow/gcalkit/internal/server"
)

// ToolHandler is the signature of an MCP tool handler
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, metrics and a
// debug log line. A result flagged IsError counts as a failed invocation.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		account := sc.Account()
		ctx, span := instrumentation.StartToolSpan(ctx, toolName,
			instrumentation.NewSpanAttributeBuilder().WithAccount(account).Build()...)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}

		span.SetAttributes(attribute.String(instrumentation.SpanAttrStatus, status))
		instrumentation.EndSpan(span, err)
		sc.Metrics().RecordToolInvocationWithAccount(ctx, toolName, status, account, duration)

		logger := logging.WithTool(sc.Logger(), toolName)
		if err != nil {
			logger.Warn("tool invocation failed", logging.Err(err), slog.Duration(logging.KeyDuration, duration),
				slog.String("trace", instrumentation.SpanContextString(ctx)))
		} else {
			logger.Debug("tool invocation completed", logging.Status(status), slog.Duration(logging.KeyDuration, duration))
		}

		return result, err
	}
}
