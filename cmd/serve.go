package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/gcalkit/internal/calendar"
	"github.com/teemow/gcalkit/internal/instrumentation"
	"github.com/teemow/gcalkit/internal/resources"
	"github.com/teemow/gcalkit/internal/server"
	"github.com/teemow/gcalkit/internal/tools/calendar_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: false)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		yolo           bool
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server over stdio to provide
Google Calendar tools for AI assistants.

The server uses the cached OAuth token of --account. Sign in first with
"gcalkit auth login"; the calendar_auth_status tool reports the current state.

Safety Mode:
  By default, the server operates in read-only mode, providing only tools that
  read events. Use --yolo to enable tools that create, update and delete events.

Metrics:
  --metrics-enabled starts a Prometheus endpoint (/metrics, /healthz, /readyz)
  on --metrics-addr. Can also use METRICS_ENABLED and METRICS_ADDR env vars.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			loadMetricsEnvVars(cmd, &metricsConfig)

			return runServe(cmd.Context(), resolveConfig(cmd, globals), yolo, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (create, update and delete events). Default is read-only mode.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", false, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadMetricsEnvVars applies METRICS_ENABLED and METRICS_ADDR unless the
// matching flag was set explicitly
func loadMetricsEnvVars(cmd *cobra.Command, config *MetricsConfig) {
	if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "true" {
		config.Enabled = true
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.Addr = addr
		}
	}
}

func runServe(ctx context.Context, cfg calendar.Config, yolo bool, metricsConfig MetricsConfig) error {
	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("error during instrumentation shutdown", "error", err)
		}
	}()

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}

	svc := newCalendarService(cfg, metrics)
	serverContext := server.NewServerContext(ctx, svc,
		server.WithMetrics(metrics),
		server.WithLogger(slog.Default()),
		server.WithAccount(cfg.Account),
	)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			slog.Warn("error during server context shutdown", "error", err)
		}
	}()

	health := server.NewHealthChecker(serverContext)
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err := startMetricsServer(metricsConfig, provider, health)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("error during metrics server shutdown", "error", err)
			}
		}()
	}

	// Note: mcp.Implementation has Title field but WithTitle() ServerOption not available in v0.43.0
	mcpSrv := mcpserver.NewMCPServer("gcalkit", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	// readOnly is the inverse of yolo
	readOnly := !yolo
	if readOnly {
		slog.Info("starting server in read-only mode (use --yolo to enable write operations)")
	} else {
		slog.Info("starting server with write operations enabled (--yolo flag is set)")
	}

	if err := calendar_tools.RegisterCalendarTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}
	if err := resources.RegisterCalendarResources(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register calendar resources: %w", err)
	}

	err = runStdioServer(ctx, mcpSrv)
	// Stop reporting ready while the deferred shutdowns run
	health.SetReady(false)
	return err
}

// startMetricsServer starts the metrics server and waits until it listens
func startMetricsServer(config MetricsConfig, provider *instrumentation.Provider, health *server.HealthChecker) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    config.Addr,
		Enabled:                 true,
		InstrumentationProvider: provider,
		Health:                  health,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	// ListenAndServe fails fast on a bad address; give it a moment to do so
	select {
	case err := <-metricsErr:
		if err != nil {
			return nil, fmt.Errorf("metrics server failed to start: %w", err)
		}
	case <-time.After(200 * time.Millisecond):
	}

	slog.Info("metrics server started", "addr", metricsServer.Addr())
	return metricsServer, nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
