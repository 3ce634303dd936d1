package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/gcalkit/internal/calendar"
	"github.com/teemow/gcalkit/internal/instrumentation"
)

// ServerContext holds what the MCP tools share: the calendar service and
// the instrumentation recorders.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	calendar *calendar.Service
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
	account  string
	mu       sync.RWMutex
	shutdown bool
}

// Option configures a ServerContext
type Option func(*ServerContext)

// WithMetrics sets the metrics recorder used by instrumented tool handlers
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(sc *ServerContext) { sc.metrics = m }
}

// WithLogger sets the server logger
func WithLogger(l *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = l }
}

// WithAccount records the account name the calendar service is bound to
func WithAccount(account string) Option {
	return func(sc *ServerContext) { sc.account = account }
}

// NewServerContext creates a new server context around svc
func NewServerContext(ctx context.Context, svc *calendar.Service, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		calendar: svc,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Calendar returns the calendar service
func (sc *ServerContext) Calendar() *calendar.Service {
	return sc.calendar
}

// Metrics returns the metrics recorder, or nil if none is configured
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Logger returns the server logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Account returns the configured account name
func (sc *ServerContext) Account() string {
	return sc.account
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and closes the calendar service
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	if sc.calendar != nil {
		return sc.calendar.Close()
	}
	return nil
}
