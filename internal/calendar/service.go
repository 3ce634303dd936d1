package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/gcalkit/internal/instrumentation"
	"github.com/teemow/gcalkit/internal/logging"
)

type readiness int

const (
	stateUninitialized readiness = iota
	stateInitializing
	stateReady
)

func (r readiness) String() string {
	switch r {
	case stateInitializing:
		return "initializing"
	case stateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Service is the entry point of the library. It loads and initializes the
// provider on first use, tracks the authentication state reported by the
// provider and delegates event operations to an EventAPI.
type Service struct {
	config  Config
	load    Loader
	events  *EventAPI
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu       sync.Mutex
	state    readiness
	provider Provider
	stopAuth func()
	closed   bool

	bootstrap     singleflight.Group
	authenticated atomic.Bool
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger used by the service and its EventAPI
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// NewService creates a Service. Nothing is loaded until the first call that
// needs the provider.
func NewService(cfg Config, load Loader, opts ...Option) *Service {
	s := &Service{
		config: cfg,
		load:   load,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = NewEventAPI(s.logger, s.metrics)
	s.logger = logging.WithService(s.logger, instrumentation.ServiceCalendar)
	return s
}

// SignIn signs the user in. It returns immediately if already signed in.
func (s *Service) SignIn(ctx context.Context) error {
	if s.authenticated.Load() {
		return nil
	}
	p, err := s.ready(ctx)
	if err != nil {
		return err
	}
	// Bootstrap may have restored a cached session
	if p.Auth().IsSignedIn() {
		return nil
	}
	if err := p.Auth().SignIn(ctx); err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	return nil
}

// SignOut signs the user out and revokes the granted access. It returns
// immediately if not signed in.
func (s *Service) SignOut(ctx context.Context) error {
	if s.readiness() == stateReady && !s.authenticated.Load() {
		return nil
	}
	p, err := s.ready(ctx)
	if err != nil {
		return err
	}
	auth := p.Auth()
	if !auth.IsSignedIn() {
		return nil
	}
	if err := auth.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out failed: %w", err)
	}
	if err := auth.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect failed: %w", err)
	}
	return nil
}

// IsClientAuthenticated reports the provider's current sign-in state
func (s *Service) IsClientAuthenticated(ctx context.Context) (bool, error) {
	p, err := s.ready(ctx)
	if err != nil {
		return false, err
	}
	return p.Auth().IsSignedIn(), nil
}

// Subscription is a registered authentication listener
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops further notifications. It is safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(sub.cancel)
}

// ListenOnAuthenticationChanged registers fn for every future change of the
// sign-in state.
func (s *Service) ListenOnAuthenticationChanged(ctx context.Context, fn func(signedIn bool)) (*Subscription, error) {
	p, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return &Subscription{cancel: p.Auth().Listen(fn)}, nil
}

// GetEvent fetches a single event
func (s *Service) GetEvent(ctx context.Context, req GetRequest) (*calendar.Event, error) {
	p, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return s.events.GetEvent(ctx, p, req)
}

// GetEventsInRange lists events of a calendar within a time range
func (s *Service) GetEventsInRange(ctx context.Context, req RangeRequest) (*calendar.Events, error) {
	p, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return s.events.GetEventsInRange(ctx, p, req)
}

// CreateEvents inserts events in one batch
func (s *Service) CreateEvents(ctx context.Context, events []CalendarEvent) (*BatchResponse, error) {
	p, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return s.events.CreateEvents(ctx, p, events)
}

// UpdateEvents updates events in one batch
func (s *Service) UpdateEvents(ctx context.Context, events []CalendarEvent) (*BatchResponse, error) {
	p, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return s.events.UpdateEvents(ctx, p, events)
}

// DeleteEvents deletes events in one batch
func (s *Service) DeleteEvents(ctx context.Context, requests []DeleteRequest) (*BatchResponse, error) {
	p, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return s.events.DeleteEvents(ctx, p, requests)
}

// EventBulkRequests inserts, updates and deletes events in one batch
func (s *Service) EventBulkRequests(ctx context.Context, inserts, updates []CalendarEvent, deletes []DeleteRequest) (*BatchResponse, error) {
	p, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return s.events.EventBulkRequests(ctx, p, inserts, updates, deletes)
}

// Close releases the provider's auth subscription. The service cannot be
// used afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopAuth != nil {
		s.stopAuth()
		s.stopAuth = nil
	}
	s.closed = true
	s.provider = nil
	s.state = stateUninitialized
	return nil
}

// Ready reports whether the provider has been bootstrapped. It never
// triggers a bootstrap.
func (s *Service) Ready() bool {
	return s.readiness() == stateReady
}

// Authenticated returns the last sign-in state reported by the provider
// without bootstrapping it.
func (s *Service) Authenticated() bool {
	return s.authenticated.Load()
}

func (s *Service) readiness() readiness {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ready returns the live provider, bootstrapping it if needed. Concurrent
// callers during a bootstrap share its outcome.
func (s *Service) ready(ctx context.Context) (Provider, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	if s.state == stateReady {
		p := s.provider
		s.mu.Unlock()
		return p, nil
	}
	s.state = stateInitializing
	s.mu.Unlock()

	ch := s.bootstrap.DoChan("bootstrap", func() (interface{}, error) {
		return s.init(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Provider), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) init(ctx context.Context) (Provider, error) {
	// A caller that arrived just after a bootstrap finished may still
	// reach here.
	s.mu.Lock()
	if s.state == stateReady {
		p := s.provider
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	p, err := s.initProvider(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = stateUninitialized
		s.mu.Unlock()
		s.metrics.RecordBootstrap(ctx, instrumentation.StatusError)
		s.logger.Error("calendar provider bootstrap failed", logging.Err(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if s.stopAuth != nil {
			s.stopAuth()
			s.stopAuth = nil
		}
		return nil, ErrServiceClosed
	}
	s.provider = p
	s.state = stateReady
	s.metrics.RecordBootstrap(ctx, instrumentation.StatusSuccess)
	s.logger.Info("calendar provider ready",
		slog.String("state", s.state.String()),
		logging.Authenticated(s.authenticated.Load()))
	return p, nil
}

func (s *Service) initProvider(ctx context.Context) (Provider, error) {
	if s.load == nil {
		return nil, fmt.Errorf("failed to load calendar provider: no loader configured")
	}
	p, err := s.load(ctx, s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar provider: %w", err)
	}
	if err := p.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize calendar provider: %w", err)
	}

	auth := p.Auth()
	stop := auth.Listen(s.onAuthenticationChanged)
	s.authenticated.Store(auth.IsSignedIn())

	s.mu.Lock()
	if s.stopAuth != nil {
		s.stopAuth()
	}
	s.stopAuth = stop
	s.mu.Unlock()

	return p, nil
}

func (s *Service) onAuthenticationChanged(signedIn bool) {
	if s.authenticated.Swap(signedIn) != signedIn {
		s.metrics.RecordAuthTransition(context.Background(), signedIn)
		s.logger.Info("authentication state changed", logging.Authenticated(signedIn))
	}
}
