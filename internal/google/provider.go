package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/gcalkit/internal/calendar"
	"github.com/teemow/gcalkit/internal/logging"
)

// Default Calendar v3 endpoints, used when no discovery document is configured
const (
	DefaultBaseURL  = "https://www.googleapis.com/calendar/v3/"
	DefaultBatchURL = "https://www.googleapis.com/batch/calendar/v3"
)

// Provider implements calendar.Provider on top of the Google Calendar v3 API
type Provider struct {
	cfg    calendar.Config
	auth   *Authenticator
	client *http.Client
	logger *slog.Logger

	baseURL  string
	batchURL string
	svc      *gcal.Service
}

// Option configures a Provider
type Option func(*providerOptions)

type providerOptions struct {
	base        http.RoundTripper
	baseURL     string
	batchURL    string
	logger      *slog.Logger
	authOptions []AuthOption
}

// WithTransport sets the round tripper beneath the auth transport
func WithTransport(rt http.RoundTripper) Option {
	return func(o *providerOptions) { o.base = rt }
}

// WithEndpoints overrides the REST and batch endpoints. Discovery documents,
// when configured, take precedence.
func WithEndpoints(baseURL, batchURL string) Option {
	return func(o *providerOptions) {
		o.baseURL = baseURL
		o.batchURL = batchURL
	}
}

// WithLogger sets the provider logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *providerOptions) { o.logger = logger }
}

// WithAuthOptions passes options to the Authenticator
func WithAuthOptions(opts ...AuthOption) Option {
	return func(o *providerOptions) { o.authOptions = append(o.authOptions, opts...) }
}

// Load is a calendar.Loader for the Google provider with default options
func Load(ctx context.Context, cfg calendar.Config) (calendar.Provider, error) {
	return NewProvider(cfg)
}

// Loader returns a calendar.Loader that applies opts
func Loader(opts ...Option) calendar.Loader {
	return func(ctx context.Context, cfg calendar.Config) (calendar.Provider, error) {
		return NewProvider(cfg, opts...)
	}
}

// NewProvider creates an uninitialized Provider
func NewProvider(cfg calendar.Config, opts ...Option) (*Provider, error) {
	o := providerOptions{
		baseURL:  DefaultBaseURL,
		batchURL: DefaultBatchURL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	auth, err := NewAuthenticator(cfg.ClientID, cfg.ClientSecret, cfg.Account, cfg.Scopes, o.authOptions...)
	if err != nil {
		return nil, err
	}

	return &Provider{
		cfg:      cfg,
		auth:     auth,
		client:   newHTTPClient(o.base, auth, cfg.APIKey),
		logger:   logging.WithAccount(o.logger, auth.Account()),
		baseURL:  o.baseURL,
		batchURL: o.batchURL,
	}, nil
}

// Init resolves the endpoints, restores a cached token and creates the
// Calendar API client.
func (p *Provider) Init(ctx context.Context) error {
	if len(p.cfg.DiscoveryDocs) > 0 {
		doc, err := resolveCalendarDoc(ctx, p.client, p.cfg.DiscoveryDocs)
		if err != nil {
			return err
		}
		p.baseURL = baseURL(doc)
		p.batchURL = batchURL(doc)
	}

	if err := p.auth.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore cached token: %w", err)
	}

	svc, err := gcal.NewService(ctx,
		option.WithHTTPClient(p.client),
		option.WithEndpoint(p.baseURL),
	)
	if err != nil {
		return fmt.Errorf("failed to create calendar service: %w", err)
	}
	p.svc = svc

	p.logger.Debug("google calendar provider initialized",
		slog.String("base_url", p.baseURL),
		slog.String("batch_url", p.batchURL),
		logging.Authenticated(p.auth.IsSignedIn()))
	return nil
}

// Auth implements calendar.Provider
func (p *Provider) Auth() calendar.Auth {
	return p.auth
}

// Authenticator returns the concrete authenticator
func (p *Provider) Authenticator() *Authenticator {
	return p.auth
}

// Events implements calendar.Provider
func (p *Provider) Events() calendar.Events {
	return &events{svc: p.svc}
}

// NewBatch implements calendar.Provider
func (p *Provider) NewBatch() calendar.Batch {
	return newBatch(p.client, p.baseURL, p.batchURL)
}
