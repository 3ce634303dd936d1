package calendar

import (
	"context"

	calendar "google.golang.org/api/calendar/v3"
)

// Loader constructs a provider for cfg. It runs at most once per successful
// bootstrap of a Service.
type Loader func(ctx context.Context, cfg Config) (Provider, error)

// Provider is the set of calendar provider capabilities the service uses
type Provider interface {
	// Init prepares the client (endpoints, credentials, cached session)
	Init(ctx context.Context) error

	Auth() Auth
	Events() Events

	// NewBatch starts an empty batch
	NewBatch() Batch
}

// Auth is the provider's authentication module
type Auth interface {
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error

	// Disconnect revokes the granted access
	Disconnect(ctx context.Context) error

	IsSignedIn() bool

	// Listen registers fn for every future sign-in state change. The returned
	// function removes the registration.
	Listen(fn func(signedIn bool)) (cancel func())
}

// Events is the provider's events module. Insert, Update and Delete build
// requests that are executed as part of a batch.
type Events interface {
	Get(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	List(ctx context.Context, query ListQuery) (*calendar.Events, error)

	Insert(calendarID string, event *calendar.Event) Request
	Update(calendarID, eventID string, event *calendar.Event) Request
	Delete(calendarID, eventID string) Request
}

// ListQuery holds the provider parameters of an events listing
type ListQuery struct {
	CalendarID   string
	SingleEvents bool
	OrderBy      string
	TimeMin      string
	TimeMax      string
	ShowDeleted  *bool
}

// Method of a batched request
type Method string

const (
	MethodInsert Method = "insert"
	MethodUpdate Method = "update"
	MethodDelete Method = "delete"
)

// Request is a single provider call waiting to be added to a batch
type Request struct {
	Method     Method
	CalendarID string
	EventID    string
	Event      *calendar.Event
}

// Batch aggregates requests into a single provider exchange
type Batch interface {
	// Add queues req under the correlation key
	Add(req Request, key string) error
	Len() int
	Execute(ctx context.Context) (*BatchResponse, error)
}
