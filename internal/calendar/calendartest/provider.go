// Package calendartest provides an in-memory calendar.Provider for tests.
package calendartest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/teemow/gcalkit/internal/calendar"
)

// Provider is a scripted calendar.Provider. Events live in memory keyed by
// calendar and event ID; every call is recorded.
type Provider struct {
	mu sync.Mutex

	// InitErr is returned by Init when set
	InitErr error
	// SignInErr is returned by SignIn when set
	SignInErr error
	// BatchErr is returned by Batch.Execute when set
	BatchErr error
	// ListErr is returned by List when set
	ListErr error

	InitCalls       int
	SignInCalls     int
	SignOutCalls    int
	DisconnectCalls int
	ListQueries     []calendar.ListQuery
	Batches         [][]Item

	signedIn  bool
	listeners map[int]func(bool)
	nextID    int
	events    map[string]map[string]*gcal.Event
	idSeq     int
}

// Item is a request recorded in a batch
type Item struct {
	Key     string
	Request calendar.Request
}

// New returns a Provider that starts signed out
func New() *Provider {
	return &Provider{
		listeners: map[int]func(bool){},
		events:    map[string]map[string]*gcal.Event{},
	}
}

// Loader returns a calendar.Loader that always yields p and counts its calls
func (p *Provider) Loader(calls *int) calendar.Loader {
	var mu sync.Mutex
	return func(ctx context.Context, cfg calendar.Config) (calendar.Provider, error) {
		if calls != nil {
			mu.Lock()
			*calls++
			mu.Unlock()
		}
		return p, nil
	}
}

// Seed stores an event as if it already existed at the provider
func (p *Provider) Seed(calendarID string, event *gcal.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store(calendarID, event)
}

// SetSignedIn changes the sign-in state and notifies listeners
func (p *Provider) SetSignedIn(signedIn bool) {
	p.mu.Lock()
	changed := p.signedIn != signedIn
	p.signedIn = signedIn
	fns := make([]func(bool), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		fn(signedIn)
	}
}

// Init implements calendar.Provider
func (p *Provider) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.InitCalls++
	return p.InitErr
}

// Auth implements calendar.Provider
func (p *Provider) Auth() calendar.Auth { return (*auth)(p) }

// Events implements calendar.Provider
func (p *Provider) Events() calendar.Events { return (*events)(p) }

// NewBatch implements calendar.Provider
func (p *Provider) NewBatch() calendar.Batch { return &batch{p: p} }

func (p *Provider) store(calendarID string, event *gcal.Event) {
	cal, ok := p.events[calendarID]
	if !ok {
		cal = map[string]*gcal.Event{}
		p.events[calendarID] = cal
	}
	cal[event.Id] = event
}

type auth Provider

func (a *auth) SignIn(ctx context.Context) error {
	p := (*Provider)(a)
	p.mu.Lock()
	p.SignInCalls++
	err := p.SignInErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.SetSignedIn(true)
	return nil
}

func (a *auth) SignOut(ctx context.Context) error {
	p := (*Provider)(a)
	p.mu.Lock()
	p.SignOutCalls++
	p.mu.Unlock()
	p.SetSignedIn(false)
	return nil
}

func (a *auth) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.DisconnectCalls++
	return nil
}

func (a *auth) IsSignedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signedIn
}

func (a *auth) Listen(fn func(bool)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

type events Provider

func (e *events) Get(ctx context.Context, calendarID, eventID string) (*gcal.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev, ok := e.events[calendarID][eventID]; ok {
		return ev, nil
	}
	return nil, notFound(eventID)
}

func (e *events) List(ctx context.Context, query calendar.ListQuery) (*gcal.Events, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ListQueries = append(e.ListQueries, query)
	if e.ListErr != nil {
		return nil, e.ListErr
	}
	out := &gcal.Events{Summary: query.CalendarID}
	for _, ev := range e.events[query.CalendarID] {
		out.Items = append(out.Items, ev)
	}
	return out, nil
}

func (e *events) Insert(calendarID string, event *gcal.Event) calendar.Request {
	return calendar.Request{Method: calendar.MethodInsert, CalendarID: calendarID, Event: event}
}

func (e *events) Update(calendarID, eventID string, event *gcal.Event) calendar.Request {
	return calendar.Request{Method: calendar.MethodUpdate, CalendarID: calendarID, EventID: eventID, Event: event}
}

func (e *events) Delete(calendarID, eventID string) calendar.Request {
	return calendar.Request{Method: calendar.MethodDelete, CalendarID: calendarID, EventID: eventID}
}

type batch struct {
	p     *Provider
	items []Item
}

func (b *batch) Add(req calendar.Request, key string) error {
	b.items = append(b.items, Item{Key: key, Request: req})
	return nil
}

func (b *batch) Len() int { return len(b.items) }

// Execute applies the queued requests to the in-memory store
func (b *batch) Execute(ctx context.Context) (*calendar.BatchResponse, error) {
	p := b.p
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Batches = append(p.Batches, b.items)
	if p.BatchErr != nil {
		return nil, p.BatchErr
	}

	resp := &calendar.BatchResponse{
		Status:     http.StatusOK,
		StatusText: http.StatusText(http.StatusOK),
		Items:      make(map[string]*calendar.BatchItemResponse, len(b.items)),
	}
	for _, item := range b.items {
		resp.Items[item.Key] = p.apply(item.Request)
	}
	return resp, nil
}

func (p *Provider) apply(req calendar.Request) *calendar.BatchItemResponse {
	switch req.Method {
	case calendar.MethodInsert:
		ev := *req.Event
		if ev.Id == "" {
			p.idSeq++
			ev.Id = fmt.Sprintf("evt%d", p.idSeq)
		}
		p.store(req.CalendarID, &ev)
		return itemOK(http.StatusOK, &ev)
	case calendar.MethodUpdate:
		if _, ok := p.events[req.CalendarID][req.EventID]; !ok {
			return itemErr(notFound(req.EventID))
		}
		ev := *req.Event
		p.store(req.CalendarID, &ev)
		return itemOK(http.StatusOK, &ev)
	case calendar.MethodDelete:
		if _, ok := p.events[req.CalendarID][req.EventID]; !ok {
			return itemErr(notFound(req.EventID))
		}
		delete(p.events[req.CalendarID], req.EventID)
		return itemOK(http.StatusNoContent, nil)
	}
	return itemErr(&googleapi.Error{Code: http.StatusBadRequest, Message: "unknown method " + string(req.Method)})
}

func notFound(eventID string) *googleapi.Error {
	return &googleapi.Error{Code: http.StatusNotFound, Message: "Not Found: " + eventID}
}

func itemOK(status int, ev *gcal.Event) *calendar.BatchItemResponse {
	return &calendar.BatchItemResponse{Status: status, StatusText: http.StatusText(status), Event: ev}
}

func itemErr(err *googleapi.Error) *calendar.BatchItemResponse {
	return &calendar.BatchItemResponse{Status: err.Code, StatusText: http.StatusText(err.Code), Error: err}
}
