package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	discovery "google.golang.org/api/discovery/v1"
	"google.golang.org/api/googleapi"

	"github.com/teemow/gcalkit/internal/calendar"
)

type staticTokens struct {
	signedIn bool
	token    *oauth2.Token
	err      error
}

func (s staticTokens) IsSignedIn() bool              { return s.signedIn }
func (s staticTokens) Token() (*oauth2.Token, error) { return s.token, s.err }

type captureTransport struct {
	req *http.Request
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.req = req
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestTransport_AddsKeyAndBearer(t *testing.T) {
	capture := &captureTransport{}
	client := newHTTPClient(capture, staticTokens{
		signedIn: true,
		token:    &oauth2.Token{AccessToken: "tok", TokenType: "Bearer"},
	}, "api-key")

	req, err := http.NewRequest(http.MethodGet, "https://example.com/calendars/primary/events?singleEvents=true", nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", capture.req.Header.Get("Authorization"))
	assert.Equal(t, "api-key", capture.req.URL.Query().Get("key"))
	assert.Equal(t, "true", capture.req.URL.Query().Get("singleEvents"))

	// The caller's request is untouched
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.URL.Query().Get("key"))
}

func TestTransport_SignedOutSendsKeyOnly(t *testing.T) {
	capture := &captureTransport{}
	client := newHTTPClient(capture, staticTokens{signedIn: false}, "api-key")

	_, err := client.Get("https://example.com/x")
	require.NoError(t, err)

	assert.Empty(t, capture.req.Header.Get("Authorization"))
	assert.Equal(t, "api-key", capture.req.URL.Query().Get("key"))
}

func TestTransport_TokenError(t *testing.T) {
	capture := &captureTransport{}
	boom := errors.New("refresh failed")
	client := newHTTPClient(capture, staticTokens{signedIn: true, err: boom}, "")

	_, err := client.Get("https://example.com/x")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, capture.req)
}

func discoveryServer(t *testing.T, docs map[string]discovery.RestDescription) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveCalendarDoc(t *testing.T) {
	srv := discoveryServer(t, map[string]discovery.RestDescription{
		"/tasks":    {Name: "tasks", Version: "v1", RootUrl: "https://tasks.example/", ServicePath: "tasks/v1/"},
		"/calendar": {Name: "calendar", Version: "v3", RootUrl: "https://www.googleapis.com/", ServicePath: "calendar/v3/", BatchPath: "batch/calendar/v3"},
	})

	doc, err := resolveCalendarDoc(context.Background(), srv.Client(), []string{srv.URL + "/tasks", srv.URL + "/calendar"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, baseURL(doc))
	assert.Equal(t, DefaultBatchURL, batchURL(doc))
}

func TestResolveCalendarDoc_DefaultBatchPath(t *testing.T) {
	srv := discoveryServer(t, map[string]discovery.RestDescription{
		"/calendar": {Name: "calendar", Version: "v3", RootUrl: "https://cal.example", ServicePath: "/calendar/v3/"},
	})

	doc, err := resolveCalendarDoc(context.Background(), srv.Client(), []string{srv.URL + "/calendar"})
	require.NoError(t, err)
	assert.Equal(t, "https://cal.example/calendar/v3/", baseURL(doc))
	assert.Equal(t, "https://cal.example/batch/calendar/v3", batchURL(doc))
}

func TestResolveCalendarDoc_Errors(t *testing.T) {
	srv := discoveryServer(t, map[string]discovery.RestDescription{
		"/tasks": {Name: "tasks", Version: "v1", RootUrl: "https://tasks.example/", ServicePath: "tasks/v1/"},
		"/empty": {Name: "calendar", Version: "v3"},
	})
	ctx := context.Background()

	_, err := resolveCalendarDoc(ctx, srv.Client(), []string{srv.URL + "/tasks"})
	assert.ErrorContains(t, err, "no calendar API")

	_, err = resolveCalendarDoc(ctx, srv.Client(), []string{srv.URL + "/empty"})
	assert.ErrorContains(t, err, "no rootUrl or servicePath")

	_, err = resolveCalendarDoc(ctx, srv.Client(), []string{srv.URL + "/missing"})
	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
}

// calendarAPI fakes the Calendar REST endpoints used by the events client
type calendarAPI struct {
	mu      sync.Mutex
	queries []map[string][]string
	auth    []string
}

func (c *calendarAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendar/v3/calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.auth = append(c.auth, r.Header.Get("Authorization"))
		c.mu.Unlock()
		if r.PathValue("id") == "missing" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(gcal.Event{Id: r.PathValue("id"), Summary: "in " + r.PathValue("cal")})
	})
	mux.HandleFunc("GET /calendar/v3/calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.queries = append(c.queries, r.URL.Query())
		c.mu.Unlock()

		page := gcal.Events{Summary: r.PathValue("cal")}
		if r.URL.Query().Get("pageToken") == "" {
			page.Items = []*gcal.Event{{Id: "a"}, {Id: "b"}}
			page.NextPageToken = "p2"
		} else {
			page.Items = []*gcal.Event{{Id: "c"}}
			page.NextSyncToken = "sync"
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	return mux
}

func newTestProvider(t *testing.T, api *calendarAPI, cfg calendar.Config) *Provider {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	store := newMemStore()
	require.NoError(t, store.Save(DefaultAccount, &oauth2.Token{
		AccessToken: "live",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))

	p, err := NewProvider(cfg,
		WithEndpoints(srv.URL+"/calendar/v3/", srv.URL+"/batch/calendar/v3"),
		WithAuthOptions(WithTokenStore(store)),
	)
	require.NoError(t, err)
	require.NoError(t, p.Init(context.Background()))
	return p
}

func TestProvider_InitRestoresToken(t *testing.T) {
	p := newTestProvider(t, &calendarAPI{}, calendar.Config{ClientID: "client"})
	assert.True(t, p.Auth().IsSignedIn())
}

func TestProvider_GetEvent(t *testing.T) {
	api := &calendarAPI{}
	p := newTestProvider(t, api, calendar.Config{ClientID: "client"})

	ev, err := p.Events().Get(context.Background(), "primary", "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", ev.Id)
	assert.Equal(t, "in primary", ev.Summary)
	assert.Equal(t, []string{"Bearer live"}, api.auth)

	_, err = p.Events().Get(context.Background(), "primary", "missing")
	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
}

func TestProvider_ListMergesPages(t *testing.T) {
	api := &calendarAPI{}
	p := newTestProvider(t, api, calendar.Config{ClientID: "client", APIKey: "k"})

	showDeleted := true
	events, err := p.Events().List(context.Background(), calendar.ListQuery{
		CalendarID:   "primary",
		SingleEvents: true,
		OrderBy:      calendar.OrderByStartTime,
		TimeMin:      "2024-01-01T00:00:00.000Z",
		TimeMax:      "2024-01-31T23:59:59.000Z",
		ShowDeleted:  &showDeleted,
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(events.Items))
	for _, ev := range events.Items {
		ids = append(ids, ev.Id)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Empty(t, events.NextPageToken)
	assert.Equal(t, "sync", events.NextSyncToken)

	require.Len(t, api.queries, 2)
	q := api.queries[0]
	assert.Equal(t, []string{"true"}, q["singleEvents"])
	assert.Equal(t, []string{"startTime"}, q["orderBy"])
	assert.Equal(t, []string{"2024-01-01T00:00:00.000Z"}, q["timeMin"])
	assert.Equal(t, []string{"2024-01-31T23:59:59.000Z"}, q["timeMax"])
	assert.Equal(t, []string{"true"}, q["showDeleted"])
	assert.Equal(t, []string{"k"}, q["key"])
}

func TestProvider_ListOmitsUnsetOptions(t *testing.T) {
	api := &calendarAPI{}
	p := newTestProvider(t, api, calendar.Config{ClientID: "client"})

	_, err := p.Events().List(context.Background(), calendar.ListQuery{
		CalendarID: "primary",
		TimeMin:    "2024-01-01T00:00:00.000Z",
		TimeMax:    "2024-01-02T00:00:00.000Z",
	})
	require.NoError(t, err)

	q := api.queries[0]
	assert.NotContains(t, q, "showDeleted")
	assert.NotContains(t, q, "orderBy")
	assert.NotContains(t, q, "key")
}

func TestProvider_InitWithDiscovery(t *testing.T) {
	srv := discoveryServer(t, map[string]discovery.RestDescription{
		"/calendar": {Name: "calendar", Version: "v3", RootUrl: "https://cal.example/", ServicePath: "calendar/v3/", BatchPath: "batch/calendar/v3"},
	})

	p, err := NewProvider(calendar.Config{DiscoveryDocs: []string{srv.URL + "/calendar"}},
		WithAuthOptions(WithTokenStore(newMemStore())))
	require.NoError(t, err)
	require.NoError(t, p.Init(context.Background()))

	assert.Equal(t, "https://cal.example/calendar/v3/", p.baseURL)
	assert.Equal(t, "https://cal.example/batch/calendar/v3", p.batchURL)
	assert.False(t, p.Auth().IsSignedIn())
}

func TestProvider_InitDiscoveryFailure(t *testing.T) {
	srv := discoveryServer(t, nil)

	p, err := NewProvider(calendar.Config{DiscoveryDocs: []string{srv.URL + "/nope"}},
		WithAuthOptions(WithTokenStore(newMemStore())))
	require.NoError(t, err)
	assert.Error(t, p.Init(context.Background()))
}

func TestProvider_ThroughService(t *testing.T) {
	api := &calendarAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	loader := Loader(
		WithEndpoints(srv.URL+"/calendar/v3/", srv.URL+"/batch/calendar/v3"),
		WithAuthOptions(WithTokenStore(newMemStore())),
	)
	svc := calendar.NewService(calendar.Config{ClientID: "client"}, loader)
	defer svc.Close()

	signedIn, err := svc.IsClientAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, signedIn)

	ev, err := svc.GetEvent(context.Background(), calendar.GetRequest{CalendarID: "primary", EventID: "e9"})
	require.NoError(t, err)
	assert.Equal(t, "e9", ev.Id)
}
