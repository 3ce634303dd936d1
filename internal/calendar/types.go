package calendar

import (
	"net/http"
	"sort"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// ExternalIDKey is the private extended property that carries the
// client-assigned identifier of an event.
const ExternalIDKey = "externalID"

// PrimaryCalendar is the alias Google accepts for the signed-in user's
// primary calendar.
const PrimaryCalendar = "primary"

// Order values accepted by RangeRequest.OrderBy
const (
	OrderByStartTime = "startTime"
	OrderByUpdated   = "updated"
)

// Config holds the caller-supplied provider configuration
type Config struct {
	APIKey        string
	ClientID      string
	ClientSecret  string
	DiscoveryDocs []string
	Scopes        []string

	// Account selects the cached OAuth token (default: "default")
	Account string
}

// CalendarEvent pairs a calendar with an event resource. It is the unit of
// create and update operations.
type CalendarEvent struct {
	CalendarID string          `json:"calendarId"`
	Resource   *calendar.Event `json:"resource"`
}

// DeleteRequest identifies an event to delete
type DeleteRequest struct {
	CalendarID string `json:"calendarId"`
	EventID    string `json:"eventId"`
}

// DeleteRequestsFor builds delete requests for a list of event IDs that all
// live in the same calendar.
func DeleteRequestsFor(calendarID string, eventIDs ...string) []DeleteRequest {
	reqs := make([]DeleteRequest, 0, len(eventIDs))
	for _, id := range eventIDs {
		reqs = append(reqs, DeleteRequest{CalendarID: calendarID, EventID: id})
	}
	return reqs
}

// GetRequest identifies a single event to fetch
type GetRequest struct {
	CalendarID string `json:"calendarId"`
	EventID    string `json:"eventId"`
}

// RangeRequest describes a time-bounded event listing
type RangeRequest struct {
	CalendarID string `json:"calendarId"`

	// SingleEvents expands recurring events into instances
	SingleEvents bool `json:"singleEvents"`

	// OrderBy is "startTime" or "updated". Google only accepts "startTime"
	// together with SingleEvents.
	OrderBy string `json:"orderBy,omitempty"`

	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`

	// ShowDeleted is sent to the provider only when set
	ShowDeleted *bool `json:"showDeleted,omitempty"`
}

// BatchResponse is the consolidated result of a batch exchange. Items are
// keyed by the correlation key each call was added with; their order is
// whatever the provider returned.
type BatchResponse struct {
	Status     int                           `json:"status"`
	StatusText string                        `json:"statusText"`
	Items      map[string]*BatchItemResponse `json:"result"`
}

// BatchItemResponse is the result of one call inside a batch
type BatchItemResponse struct {
	Status     int              `json:"status"`
	StatusText string           `json:"statusText"`
	Event      *calendar.Event  `json:"result,omitempty"`
	Error      *googleapi.Error `json:"error,omitempty"`
}

// OK reports whether the item completed with a 2xx status
func (r *BatchItemResponse) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Failed returns the sorted keys of items that did not complete with a 2xx
// status
func (r *BatchResponse) Failed() []string {
	var keys []string
	for key, item := range r.Items {
		if !item.OK() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func emptyBatchResponse() *BatchResponse {
	return &BatchResponse{
		Status:     http.StatusOK,
		StatusText: http.StatusText(http.StatusOK),
		Items:      map[string]*BatchItemResponse{},
	}
}

// ExternalID returns the client-assigned identifier stored in the event's
// private extended properties
func ExternalID(event *calendar.Event) string {
	if event == nil || event.ExtendedProperties == nil {
		return ""
	}
	return event.ExtendedProperties.Private[ExternalIDKey]
}

// SetExternalID stores id in the event's private extended properties
func SetExternalID(event *calendar.Event, id string) {
	if event.ExtendedProperties == nil {
		event.ExtendedProperties = &calendar.EventExtendedProperties{}
	}
	if event.ExtendedProperties.Private == nil {
		event.ExtendedProperties.Private = map[string]string{}
	}
	event.ExtendedProperties.Private[ExternalIDKey] = id
}
