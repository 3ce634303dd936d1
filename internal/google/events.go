package google

import (
	"context"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/teemow/gcalkit/internal/calendar"
)

type events struct {
	svc *gcal.Service
}

func (e *events) Get(ctx context.Context, calendarID, eventID string) (*gcal.Event, error) {
	return e.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
}

// List returns every page of the query merged into one result. Metadata
// is taken from the last page, which carries the sync token.
func (e *events) List(ctx context.Context, query calendar.ListQuery) (*gcal.Events, error) {
	call := e.svc.Events.List(query.CalendarID).
		SingleEvents(query.SingleEvents).
		TimeMin(query.TimeMin).
		TimeMax(query.TimeMax)
	if query.OrderBy != "" {
		call = call.OrderBy(query.OrderBy)
	}
	if query.ShowDeleted != nil {
		call = call.ShowDeleted(*query.ShowDeleted)
	}

	var (
		result *gcal.Events
		items  []*gcal.Event
	)
	err := call.Pages(ctx, func(page *gcal.Events) error {
		items = append(items, page.Items...)
		result = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Items = items
	result.NextPageToken = ""
	return result, nil
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
