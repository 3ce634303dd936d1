package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/gcalkit/internal/instrumentation"
	"github.com/teemow/gcalkit/internal/logging"
)

// timestampLayout matches the UTC millisecond form the provider expects for
// timeMin/timeMax, e.g. 2024-01-31T23:59:59.000Z
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// EventAPI translates event requests into provider calls. It holds no
// session state; every method takes the live provider handle.
type EventAPI struct {
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewEventAPI creates an EventAPI. Both arguments may be nil.
func NewEventAPI(logger *slog.Logger, metrics *instrumentation.Metrics) *EventAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventAPI{
		logger:  logging.WithService(logger, instrumentation.ServiceCalendar),
		metrics: metrics,
	}
}

// GetEvent fetches a single event
func (a *EventAPI) GetEvent(ctx context.Context, p Provider, req GetRequest) (*calendar.Event, error) {
	var event *calendar.Event
	err := a.observe(ctx, instrumentation.OperationGet, req.CalendarID, 0, func(ctx context.Context) error {
		var err error
		event, err = p.Events().Get(ctx, req.CalendarID, req.EventID)
		if err != nil {
			return fmt.Errorf("failed to get event %s: %w", req.EventID, err)
		}
		return nil
	})
	return event, err
}

// GetEventsInRange lists the events of a calendar between req.Start and req.End
func (a *EventAPI) GetEventsInRange(ctx context.Context, p Provider, req RangeRequest) (*calendar.Events, error) {
	var events *calendar.Events
	err := a.observe(ctx, instrumentation.OperationList, req.CalendarID, 0, func(ctx context.Context) error {
		var err error
		events, err = p.Events().List(ctx, listQuery(req))
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		return nil
	})
	return events, err
}

func listQuery(req RangeRequest) ListQuery {
	return ListQuery{
		CalendarID:   req.CalendarID,
		SingleEvents: req.SingleEvents,
		OrderBy:      req.OrderBy,
		TimeMin:      req.Start.UTC().Format(timestampLayout),
		TimeMax:      req.End.UTC().Format(timestampLayout),
		ShowDeleted:  req.ShowDeleted,
	}
}

// CreateEvents inserts events in one batch. Each item is keyed by the event
// ID, or by its external ID when the provider has not assigned one yet.
// Events with neither get a generated external ID written into their
// private extended properties.
func (a *EventAPI) CreateEvents(ctx context.Context, p Provider, events []CalendarEvent) (*BatchResponse, error) {
	return a.runBatch(ctx, p, instrumentation.OperationCreate, events, nil, nil)
}

// UpdateEvents updates events in one batch, keyed by event ID. If any event
// lacks an ID nothing is sent and ErrMissingEventID is returned.
func (a *EventAPI) UpdateEvents(ctx context.Context, p Provider, events []CalendarEvent) (*BatchResponse, error) {
	return a.runBatch(ctx, p, instrumentation.OperationUpdate, nil, events, nil)
}

// DeleteEvents deletes events in one batch, keyed by event ID
func (a *EventAPI) DeleteEvents(ctx context.Context, p Provider, requests []DeleteRequest) (*BatchResponse, error) {
	return a.runBatch(ctx, p, instrumentation.OperationDelete, nil, nil, requests)
}

// EventBulkRequests inserts, updates and deletes events in a single batch
func (a *EventAPI) EventBulkRequests(ctx context.Context, p Provider, inserts, updates []CalendarEvent, deletes []DeleteRequest) (*BatchResponse, error) {
	return a.runBatch(ctx, p, instrumentation.OperationBulk, inserts, updates, deletes)
}

func (a *EventAPI) runBatch(ctx context.Context, p Provider, operation string, inserts, updates []CalendarEvent, deletes []DeleteRequest) (*BatchResponse, error) {
	size := len(inserts) + len(updates) + len(deletes)

	var resp *BatchResponse
	err := a.observe(ctx, operation, "", size, func(ctx context.Context) error {
		batch, err := buildBatch(p, inserts, updates, deletes)
		if err != nil {
			return err
		}
		if batch.Len() == 0 {
			resp = emptyBatchResponse()
			return nil
		}
		resp, err = batch.Execute(ctx)
		if err != nil {
			return fmt.Errorf("batch %s failed: %w", operation, err)
		}
		instrumentation.AddSpanEvent(trace.SpanFromContext(ctx), "batch.response",
			attribute.Int("calendar.batch_status", resp.Status),
			attribute.Int("calendar.batch_failed", len(resp.Failed())))
		return nil
	})
	return resp, err
}

// buildBatch validates every item before queuing anything
func buildBatch(p Provider, inserts, updates []CalendarEvent, deletes []DeleteRequest) (Batch, error) {
	for _, ev := range updates {
		if ev.Resource == nil || ev.Resource.Id == "" {
			return nil, missingIDError(ev)
		}
	}
	for _, req := range deletes {
		if req.EventID == "" {
			return nil, fmt.Errorf("%w: delete in calendar %q", ErrMissingCorrelationKey, req.CalendarID)
		}
	}

	if n := len(inserts) + len(updates) + len(deletes); n > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d items, limit is %d", ErrBatchTooLarge, n, MaxBatchSize)
	}

	events := p.Events()
	batch := p.NewBatch()
	seen := make(map[string]struct{})
	add := func(req Request, key string) error {
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateBatchKey, key)
		}
		seen[key] = struct{}{}
		return batch.Add(req, key)
	}

	for _, ev := range inserts {
		if ev.Resource == nil {
			return nil, fmt.Errorf("%w: insert in calendar %q has no resource", ErrMissingCorrelationKey, ev.CalendarID)
		}
		if err := add(events.Insert(ev.CalendarID, ev.Resource), insertKey(ev.Resource)); err != nil {
			return nil, err
		}
	}
	for _, ev := range updates {
		if err := add(events.Update(ev.CalendarID, ev.Resource.Id, ev.Resource), ev.Resource.Id); err != nil {
			return nil, err
		}
	}
	for _, req := range deletes {
		if err := add(events.Delete(req.CalendarID, req.EventID), req.EventID); err != nil {
			return nil, err
		}
	}

	return batch, nil
}

// insertKey picks the correlation key of a new event
func insertKey(event *calendar.Event) string {
	if event.Id != "" {
		return event.Id
	}
	if id := ExternalID(event); id != "" {
		return id
	}
	id := uuid.NewString()
	SetExternalID(event, id)
	return id
}

func missingIDError(ev CalendarEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w (calendar %q)", ErrMissingEventID, ev.CalendarID)
	}
	return fmt.Errorf("%w!\n%s", ErrMissingEventID, data)
}

// observe wraps fn in a span, records its metrics and logs the outcome.
// calendarID is empty for batches, which may span calendars.
func (a *EventAPI) observe(ctx context.Context, operation, calendarID string, items int, fn func(ctx context.Context) error) error {
	attrs := instrumentation.NewSpanAttributeBuilder()
	if calendarID != "" {
		attrs.WithResource("calendar", calendarID)
	}
	if items > 0 {
		attrs.WithBatchSize(items)
	}
	ctx, span := instrumentation.StartCalendarSpan(ctx, operation, attrs.Build()...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	instrumentation.EndSpan(span, err)
	a.metrics.RecordCalendarOperation(ctx, operation, status, duration)
	if items > 0 {
		a.metrics.RecordBatchItems(ctx, operation, items)
	}

	logger := logging.WithOperation(a.logger, operation)
	if calendarID != "" {
		logger = logger.With(logging.Calendar(calendarID))
	}
	if err != nil {
		logger.Debug("calendar operation failed", logging.Status(status), logging.BatchSize(items), logging.Err(err))
	} else {
		logger.Debug("calendar operation completed", logging.Status(status), logging.BatchSize(items), slog.Duration(logging.KeyDuration, duration))
	}
	return err
}
