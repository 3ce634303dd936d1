package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gcalkit/internal/calendar"
	"github.com/teemow/gcalkit/internal/server"
	"github.com/teemow/gcalkit/internal/tools/batch"
	"github.com/teemow/gcalkit/internal/tools/common"
)

const calendarIDDescription = "Calendar ID (use 'primary' for primary calendar)"

// RegisterEventTools registers event-related tools with the MCP server
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// List events tool (read-only, always available)
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List calendar events within a time range"),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start time for the range (RFC3339 format, e.g., '2025-01-01T00:00:00Z')"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End time for the range (RFC3339 format, e.g., '2025-01-31T23:59:59Z')"),
		),
		mcp.WithBoolean("singleEvents",
			mcp.Description("Expand recurring events into single instances (default: true)"),
		),
		mcp.WithString("orderBy",
			mcp.Description("Sort order: 'startTime' (requires singleEvents) or 'updated'"),
			mcp.Enum(calendar.OrderByStartTime, calendar.OrderByUpdated),
		),
		mcp.WithBoolean("showDeleted",
			mcp.Description("Include cancelled events"),
		),
	)

	s.AddTool(listEventsTool, common.InstrumentedToolHandler("calendar_list_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	// Get event tool
	getEventTool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get details of a specific calendar event"),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to retrieve"),
		),
	)

	s.AddTool(getEventTool, common.InstrumentedToolHandler("calendar_get_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEvent(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	createEventsTool := mcp.NewTool("calendar_create_events",
		mcp.WithDescription("Create one or more calendar events in a single batch. Each event without an ID is tracked by a generated external ID."),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("events",
			mcp.Required(),
			mcp.Description(`JSON array of Google Calendar event resources, e.g. [{"summary":"Standup","start":{"dateTime":"2025-01-06T09:00:00Z"},"end":{"dateTime":"2025-01-06T09:15:00Z"}}]`),
		),
	)

	s.AddTool(createEventsTool, common.InstrumentedToolHandler("calendar_create_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvents(ctx, request, sc)
		}))

	updateEventsTool := mcp.NewTool("calendar_update_events",
		mcp.WithDescription("Replace one or more calendar events in a single batch. Every event must carry its 'id'."),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("events",
			mcp.Required(),
			mcp.Description("JSON array of complete Google Calendar event resources including 'id'"),
		),
	)

	s.AddTool(updateEventsTool, common.InstrumentedToolHandler("calendar_update_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateEvents(ctx, request, sc)
		}))

	deleteEventsTool := mcp.NewTool("calendar_delete_events",
		mcp.WithDescription("Delete one or more calendar events in a single batch"),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("eventIds",
			mcp.Required(),
			mcp.Description("Event ID or JSON array of event IDs to delete"),
		),
	)

	s.AddTool(deleteEventsTool, common.InstrumentedToolHandler("calendar_delete_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEvents(ctx, request, sc)
		}))

	bulkEventsTool := mcp.NewTool("calendar_bulk_events",
		mcp.WithDescription("Create, update and delete calendar events in a single batch"),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("inserts",
			mcp.Description("JSON array of event resources to create"),
		),
		mcp.WithString("updates",
			mcp.Description("JSON array of event resources to replace, each including 'id'"),
		),
		mcp.WithString("deleteEventIds",
			mcp.Description("Event ID or JSON array of event IDs to delete"),
		),
	)

	s.AddTool(bulkEventsTool, common.InstrumentedToolHandler("calendar_bulk_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleBulkEvents(ctx, request, sc)
		}))

	return nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	timeMinStr, ok := args["timeMin"].(string)
	if !ok || timeMinStr == "" {
		return mcp.NewToolResultError("timeMin is required"), nil
	}
	timeMin, err := time.Parse(time.RFC3339, timeMinStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid timeMin format: %v", err)), nil
	}

	timeMaxStr, ok := args["timeMax"].(string)
	if !ok || timeMaxStr == "" {
		return mcp.NewToolResultError("timeMax is required"), nil
	}
	timeMax, err := time.Parse(time.RFC3339, timeMaxStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid timeMax format: %v", err)), nil
	}

	req := calendar.RangeRequest{
		CalendarID:   getCalendarID(args),
		SingleEvents: true,
		Start:        timeMin,
		End:          timeMax,
		ShowDeleted:  getOptionalBool(args, "showDeleted"),
	}
	if single := getOptionalBool(args, "singleEvents"); single != nil {
		req.SingleEvents = *single
	}
	if orderBy, ok := args["orderBy"].(string); ok {
		req.OrderBy = orderBy
	}

	events, err := sc.Calendar().GetEventsInRange(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d events:\n\n", len(events.Items))
	for i, event := range events.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, event.Summary)
		fmt.Fprintf(&b, "   ID: %s\n", event.Id)
		fmt.Fprintf(&b, "   Start: %s\n", eventTime(event.Start))
		fmt.Fprintf(&b, "   End: %s\n", eventTime(event.End))
		if event.Location != "" {
			fmt.Fprintf(&b, "   Location: %s\n", event.Location)
		}
		if len(event.Attendees) > 0 {
			fmt.Fprintf(&b, "   Attendees: %d\n", len(event.Attendees))
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	event, err := sc.Calendar().GetEvent(ctx, calendar.GetRequest{
		CalendarID: getCalendarID(args),
		EventID:    eventID,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get event: %v", err)), nil
	}

	return mcp.NewToolResultText(formatEvent(event)), nil
}

func handleCreateEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	events, err := parseEvents(args["events"], "events", getCalendarID(args))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := sc.Calendar().CreateEvents(ctx, events)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create events: %v", err)), nil
	}

	return mcp.NewToolResultText(batch.FormatResults(batch.FromBatchResponse(resp))), nil
}

func handleUpdateEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	events, err := parseEvents(args["events"], "events", getCalendarID(args))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := sc.Calendar().UpdateEvents(ctx, events)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update events: %v", err)), nil
	}

	return mcp.NewToolResultText(batch.FormatResults(batch.FromBatchResponse(resp))), nil
}

func handleDeleteEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventIDs, err := batch.ParseStringOrArray(args["eventIds"], "eventIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := sc.Calendar().DeleteEvents(ctx, calendar.DeleteRequestsFor(getCalendarID(args), eventIDs...))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete events: %v", err)), nil
	}

	return mcp.NewToolResultText(batch.FormatResults(batch.FromBatchResponse(resp))), nil
}

func handleBulkEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	calendarID := getCalendarID(args)

	var (
		inserts, updates []calendar.CalendarEvent
		deletes          []calendar.DeleteRequest
		err              error
	)
	if args["inserts"] != nil {
		if inserts, err = parseEvents(args["inserts"], "inserts", calendarID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if args["updates"] != nil {
		if updates, err = parseEvents(args["updates"], "updates", calendarID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if args["deleteEventIds"] != nil {
		ids, err := batch.ParseStringOrArray(args["deleteEventIds"], "deleteEventIds")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		deletes = calendar.DeleteRequestsFor(calendarID, ids...)
	}

	if len(inserts)+len(updates)+len(deletes) == 0 {
		return mcp.NewToolResultError("at least one of inserts, updates or deleteEventIds is required"), nil
	}

	resp, err := sc.Calendar().EventBulkRequests(ctx, inserts, updates, deletes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to apply bulk changes: %v", err)), nil
	}

	return mcp.NewToolResultText(batch.FormatResults(batch.FromBatchResponse(resp))), nil
}
