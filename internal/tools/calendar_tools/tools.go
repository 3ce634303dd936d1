package calendar_tools

import (
	"encoding/json"
	"fmt"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/teemow/gcalkit/internal/calendar"
	"github.com/teemow/gcalkit/internal/server"
)

// RegisterCalendarTools registers all calendar tools with the MCP server.
// Tools that modify events are left out when readOnly is set.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterEventTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}

	if err := RegisterAuthTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register auth tools: %w", err)
	}

	return nil
}

// getCalendarID extracts the calendar ID from request arguments, defaulting to "primary"
func getCalendarID(args map[string]interface{}) string {
	if id, ok := args["calendarId"].(string); ok && id != "" {
		return id
	}
	return calendar.PrimaryCalendar
}

// getOptionalBool returns nil when the argument is absent or not a boolean
func getOptionalBool(args map[string]interface{}, name string) *bool {
	v, ok := args[name].(bool)
	if !ok {
		return nil
	}
	return &v
}

// parseEvents decodes a JSON array of event resources. The argument may be
// sent either as a JSON string or as an already decoded array.
func parseEvents(arg interface{}, name, calendarID string) ([]calendar.CalendarEvent, error) {
	if arg == nil {
		return nil, fmt.Errorf("%s is required", name)
	}

	var data []byte
	switch v := arg.(type) {
	case string:
		data = []byte(v)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	var resources []*gcal.Event
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("%s must be a JSON array of events: %w", name, err)
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", name)
	}

	events := make([]calendar.CalendarEvent, 0, len(resources))
	for i, r := range resources {
		if r == nil {
			return nil, fmt.Errorf("%s[%d] is null", name, i)
		}
		events = append(events, calendar.CalendarEvent{CalendarID: calendarID, Resource: r})
	}
	return events, nil
}

// eventTime renders an event boundary, which is either a date-time or an
// all-day date
func eventTime(t *gcal.EventDateTime) string {
	switch {
	case t == nil:
		return ""
	case t.DateTime != "":
		return t.DateTime
	default:
		return t.Date
	}
}

func formatEvent(event *gcal.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", event.Summary)
	fmt.Fprintf(&b, "ID: %s\n", event.Id)
	fmt.Fprintf(&b, "Start: %s\n", eventTime(event.Start))
	fmt.Fprintf(&b, "End: %s\n", eventTime(event.End))
	if event.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", event.Status)
	}
	if event.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", event.Description)
	}
	if event.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", event.Location)
	}
	if event.Organizer != nil && event.Organizer.Email != "" {
		fmt.Fprintf(&b, "Organizer: %s\n", event.Organizer.Email)
	}
	if len(event.Recurrence) > 0 {
		fmt.Fprintf(&b, "Recurrence: %s\n", strings.Join(event.Recurrence, "; "))
	}
	if id := calendar.ExternalID(event); id != "" {
		fmt.Fprintf(&b, "External ID: %s\n", id)
	}
	if event.HtmlLink != "" {
		fmt.Fprintf(&b, "Link: %s\n", event.HtmlLink)
	}

	if len(event.Attendees) > 0 {
		fmt.Fprintf(&b, "\nAttendees (%d):\n", len(event.Attendees))
		for _, att := range event.Attendees {
			fmt.Fprintf(&b, "  - %s (%s)", att.Email, att.ResponseStatus)
			if att.DisplayName != "" {
				fmt.Fprintf(&b, " - %s", att.DisplayName)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
