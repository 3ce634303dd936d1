package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gcalkit/internal/calendar"
	"github.com/teemow/gcalkit/internal/server"
)

const (
	// SessionURI is the resource describing the calendar session
	SessionURI = "calendar://session"

	eventURIPrefix = "calendar://events/"
)

// RegisterCalendarResources registers the calendar resources.
// The session resource reports the account and its sign-in state; the event
// template returns a single event as JSON.
func RegisterCalendarResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	sessionResource := mcp.NewResource(
		SessionURI,
		"Calendar Session",
		mcp.WithResourceDescription("The Google account the server acts for and whether it is signed in"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(sessionResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSession(ctx, request, sc)
	})

	eventTemplate := mcp.NewResourceTemplate(
		eventURIPrefix+"{calendarId}/{eventId}",
		"Calendar Event",
		mcp.WithTemplateDescription("A single calendar event as a Google Calendar event resource"),
		mcp.WithTemplateMIMEType("application/json"),
	)

	s.AddResourceTemplate(eventTemplate, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleEvent(ctx, request, sc)
	})

	return nil
}

func handleSession(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	signedIn, err := sc.Calendar().IsClientAuthenticated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check authentication: %w", err)
	}

	account := sc.Account()
	if account == "" {
		account = "default"
	}

	return jsonContents(request.Params.URI, map[string]interface{}{
		"account":  account,
		"signedIn": signedIn,
		"ready":    sc.Calendar().Ready(),
	})
}

func handleEvent(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	req, err := parseEventURI(request.Params.URI)
	if err != nil {
		return nil, err
	}

	event, err := sc.Calendar().GetEvent(ctx, req)
	if err != nil {
		return nil, err
	}

	return jsonContents(request.Params.URI, event)
}

// parseEventURI splits calendar://events/{calendarId}/{eventId}. Both
// segments may be percent-encoded.
func parseEventURI(uri string) (calendar.GetRequest, error) {
	rest, ok := strings.CutPrefix(uri, eventURIPrefix)
	if !ok {
		return calendar.GetRequest{}, fmt.Errorf("not an event URI: %s", uri)
	}

	calendarID, eventID, ok := strings.Cut(rest, "/")
	if !ok || calendarID == "" || eventID == "" || strings.Contains(eventID, "/") {
		return calendar.GetRequest{}, fmt.Errorf("event URI must be %s{calendarId}/{eventId}: %s", eventURIPrefix, uri)
	}

	var err error
	if calendarID, err = url.PathUnescape(calendarID); err != nil {
		return calendar.GetRequest{}, fmt.Errorf("invalid calendar ID in %s: %w", uri, err)
	}
	if eventID, err = url.PathUnescape(eventID); err != nil {
		return calendar.GetRequest{}, fmt.Errorf("invalid event ID in %s: %w", uri, err)
	}

	return calendar.GetRequest{CalendarID: calendarID, EventID: eventID}, nil
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
