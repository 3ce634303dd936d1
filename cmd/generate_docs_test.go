package cmd

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestGetCategoryFromToolName(t *testing.T) {
	tests := map[string]string{
		"calendar_auth_status":   "Authentication Tools",
		"calendar_sign_out":      "Authentication Tools",
		"calendar_get_event":     "Event Read Tools",
		"calendar_list_events":   "Event Read Tools",
		"calendar_create_events": "Event Write Tools",
		"calendar_bulk_events":   "Event Write Tools",
		"something_else":         "Other",
	}
	for name, want := range tests {
		assert.Equal(t, want, getCategoryFromToolName(name), name)
	}
}

func TestGenerateToolsMarkdown(t *testing.T) {
	tool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get details of a specific calendar event"),
		mcp.WithString("eventId", mcp.Required(), mcp.Description("The ID of the event to retrieve")),
		mcp.WithString("calendarId", mcp.Description("Calendar ID")),
	)

	md := generateToolsMarkdown([]mcp.Tool{tool})

	assert.Contains(t, md, "# MCP Tools Reference")
	assert.Contains(t, md, "- [Event Read Tools](#event-read-tools)")
	assert.Contains(t, md, "### calendar_get_event")
	assert.Contains(t, md, "- `eventId` (required): The ID of the event to retrieve")
	assert.Contains(t, md, "- `calendarId` (optional): Calendar ID")
}
