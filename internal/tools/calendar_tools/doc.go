// Package calendar_tools provides MCP (Model Context Protocol) tools for Google Calendar events.
//
// The tools read single events and time ranges, and create, update and
// delete events through the batch API of the calendar service. Write tools
// are only registered when the server is not in read-only mode.
//
// Signing in requires a browser consent flow and is handled by the CLI; the
// MCP tools only report and clear the sign-in state.
package calendar_tools
