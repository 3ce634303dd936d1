// Package resources provides MCP resources for the calendar session.
// Resources are read-only data sources that MCP clients can fetch: the
// session state of the configured account, and single events addressed as
// calendar://events/{calendarId}/{eventId}.
package resources
