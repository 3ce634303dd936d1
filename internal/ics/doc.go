// Package ics exports Google Calendar events as an iCalendar (RFC 5545)
// VCALENDAR stream.
package ics
