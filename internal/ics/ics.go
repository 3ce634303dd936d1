package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/teemow/gcalkit/internal/calendar"
)

// DefaultProductID is written as PRODID of exported calendars
const DefaultProductID = "-//gcalkit//EN"

const dateLayout = "2006-01-02"

// Exporter converts provider events to iCalendar components
type Exporter struct {
	ProductID string

	// Now stamps events that carry no update time. Defaults to time.Now.
	Now func() time.Time
}

// Encode writes events to w as a single VCALENDAR using the default exporter
func Encode(w io.Writer, events []*gcal.Event) error {
	return (&Exporter{}).Encode(w, events)
}

// Encode writes events to w as a single VCALENDAR
func (e *Exporter) Encode(w io.Writer, events []*gcal.Event) error {
	cal, err := e.Calendar(events)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// Calendar builds the VCALENDAR for events. Events without a start time,
// which the provider returns for cancelled instances, and events with no
// identifier to use as UID are skipped.
func (e *Exporter) Calendar(events []*gcal.Event) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, e.productID())

	for _, event := range events {
		if !exportable(event) {
			continue
		}
		comp, err := e.component(event)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", event.Id, err)
		}
		cal.Children = append(cal.Children, comp)
	}
	return cal, nil
}

func (e *Exporter) productID() string {
	if e.ProductID != "" {
		return e.ProductID
	}
	return DefaultProductID
}

func (e *Exporter) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Exporter) component(event *gcal.Event) (*ical.Component, error) {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid(event))

	stamp := e.now()
	if event.Updated != "" {
		if t, err := time.Parse(time.RFC3339, event.Updated); err == nil {
			stamp = t
		}
	}
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	if err := setTime(ve.Props, ical.PropDateTimeStart, event.Start); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if event.End != nil && (event.End.DateTime != "" || event.End.Date != "") {
		if err := setTime(ve.Props, ical.PropDateTimeEnd, event.End); err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
	}

	if event.Summary != "" {
		ve.Props.SetText(ical.PropSummary, event.Summary)
	}
	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.Status != "" {
		ve.Props.SetText(ical.PropStatus, strings.ToUpper(event.Status))
	}
	if event.HtmlLink != "" {
		ve.Props.SetText(ical.PropURL, event.HtmlLink)
	}

	if event.Organizer != nil && event.Organizer.Email != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + event.Organizer.Email
		if event.Organizer.DisplayName != "" {
			p.Params.Set("CN", event.Organizer.DisplayName)
		}
		ve.Props.Add(p)
	}
	for _, att := range event.Attendees {
		if att == nil || att.Email == "" {
			continue
		}
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + att.Email
		if att.DisplayName != "" {
			p.Params.Set("CN", att.DisplayName)
		}
		if status := partStat(att.ResponseStatus); status != "" {
			p.Params.Set("PARTSTAT", status)
		}
		ve.Props.Add(p)
	}

	// Google stores recurrence as raw RFC 5545 lines, e.g. "RRULE:FREQ=WEEKLY"
	for _, line := range event.Recurrence {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		params := strings.Split(name, ";")
		p := ical.NewProp(strings.ToUpper(params[0]))
		for _, param := range params[1:] {
			if k, v, ok := strings.Cut(param, "="); ok {
				p.Params.Set(strings.ToUpper(k), v)
			}
		}
		p.Value = value
		ve.Props.Add(p)
	}

	return ve, nil
}

// uid prefers the iCalendar UID Google keeps for every event
func exportable(event *gcal.Event) bool {
	if event == nil || event.Start == nil {
		return false
	}
	if event.Start.DateTime == "" && event.Start.Date == "" {
		return false
	}
	return uid(event) != ""
}

func uid(event *gcal.Event) string {
	if event.ICalUID != "" {
		return event.ICalUID
	}
	if id := calendar.ExternalID(event); id != "" {
		return id
	}
	return event.Id
}

func setTime(props ical.Props, name string, t *gcal.EventDateTime) error {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return err
		}
		props.SetDateTime(name, parsed.UTC())
		return nil
	}
	if t.Date != "" {
		parsed, err := time.Parse(dateLayout, t.Date)
		if err != nil {
			return err
		}
		props.SetDate(name, parsed)
		return nil
	}
	return fmt.Errorf("neither dateTime nor date is set")
}

func partStat(responseStatus string) string {
	switch responseStatus {
	case "accepted":
		return "ACCEPTED"
	case "declined":
		return "DECLINED"
	case "tentative":
		return "TENTATIVE"
	case "needsAction":
		return "NEEDS-ACTION"
	}
	return ""
}
