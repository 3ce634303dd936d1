// Package calendar provides a client library for Google Calendar events.
//
// The Service type is the entry point. It loads the calendar provider on
// first use, tracks whether the user is signed in and delegates event
// operations to an EventAPI, which turns requests into single provider calls
// or into one batch exchange whose results are keyed by a correlation key
// (the event ID, or the external ID stored in the event's private extended
// properties).
//
// The provider itself is hidden behind the Provider interface. The
// production implementation lives in internal/google; calendartest provides
// an in-memory one for tests.
//
// Example usage:
//
//	svc := calendar.NewService(cfg, google.Load)
//	defer svc.Close()
//
//	if err := svc.SignIn(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := svc.DeleteEvents(ctx, calendar.DeleteRequestsFor("primary", "e1", "e2"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for id, item := range resp.Items {
//	    fmt.Println(id, item.Status)
//	}
package calendar
