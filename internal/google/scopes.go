package google

import gcal "google.golang.org/api/calendar/v3"

// DefaultOAuthScopes are requested when the configuration names none.
// Calendar read/write covers every event operation of the client.
var DefaultOAuthScopes = []string{
	gcal.CalendarScope,
}

// DefaultDiscoveryDoc is the Calendar v3 discovery document
const DefaultDiscoveryDoc = "https://www.googleapis.com/discovery/v1/apis/calendar/v3/rest"

func scopesOrDefault(scopes []string) []string {
	if len(scopes) == 0 {
		return DefaultOAuthScopes
	}
	return scopes
}
