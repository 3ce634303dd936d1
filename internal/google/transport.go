package google

import (
	"net/http"

	"golang.org/x/oauth2"
)

// tokenSource is what the transport needs from the Authenticator
type tokenSource interface {
	IsSignedIn() bool
	Token() (*oauth2.Token, error)
}

// transport attaches the API key and, while signed in, the bearer token
type transport struct {
	base   http.RoundTripper
	tokens tokenSource
	apiKey string
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.apiKey == "" && (t.tokens == nil || !t.tokens.IsSignedIn()) {
		return t.base.RoundTrip(req)
	}

	// RoundTrip must not modify the caller's request
	req = req.Clone(req.Context())

	if t.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", t.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	if t.tokens != nil && t.tokens.IsSignedIn() {
		token, err := t.tokens.Token()
		if err != nil {
			if req.Body != nil {
				_ = req.Body.Close()
			}
			return nil, err
		}
		token.SetAuthHeader(req)
	}

	return t.base.RoundTrip(req)
}

func newHTTPClient(base http.RoundTripper, tokens tokenSource, apiKey string) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: &transport{base: base, tokens: tokens, apiKey: apiKey}}
}
