package google

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// RevokeURL is Google's token revocation endpoint
const RevokeURL = "https://oauth2.googleapis.com/revoke"

// loopbackRedirect is the redirect target of the installed-app flow. The
// browser lands on an unreachable localhost page whose URL carries the code.
const loopbackRedirect = "http://localhost"

// ErrNotSignedIn is returned when a token is requested while signed out
var ErrNotSignedIn = errors.New("not signed in")

// CodePrompter shows authURL to the user and returns the authorization code
// they obtained. The returned value may also be the full redirect URL.
type CodePrompter func(ctx context.Context, authURL string) (string, error)

// StdinPrompter prints the authorization URL and reads the code from stdin
func StdinPrompter(ctx context.Context, authURL string) (string, error) {
	return promptCode(ctx, os.Stderr, os.Stdin, authURL)
}

func promptCode(ctx context.Context, w io.Writer, r io.Reader, authURL string) (string, error) {
	fmt.Fprintf(w, "Go to the following link in your browser, then paste the authorization code or the URL you were redirected to:\n\n%s\n\nCode: ", authURL)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && !(errors.Is(res.err, io.EOF) && res.line != "") {
			return "", fmt.Errorf("failed to read authorization code: %w", res.err)
		}
		return strings.TrimSpace(res.line), nil
	}
}

// extractCode accepts either a bare code or a redirect URL with a code
// query parameter.
func extractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty authorization code")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	if msg := u.Query().Get("error"); msg != "" {
		return "", fmt.Errorf("authorization denied: %s", msg)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL carries no authorization code")
	}
	return code, nil
}

// Authenticator runs the OAuth2 installed-app flow for one account and
// tracks whether that account is signed in.
type Authenticator struct {
	conf      *oauth2.Config
	account   string
	store     TokenStore
	prompt    CodePrompter
	client    *http.Client
	revokeURL string

	mu        sync.Mutex
	source    oauth2.TokenSource
	last      *oauth2.Token
	revocable *oauth2.Token
	listeners map[int]func(bool)
	nextID    int
}

// AuthOption configures an Authenticator
type AuthOption func(*Authenticator)

// WithCodePrompter replaces the stdin prompt
func WithCodePrompter(p CodePrompter) AuthOption {
	return func(a *Authenticator) { a.prompt = p }
}

// WithTokenStore replaces the file token store
func WithTokenStore(s TokenStore) AuthOption {
	return func(a *Authenticator) { a.store = s }
}

// WithOAuthEndpoint overrides Google's OAuth endpoints
func WithOAuthEndpoint(endpoint oauth2.Endpoint, revokeURL string) AuthOption {
	return func(a *Authenticator) {
		a.conf.Endpoint = endpoint
		a.revokeURL = revokeURL
	}
}

// WithAuthHTTPClient sets the client used for token exchange and revocation
func WithAuthHTTPClient(c *http.Client) AuthOption {
	return func(a *Authenticator) { a.client = c }
}

// NewAuthenticator creates an Authenticator for account. An empty account
// selects DefaultAccount.
func NewAuthenticator(clientID, clientSecret, account string, scopes []string, opts ...AuthOption) (*Authenticator, error) {
	if account == "" {
		account = DefaultAccount
	}
	if err := validateAccountName(account); err != nil {
		return nil, err
	}

	a := &Authenticator{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  loopbackRedirect,
			Scopes:       scopesOrDefault(scopes),
		},
		account:   account,
		store:     NewFileTokenStore(""),
		prompt:    StdinPrompter,
		client:    http.DefaultClient,
		revokeURL: RevokeURL,
		listeners: map[int]func(bool){},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Account returns the account name the authenticator caches tokens under
func (a *Authenticator) Account() string {
	return a.account
}

func (a *Authenticator) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.client)
}

// Restore loads a cached token, if any, without notifying listeners
func (a *Authenticator) Restore(ctx context.Context) error {
	token, err := a.store.Load(a.account)
	if errors.Is(err, ErrNoToken) {
		return nil
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = token
	a.source = a.conf.TokenSource(a.oauthContext(context.WithoutCancel(ctx)), token)
	return nil
}

// SignIn runs the authorization flow and caches the resulting token
func (a *Authenticator) SignIn(ctx context.Context) error {
	if a.conf.ClientID == "" {
		return fmt.Errorf("OAuth client ID is not configured")
	}

	authURL := a.conf.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	input, err := a.prompt(ctx, authURL)
	if err != nil {
		return err
	}
	code, err := extractCode(input)
	if err != nil {
		return err
	}

	token, err := a.conf.Exchange(a.oauthContext(ctx), code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := a.store.Save(a.account, token); err != nil {
		return err
	}

	a.mu.Lock()
	a.last = token
	a.revocable = nil
	a.source = a.conf.TokenSource(a.oauthContext(context.WithoutCancel(ctx)), token)
	a.mu.Unlock()

	a.notify(true)
	return nil
}

// SignOut forgets the cached token. The token stays revocable through
// Disconnect.
func (a *Authenticator) SignOut(ctx context.Context) error {
	if err := a.store.Delete(a.account); err != nil {
		return err
	}

	a.mu.Lock()
	wasSignedIn := a.source != nil
	if a.last != nil {
		a.revocable = a.last
	}
	a.source = nil
	a.last = nil
	a.mu.Unlock()

	if wasSignedIn {
		a.notify(false)
	}
	return nil
}

// Disconnect revokes the token released by the last SignOut, or the
// current one if still signed in.
func (a *Authenticator) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	token := a.revocable
	if token == nil {
		token = a.last
	}
	a.mu.Unlock()

	if token == nil {
		return nil
	}

	value := token.RefreshToken
	if value == "" {
		value = token.AccessToken
	}
	if err := a.revoke(ctx, value); err != nil {
		return err
	}

	a.mu.Lock()
	if a.revocable == token {
		a.revocable = nil
	}
	a.mu.Unlock()
	return nil
}

func (a *Authenticator) revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer resp.Body.Close()

	// Google answers 400 invalid_token for tokens that are already revoked
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("failed to revoke token: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// IsSignedIn reports whether a token is available
func (a *Authenticator) IsSignedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source != nil
}

// Listen registers fn for sign-in state changes
func (a *Authenticator) Listen(fn func(bool)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Authenticator) notify(signedIn bool) {
	a.mu.Lock()
	fns := make([]func(bool), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(signedIn)
	}
}

// Token returns a valid access token, refreshing it if needed. Refreshed
// tokens are written back to the store. A refresh rejected with
// invalid_grant signs the account out.
func (a *Authenticator) Token() (*oauth2.Token, error) {
	a.mu.Lock()
	source := a.source
	last := a.last
	a.mu.Unlock()

	if source == nil {
		return nil, ErrNotSignedIn
	}

	token, err := source.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.ErrorCode == "invalid_grant" {
			_ = a.SignOut(context.Background())
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if last == nil || token.AccessToken != last.AccessToken {
		a.mu.Lock()
		a.last = token
		a.mu.Unlock()
		if err := a.store.Save(a.account, token); err != nil {
			return nil, err
		}
	}
	return token, nil
}
