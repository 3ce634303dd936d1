package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memStore struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
	saves  int
}

func newMemStore() *memStore {
	return &memStore{tokens: map[string]*oauth2.Token{}}
}

func (s *memStore) Load(account string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[account]; ok {
		return t, nil
	}
	return nil, ErrNoToken
}

func (s *memStore) Save(account string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[account] = token
	s.saves++
	return nil
}

func (s *memStore) Delete(account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, account)
	return nil
}

// oauthServer fakes Google's token and revocation endpoints
type oauthServer struct {
	*httptest.Server
	mu      sync.Mutex
	codes   []string
	revoked []string
	grant   string
}

func newOAuthServer(t *testing.T) *oauthServer {
	t.Helper()
	s := &oauthServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.mu.Lock()
		defer s.mu.Unlock()

		if r.Form.Get("grant_type") == "refresh_token" && s.grant == "invalid" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		s.codes = append(s.codes, r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-" + r.Form.Get("grant_type"),
			"refresh_token": "refresh-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.mu.Lock()
		s.revoked = append(s.revoked, r.Form.Get("token"))
		s.mu.Unlock()
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *oauthServer) options(store TokenStore, prompt CodePrompter) []AuthOption {
	return []AuthOption{
		WithTokenStore(store),
		WithCodePrompter(prompt),
		WithOAuthEndpoint(oauth2.Endpoint{
			AuthURL:   s.URL + "/auth",
			TokenURL:  s.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}, s.URL+"/revoke"),
	}
}

func fixedCode(code string) CodePrompter {
	return func(ctx context.Context, authURL string) (string, error) {
		return code, nil
	}
}

func TestAuthenticator_SignIn(t *testing.T) {
	srv := newOAuthServer(t)
	store := newMemStore()

	var shownURL string
	prompt := func(ctx context.Context, authURL string) (string, error) {
		shownURL = authURL
		return "http://localhost/?state=x&code=the-code", nil
	}
	a, err := NewAuthenticator("client", "secret", "", nil, srv.options(store, prompt)...)
	require.NoError(t, err)

	var states []bool
	a.Listen(func(signedIn bool) { states = append(states, signedIn) })

	require.NoError(t, a.SignIn(context.Background()))

	assert.True(t, a.IsSignedIn())
	assert.Equal(t, []bool{true}, states)
	assert.Equal(t, []string{"the-code"}, srv.codes)
	assert.Contains(t, shownURL, "access_type=offline")
	assert.Contains(t, shownURL, url.QueryEscape("https://www.googleapis.com/auth/calendar"))

	cached, err := store.Load(DefaultAccount)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", cached.RefreshToken)
}

func TestAuthenticator_SignInRequiresClientID(t *testing.T) {
	a, err := NewAuthenticator("", "", "default", nil, WithTokenStore(newMemStore()))
	require.NoError(t, err)

	err = a.SignIn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client ID")
}

func TestAuthenticator_SignInPromptError(t *testing.T) {
	srv := newOAuthServer(t)
	boom := errors.New("no terminal")
	prompt := func(ctx context.Context, authURL string) (string, error) { return "", boom }

	a, err := NewAuthenticator("client", "secret", "", nil, srv.options(newMemStore(), prompt)...)
	require.NoError(t, err)

	assert.ErrorIs(t, a.SignIn(context.Background()), boom)
	assert.False(t, a.IsSignedIn())
}

func TestAuthenticator_RestoreCachedToken(t *testing.T) {
	srv := newOAuthServer(t)
	store := newMemStore()
	require.NoError(t, store.Save("work", &oauth2.Token{
		AccessToken:  "cached",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}))

	a, err := NewAuthenticator("client", "secret", "work", nil, srv.options(store, fixedCode("unused"))...)
	require.NoError(t, err)

	notified := false
	a.Listen(func(bool) { notified = true })

	require.NoError(t, a.Restore(context.Background()))
	assert.True(t, a.IsSignedIn())
	assert.False(t, notified, "restoring a cached token is not a transition")

	token, err := a.Token()
	require.NoError(t, err)
	assert.Equal(t, "cached", token.AccessToken)
}

func TestAuthenticator_TokenRefreshIsCached(t *testing.T) {
	srv := newOAuthServer(t)
	store := newMemStore()
	require.NoError(t, store.Save("default", &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	a, err := NewAuthenticator("client", "secret", "", nil, srv.options(store, fixedCode("unused"))...)
	require.NoError(t, err)
	require.NoError(t, a.Restore(context.Background()))

	token, err := a.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-refresh_token", token.AccessToken)

	cached, err := store.Load("default")
	require.NoError(t, err)
	assert.Equal(t, "access-refresh_token", cached.AccessToken)
}

func TestAuthenticator_InvalidGrantSignsOut(t *testing.T) {
	srv := newOAuthServer(t)
	srv.grant = "invalid"
	store := newMemStore()
	require.NoError(t, store.Save("default", &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "revoked-elsewhere",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	a, err := NewAuthenticator("client", "secret", "", nil, srv.options(store, fixedCode("unused"))...)
	require.NoError(t, err)
	require.NoError(t, a.Restore(context.Background()))

	var states []bool
	a.Listen(func(signedIn bool) { states = append(states, signedIn) })

	_, err = a.Token()
	require.Error(t, err)
	assert.False(t, a.IsSignedIn())
	assert.Equal(t, []bool{false}, states)
	_, err = store.Load("default")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestAuthenticator_SignOutThenDisconnect(t *testing.T) {
	srv := newOAuthServer(t)
	store := newMemStore()

	a, err := NewAuthenticator("client", "secret", "", nil, srv.options(store, fixedCode("c"))...)
	require.NoError(t, err)
	require.NoError(t, a.SignIn(context.Background()))

	var states []bool
	a.Listen(func(signedIn bool) { states = append(states, signedIn) })

	require.NoError(t, a.SignOut(context.Background()))
	assert.False(t, a.IsSignedIn())
	assert.Equal(t, []bool{false}, states)

	_, err = a.Token()
	assert.ErrorIs(t, err, ErrNotSignedIn)

	require.NoError(t, a.Disconnect(context.Background()))
	assert.Equal(t, []string{"refresh-token"}, srv.revoked)

	// Nothing left to revoke
	require.NoError(t, a.Disconnect(context.Background()))
	assert.Len(t, srv.revoked, 1)
}

func TestAuthenticator_SignOutWhenSignedOut(t *testing.T) {
	a, err := NewAuthenticator("client", "secret", "", nil, WithTokenStore(newMemStore()))
	require.NoError(t, err)

	notified := false
	a.Listen(func(bool) { notified = true })

	require.NoError(t, a.SignOut(context.Background()))
	assert.False(t, notified)
}

func TestAuthenticator_ListenCancel(t *testing.T) {
	srv := newOAuthServer(t)
	a, err := NewAuthenticator("client", "secret", "", nil, srv.options(newMemStore(), fixedCode("c"))...)
	require.NoError(t, err)

	calls := 0
	cancel := a.Listen(func(bool) { calls++ })
	cancel()

	require.NoError(t, a.SignIn(context.Background()))
	assert.Zero(t, calls)
}

func TestNewAuthenticator_InvalidAccount(t *testing.T) {
	_, err := NewAuthenticator("client", "secret", "../x", nil)
	assert.Error(t, err)
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare code", "  4/abc  ", "4/abc", false},
		{"redirect URL", "http://localhost/?state=s&code=4%2Fabc&scope=x", "4/abc", false},
		{"denied", "http://localhost/?error=access_denied", "", true},
		{"URL without code", "http://localhost/?state=s", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractCode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptCode(t *testing.T) {
	var out strings.Builder
	code, err := promptCode(context.Background(), &out, strings.NewReader("the-code\n"), "https://auth.example/x")

	require.NoError(t, err)
	assert.Equal(t, "the-code", code)
	assert.Contains(t, out.String(), "https://auth.example/x")
}

func TestPromptCode_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w := io.Pipe()
	defer w.Close()

	_, err := promptCode(ctx, &strings.Builder{}, r, "https://auth.example/x")
	assert.ErrorIs(t, err, context.Canceled)
}
