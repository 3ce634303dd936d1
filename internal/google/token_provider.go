package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/oauth2"
)

// DefaultAccount is used when no account name is configured
const DefaultAccount = "default"

// ErrNoToken is returned by a TokenStore that holds no token for an account
var ErrNoToken = errors.New("no cached OAuth token")

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateAccountName ensures the account name is safe to use in a file name
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, hyphens and underscores are allowed", account)
	}
	return nil
}

// TokenStore persists OAuth tokens per account
type TokenStore interface {
	Load(account string) (*oauth2.Token, error)
	Save(account string, token *oauth2.Token) error
	Delete(account string) error
}

// FileTokenStore keeps one JSON token file per account in a directory
type FileTokenStore struct {
	dir string
}

// NewFileTokenStore creates a store rooted at dir. An empty dir selects the
// user cache directory.
func NewFileTokenStore(dir string) *FileTokenStore {
	if dir == "" {
		dir = defaultTokenDir()
	}
	return &FileTokenStore{dir: dir}
}

func defaultTokenDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "gcalkit")
}

func (s *FileTokenStore) path(account string) string {
	return filepath.Join(s.dir, "google-"+account+".token")
}

// Load reads the token of account. It returns ErrNoToken if none is cached.
func (s *FileTokenStore) Load(account string) (*oauth2.Token, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(account))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token file for account %s: %w", account, err)
	}
	return &token, nil
}

// Save writes the token of account, readable only by the current user
func (s *FileTokenStore) Save(account string, token *oauth2.Token) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(s.path(account), data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Delete removes the token of account. A missing token is not an error.
func (s *FileTokenStore) Delete(account string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	if err := os.Remove(s.path(account)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
