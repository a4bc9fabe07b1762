package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/xharvest/internal/config"
)

// ErrNotAuthenticated is returned when no usable session cookies are stored
var ErrNotAuthenticated = errors.New("not logged in to X")

// Cookies X needs for an authenticated session
const (
	cookieAuthToken = "auth_token"
	cookieCSRF      = "ct0"
)

// CookieStore persists X.com session cookies on disk
type CookieStore struct {
	path string
	now  func() time.Time
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// DefaultCookieStorePath returns the default path for cookie storage
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// Save persists cookies to disk. The session expires with the first of its auth cookies.
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	var earliestExpiry time.Time
	for _, c := range cookies {
		if c.Name == cookieAuthToken || c.Name == cookieCSRF {
			exp := time.Unix(int64(c.Expires), 0)
			if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
				earliestExpiry = exp
			}
		}
	}

	stored := StoredCookies{
		Cookies:    withEnumDefaults(cookies),
		CapturedAt: cs.now(),
		ExpiresAt:  earliestExpiry,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cs.path, data, 0600)
}

// withEnumDefaults fills the enum fields cdproto refuses to decode when empty.
// The caller's cookies are not modified.
func withEnumDefaults(cookies []*network.Cookie) []*network.Cookie {
	out := make([]*network.Cookie, len(cookies))
	for i, c := range cookies {
		cp := *c
		if cp.Priority == "" {
			cp.Priority = network.CookiePriorityMedium
		}
		if cp.SourceScheme == "" {
			cp.SourceScheme = network.CookieSourceSchemeSecure
		}
		out[i] = &cp
	}
	return out
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("corrupt cookie store %s: %w", cs.path, err)
	}

	return &stored, nil
}

// Check returns nil when stored cookies hold a live session, ErrNotAuthenticated otherwise
func (cs *CookieStore) Check() error {
	stored, err := cs.Load()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotAuthenticated
		}
		return err
	}

	if !cs.now().Before(stored.ExpiresAt) {
		return fmt.Errorf("%w: session expired at %s", ErrNotAuthenticated, stored.ExpiresAt.Format(time.RFC3339))
	}

	hasAuthToken, hasCSRF := false, false
	for _, c := range stored.Cookies {
		switch c.Name {
		case cookieAuthToken:
			hasAuthToken = c.Value != ""
		case cookieCSRF:
			hasCSRF = c.Value != ""
		}
	}
	if !hasAuthToken || !hasCSRF {
		return fmt.Errorf("%w: session cookies missing", ErrNotAuthenticated)
	}
	return nil
}

// IsValid checks if stored cookies are still valid
func (cs *CookieStore) IsValid() bool {
	return cs.Check() == nil
}

// Clear removes stored cookies. Clearing an empty store is not an error.
func (cs *CookieStore) Clear() error {
	if err := os.Remove(cs.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// XCookies returns the x.com and twitter.com cookies for injection into a browser
func (cs *CookieStore) XCookies() ([]*network.Cookie, error) {
	if err := cs.Check(); err != nil {
		return nil, err
	}
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var xCookies []*network.Cookie
	for _, c := range stored.Cookies {
		switch c.Domain {
		case ".x.com", "x.com", ".twitter.com", "twitter.com":
			xCookies = append(xCookies, c)
		}
	}

	return xCookies, nil
}
