// Package auth captures and stores the X.com session used by headless harvests.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/logging"
)

// LoginTimeout is how long the user has to finish logging in
const LoginTimeout = 5 * time.Minute

// Manager handles X.com authentication
type Manager struct {
	cookieStore *CookieStore
	log         zerolog.Logger
}

// NewManager creates a new auth manager
func NewManager(cookieStore *CookieStore, log zerolog.Logger) *Manager {
	return &Manager{
		cookieStore: cookieStore,
		log:         logging.Component(log, "auth"),
	}
}

// IsAuthenticated checks if we have valid stored credentials
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// Login opens a visible browser window on the X login page and waits until the
// user reaches the home timeline, then stores the session cookies.
func (m *Manager) Login(ctx context.Context) error {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		browser.Options(false, chromedp.Flag("start-maximized", true))...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	m.log.Info().Msg("Waiting for login in the browser window")

	err := chromedp.Run(browserCtx,
		browser.Stealth(),
		chromedp.Navigate("https://x.com/login"),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	if err := m.waitForLogin(browserCtx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cookies, err := extractCookies(browserCtx)
	if err != nil {
		return fmt.Errorf("failed to extract cookies: %w", err)
	}

	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	m.log.Info().Int("cookies", len(cookies)).Msg("Login captured")
	return nil
}

// waitForLogin polls until the user has successfully logged in
func (m *Manager) waitForLogin(ctx context.Context) error {
	timeout := time.After(LoginTimeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("login timeout exceeded")
		case <-ticker.C:
			var url string
			if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
				m.log.Debug().Err(err).Msg("Could not read location")
				continue
			}
			if !IsHomeURL(url) {
				continue
			}

			// the home page can render briefly before the session cookie is set
			cookies, err := extractCookies(ctx)
			if err != nil {
				continue
			}
			if hasSession(cookies) {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// IsHomeURL reports whether url is the logged-in home timeline
func IsHomeURL(url string) bool {
	url, _, _ = strings.Cut(url, "?")
	switch strings.TrimSuffix(url, "/") {
	case "https://x.com/home", "https://twitter.com/home":
		return true
	}
	return false
}

func hasSession(cookies []*network.Cookie) bool {
	for _, c := range cookies {
		if c.Name == cookieAuthToken && c.Value != "" {
			return true
		}
	}
	return false
}

// extractCookies gets all cookies from the browser
func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)

	return cookies, err
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.cookieStore.Clear()
}

// Cookies returns the stored session cookies, or ErrNotAuthenticated
func (m *Manager) Cookies() ([]*network.Cookie, error) {
	return m.cookieStore.XCookies()
}
