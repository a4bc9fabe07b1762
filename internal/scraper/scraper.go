// Package scraper opens X.com list pages in Chrome and reads them through chromedp.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/logging"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// Scraper opens browser sessions on X.com
type Scraper struct {
	headless        bool
	navigateTimeout time.Duration
	log             zerolog.Logger
}

// New creates a new scraper
func New(headless bool, navigateTimeout time.Duration, log zerolog.Logger) *Scraper {
	if navigateTimeout <= 0 {
		navigateTimeout = 30 * time.Second
	}
	return &Scraper{
		headless:        headless,
		navigateTimeout: navigateTimeout,
		log:             logging.Component(log, "scraper"),
	}
}

// Session is one browser tab showing a list page
type Session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	URL      string
	ListType types.ListType
}

// Context returns the chromedp context of the tab. Extractor and Driver calls must use it
// (or a context derived from it).
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close shuts the browser down
func (s *Session) Close() {
	s.cancel()
}

// Extractor returns the extractor matching the page's list type
func (s *Session) Extractor() *Extractor {
	return NewExtractor(s.ListType)
}

// Open starts Chrome, injects cookies and navigates to a list page. The page must be
// a supported list; otherwise ErrUnsupportedPage is returned before Chrome starts.
func (s *Scraper) Open(ctx context.Context, pageURL string, cookies []*network.Cookie) (*Session, error) {
	lt, err := DetectListType(pageURL)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browser.Options(s.headless)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			s.log.Debug().Msgf(format, args...)
		}),
	)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// the first Run allocates the browser and must not carry the navigation timeout
	if err := chromedp.Run(browserCtx, browser.Stealth()); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	// Inject cookies before navigation
	if len(cookies) > 0 {
		if err := injectCookies(browserCtx, cookies); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to inject cookies: %w", err)
		}
	}

	s.log.Info().Str("url", pageURL).Str("list", string(lt)).Msg("Opening list page")

	// An empty list renders no items, so only the column is waited for
	navCtx, navCancel := context.WithTimeout(browserCtx, s.navigateTimeout)
	defer navCancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(PrimaryColumn, chromedp.ByQuery),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	return &Session{ctx: browserCtx, cancel: cancel, URL: pageURL, ListType: lt}, nil
}

// injectCookies sets cookies in the browser context
func injectCookies(ctx context.Context, cookies []*network.Cookie) error {
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)

				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}
