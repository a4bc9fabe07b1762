// Package app wires configuration, authentication, browser sessions and storage
// into the operations exposed by the command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xharvest/internal/auth"
	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/events"
	"github.com/ibeckermayer/xharvest/internal/harvest"
	"github.com/ibeckermayer/xharvest/internal/logging"
	"github.com/ibeckermayer/xharvest/internal/scraper"
	"github.com/ibeckermayer/xharvest/internal/store"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// ErrHarvestActive is returned when a second harvest is started in the same process
var ErrHarvestActive = errors.New("a harvest is already running")

// Page is an open list page a harvest can run against
type Page interface {
	// Context is derived from the context the page was opened with
	Context() context.Context
	Close()
	Extractor() harvest.Extractor
	Driver(increment int, settle time.Duration, tolerance int) harvest.ScrollDriver
}

// Opener opens a list page with the given session cookies
type Opener func(ctx context.Context, url string, cookies []*network.Cookie) (Page, error)

// Options configure New. Open and Cookies default to a chromedp scraper and Auth.
type Options struct {
	Config   *config.Config
	CacheDir string
	Auth     *auth.Manager
	Log      zerolog.Logger
	Open     Opener
	Cookies  func() ([]*network.Cookie, error)
}

// App holds the application state.
type App struct {
	mu          sync.RWMutex
	authManager *auth.Manager // immutable after creation
	history     *store.Store
	cacheDir    string
	cookies     func() ([]*network.Cookie, error)
	customOpen  bool
	rootLog     zerolog.Logger
	log         zerolog.Logger
	busy        atomic.Bool

	// Mutable fields - use getSnapshot() for concurrent access.
	config  *config.Config
	open    Opener
	backend backend

	// openURL shows a generated report; replaced in tests
	openURL func(path string) error
}

// snapshot holds fields that may be replaced by ReloadConfig.
type snapshot struct {
	config  *config.Config
	open    Opener
	backend backend
}

func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:  a.config,
		open:    a.open,
		backend: a.backend,
	}
}

// New opens the run history database and the configured checkpoint backend
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.CacheDir == "" {
		dir, err := config.CacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
		}
		opts.CacheDir = dir
	}

	dbPath, err := opts.Config.SQLitePath()
	if err != nil {
		return nil, err
	}
	history, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	be, err := openBackend(opts.Config, opts.CacheDir, history)
	if err != nil {
		history.Close()
		return nil, err
	}

	a := &App{
		authManager: opts.Auth,
		history:     history,
		cacheDir:    opts.CacheDir,
		cookies:     opts.Cookies,
		customOpen:  opts.Open != nil,
		rootLog:     opts.Log,
		log:         logging.Component(opts.Log, "app"),
		config:      opts.Config,
		open:        opts.Open,
		backend:     be,
		openURL:     openInBrowser,
	}
	if a.open == nil {
		a.open = scraperOpener(opts.Config, opts.Log)
	}
	if a.cookies == nil {
		a.cookies = a.sessionCookies
	}
	return a, nil
}

// Close releases the backend and the history database
func (a *App) Close() error {
	s := a.getSnapshot()
	return errors.Join(s.backend.Close(), a.history.Close())
}

// Config returns the active configuration
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// ReloadConfig swaps in a new configuration. It is refused while a harvest runs
// because the running harvest holds the old backend.
func (a *App) ReloadConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if a.busy.Load() {
		return ErrHarvestActive
	}

	be, err := openBackend(cfg, a.cacheDir, a.history)
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.backend
	a.config = cfg
	a.backend = be
	if !a.customOpen {
		a.open = scraperOpener(cfg, a.rootLog)
	}
	a.mu.Unlock()

	a.log.Info().Str("backend", cfg.Harvest.CheckpointBackend).Msg("Config reloaded")
	return old.Close()
}

func (a *App) sessionCookies() ([]*network.Cookie, error) {
	if a.authManager == nil {
		return nil, auth.ErrNotAuthenticated
	}
	return a.authManager.Cookies()
}

// IsAuthenticated reports whether a usable X session is stored
func (a *App) IsAuthenticated() bool {
	_, err := a.cookies()
	return err == nil
}

// Login opens a browser window and waits for the user to sign in to X
func (a *App) Login(ctx context.Context) error {
	if a.authManager == nil {
		return errors.New("no auth manager configured")
	}
	a.log.Info().Msg("Login triggered")
	if err := a.authManager.Login(ctx); err != nil {
		a.log.Error().Err(err).Msg("Login failed")
		return err
	}
	return nil
}

// Logout clears the stored session
func (a *App) Logout() error {
	if a.authManager == nil {
		return nil
	}
	if err := a.authManager.Logout(); err != nil {
		return err
	}
	a.log.Info().Msg("Session cleared")
	return nil
}

// RequestStop asks the running harvest, in this or another process, to stop at its
// next iteration
func (a *App) RequestStop(ctx context.Context) error {
	s := a.getSnapshot()
	if err := ping(ctx, s.backend); err != nil {
		return err
	}
	if err := s.backend.Signal().RequestStop(ctx); err != nil {
		return fmt.Errorf("failed to request stop: %w", err)
	}
	a.log.Info().Str("backend", s.config.Harvest.CheckpointBackend).Msg("Stop requested")
	return nil
}

// History returns the most recent runs, newest first. An empty listType returns all.
func (a *App) History(ctx context.Context, listType types.ListType, limit int) ([]store.Run, error) {
	return a.history.RecentRuns(ctx, listType, limit)
}

// sink fans events out to the log, the caller's sink and SQS when configured
func (a *App) sink(ctx context.Context, cfg *config.Config, extra events.Sink) (events.Sink, error) {
	sinks := events.Multi{events.NewLogSink(a.log)}
	if extra != nil {
		sinks = append(sinks, extra)
	}
	if url := cfg.Events.SQSQueueURL; url != "" {
		sqsSink, err := events.NewSQSSinkFromEnv(ctx, url)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sqsSink)
	}
	return sinks, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// sessionPage adapts a chromedp session to Page
type sessionPage struct {
	*scraper.Session
}

func (p sessionPage) Extractor() harvest.Extractor {
	return p.Session.Extractor()
}

func (p sessionPage) Driver(increment int, settle time.Duration, tolerance int) harvest.ScrollDriver {
	return scraper.NewDriver(increment, settle, tolerance)
}

func scraperOpener(cfg *config.Config, log zerolog.Logger) Opener {
	sc := scraper.New(cfg.Browser.Headless, time.Duration(cfg.Browser.NavigateTimeoutSec)*time.Second, log)
	return func(ctx context.Context, url string, cookies []*network.Cookie) (Page, error) {
		sess, err := sc.Open(ctx, url, cookies)
		if err != nil {
			return nil, err
		}
		return sessionPage{sess}, nil
	}
}
