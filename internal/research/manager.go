// Package research composes the browser session, navigation guard,
// screenshot pipeline and session history into the search, visit and
// screenshot operations.
package research

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-mcp/internal/browser"
	"github.com/polzovatel/web-research-mcp/internal/extract"
	"github.com/polzovatel/web-research-mcp/internal/fault"
	"github.com/polzovatel/web-research-mcp/internal/guard"
	"github.com/polzovatel/web-research-mcp/internal/retry"
	"github.com/polzovatel/web-research-mcp/internal/screenshot"
	"github.com/polzovatel/web-research-mcp/internal/session"
)

const (
	DefaultSearchURL       = "https://www.google.com"
	DefaultSelectorTimeout = 5 * time.Second
	DefaultTypingDelay     = 2 * time.Second
	UntitledPage           = "Untitled Page"
	ScreenshotContent      = "Screenshot taken"
)

// SearchInputSelectors locate the query box, most specific first.
var SearchInputSelectors = []string{
	`input[name="q"]`,
	`textarea[name="q"]`,
	`input[type="text"]`,
}

// Pages hands out the single foreground page. *browser.Session implements it.
type Pages interface {
	EnsurePage(ctx context.Context) (browser.Page, error)
	Close() error
}

type Config struct {
	SearchURL          string
	SelectorTimeout    time.Duration
	TypingDelay        time.Duration
	Guard              guard.Config
	Retry              retry.Policy
	MaxScreenshotBytes int
	ScreenshotDir      string
	HistoryCapacity    int
}

func (c Config) withDefaults() Config {
	if c.SearchURL == "" {
		c.SearchURL = DefaultSearchURL
	}
	if c.SelectorTimeout <= 0 {
		c.SelectorTimeout = DefaultSelectorTimeout
	}
	if c.TypingDelay <= 0 {
		c.TypingDelay = DefaultTypingDelay
	}
	if c.Guard.NavigationTimeout <= 0 {
		c.Guard.NavigationTimeout = guard.DefaultNavigationTimeout
	}
	if c.Guard.IdleTimeout <= 0 {
		c.Guard.IdleTimeout = guard.DefaultIdleTimeout
	}
	if c.Retry.Attempts <= 0 {
		c.Retry = retry.DefaultPolicy()
	}
	if c.MaxScreenshotBytes <= 0 {
		c.MaxScreenshotBytes = screenshot.DefaultMaxBytes
	}
	return c
}

// VisitResult is the payload of a visited page. ScreenshotRef is the
// history index of the result when a screenshot was captured.
type VisitResult struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	ScreenshotRef *int      `json:"screenshotRef,omitempty"`
	ScreenshotURI string    `json:"screenshotUri,omitempty"`
}

type ScreenshotResult struct {
	Message       string `json:"message"`
	ScreenshotRef int    `json:"screenshotRef"`
	ScreenshotURI string `json:"screenshotUri"`
}

// Manager runs research operations against one browser page. Operations
// are serialized; the page is never driven by two callers at once.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	pages     Pages
	guard     *guard.Guard
	bounder   *screenshot.Bounder
	store     *screenshot.Store
	history   *session.History
	extractor *extract.Extractor
	logger    zerolog.Logger
	now       func() time.Time
}

func NewManager(pages Pages, cfg Config, logger zerolog.Logger) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:       cfg,
		pages:     pages,
		guard:     guard.New(cfg.Guard, logger.With().Str("comp", "guard").Logger()),
		bounder:   screenshot.NewBounder(cfg.MaxScreenshotBytes, logger.With().Str("comp", "screenshot").Logger()),
		store:     screenshot.NewStore(cfg.ScreenshotDir, cfg.MaxScreenshotBytes),
		history:   session.NewHistory(cfg.HistoryCapacity),
		extractor: extract.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s: only http and https URLs are supported", fault.ErrInvalidInput, raw)
	}
	return nil
}

// Search runs query on the search engine and records every hit.
func (m *Manager) Search(ctx context.Context, query string) ([]extract.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", fault.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pages.EnsurePage(ctx)
	if err != nil {
		return nil, err
	}
	hits, err := retry.Do(ctx, m.cfg.Retry, m.logger, func(ctx context.Context) ([]extract.Hit, error) {
		return m.search(ctx, page, query)
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	m.history.SetLabelIfEmpty(query)
	for _, h := range hits {
		m.history.Add(session.Result{
			Kind:      session.SearchHit,
			URL:       h.URL,
			Title:     h.Title,
			Content:   h.Snippet,
			Timestamp: m.now(),
		})
	}
	m.logger.Info().Str("query", query).Int("hits", len(hits)).Msg("search done")
	return hits, nil
}

func (m *Manager) search(ctx context.Context, page browser.Page, query string) ([]extract.Hit, error) {
	if _, err := m.guard.SafeNavigate(ctx, page, m.cfg.SearchURL); err != nil {
		return nil, err
	}
	m.guard.DismissConsent(ctx, page)

	typing := m.cfg.Retry.WithDelay(m.cfg.TypingDelay)
	if err := retry.Run(ctx, typing, m.logger, func(ctx context.Context) error {
		return m.typeQuery(ctx, page, query)
	}); err != nil {
		return nil, err
	}
	if err := retry.Run(ctx, m.cfg.Retry, m.logger, func(ctx context.Context) error {
		return page.Submit(ctx, m.cfg.Guard.NavigationTimeout)
	}); err != nil {
		return nil, fmt.Errorf("submit query: %w", err)
	}
	return retry.Do(ctx, m.cfg.Retry, m.logger, func(ctx context.Context) ([]extract.Hit, error) {
		html, err := page.Content(ctx)
		if err != nil {
			return nil, fmt.Errorf("read results page: %w", err)
		}
		hits, err := extract.ParseSearchResults(html)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			return nil, fmt.Errorf("%w: no search results found", fault.ErrExtraction)
		}
		return hits, nil
	})
}

func (m *Manager) typeQuery(ctx context.Context, page browser.Page, query string) error {
	if err := page.WaitForSelector(ctx, strings.Join(SearchInputSelectors, ", "), m.cfg.SelectorTimeout); err != nil {
		return fmt.Errorf("wait for search input: %w", err)
	}
	for _, sel := range SearchInputSelectors {
		ok, err := page.HasElement(ctx, sel)
		if err != nil {
			return err
		}
		if ok {
			return page.ReplaceText(ctx, sel, query)
		}
	}
	return errors.New("search input element not found after waiting")
}

// Visit loads rawURL, extracts its main content as markdown and records a
// page visit, optionally with a bounded screenshot.
func (m *Manager) Visit(ctx context.Context, rawURL string, takeScreenshot bool) (VisitResult, error) {
	if err := ValidateURL(rawURL); err != nil {
		return VisitResult{}, err
	}
	rawURL = strings.TrimSpace(rawURL)

	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pages.EnsurePage(ctx)
	if err != nil {
		return VisitResult{}, err
	}
	r, err := retry.Do(ctx, m.cfg.Retry, m.logger, func(ctx context.Context) (session.Result, error) {
		return m.visit(ctx, page, rawURL, takeScreenshot)
	})
	if err != nil {
		return VisitResult{}, fmt.Errorf("visit %s: %w", rawURL, err)
	}

	idx := m.history.Add(r)
	out := VisitResult{URL: r.URL, Title: r.Title, Content: r.Content, Timestamp: r.Timestamp}
	if r.ScreenshotPath != "" {
		out.ScreenshotRef = &idx
		out.ScreenshotURI = session.ScreenshotURI(idx)
	}
	m.logger.Info().Str("url", rawURL).Bool("screenshot", takeScreenshot).Msg("page visited")
	return out, nil
}

func (m *Manager) visit(ctx context.Context, page browser.Page, rawURL string, takeScreenshot bool) (session.Result, error) {
	if _, err := m.guard.SafeNavigate(ctx, page, rawURL); err != nil {
		return session.Result{}, err
	}
	title, err := page.Title(ctx)
	if err != nil {
		return session.Result{}, fmt.Errorf("read title: %w", err)
	}
	content, err := retry.Do(ctx, m.cfg.Retry, m.logger, func(ctx context.Context) (string, error) {
		html, err := page.Content(ctx)
		if err != nil {
			return "", fmt.Errorf("read page: %w", err)
		}
		md, err := m.extractor.Extract(html, "", page.URL())
		if err != nil {
			return "", fmt.Errorf("%w: %v", fault.ErrExtraction, err)
		}
		if md == "" {
			return "", fmt.Errorf("%w: no content extracted", fault.ErrExtraction)
		}
		return md, nil
	})
	if err != nil {
		return session.Result{}, err
	}

	r := session.Result{
		Kind:      session.PageVisit,
		URL:       rawURL,
		Title:     title,
		Content:   content,
		Timestamp: m.now(),
	}
	if takeScreenshot {
		if r.ScreenshotPath, err = m.capture(ctx, page, title); err != nil {
			return session.Result{}, err
		}
	}
	return r, nil
}

// capture runs the bounded capture and persists the image. Both stages
// check the byte cap.
func (m *Manager) capture(ctx context.Context, page browser.Page, title string) (string, error) {
	shot, err := m.bounder.Capture(ctx, page)
	if err != nil {
		return "", err
	}
	encoded, err := screenshot.Encode(shot, m.bounder.MaxBytes())
	if err != nil {
		return "", err
	}
	return m.store.Save(encoded, title)
}

// Screenshot captures the current page without navigating.
func (m *Manager) Screenshot(ctx context.Context) (ScreenshotResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pages.EnsurePage(ctx)
	if err != nil {
		return ScreenshotResult{}, err
	}
	shot, err := retry.Do(ctx, m.cfg.Retry, m.logger, func(ctx context.Context) ([]byte, error) {
		return m.bounder.Capture(ctx, page)
	})
	if err != nil {
		return ScreenshotResult{}, fmt.Errorf("take screenshot: %w", err)
	}
	m.history.SetLabelIfEmpty(session.DefaultScreenshotLabel)

	title, err := page.Title(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Msg("page title unavailable")
		title = ""
	}
	encoded, err := screenshot.Encode(shot, m.bounder.MaxBytes())
	if err != nil {
		return ScreenshotResult{}, err
	}
	path, err := m.store.Save(encoded, title)
	if err != nil {
		return ScreenshotResult{}, fmt.Errorf("save screenshot: %w", err)
	}
	if title == "" {
		title = UntitledPage
	}

	idx := m.history.Add(session.Result{
		Kind:           session.ScreenshotOnly,
		URL:            page.URL(),
		Title:          title,
		Content:        ScreenshotContent,
		Timestamp:      m.now(),
		ScreenshotPath: path,
	})
	uri := session.ScreenshotURI(idx)
	return ScreenshotResult{
		Message:       "Screenshot taken successfully. View it via resource " + uri,
		ScreenshotRef: idx,
		ScreenshotURI: uri,
	}, nil
}

func (m *Manager) Summary() session.Summary {
	return m.history.Summary()
}

// ScreenshotByIndex returns the PNG stored with the result at index.
func (m *Manager) ScreenshotByIndex(index int) ([]byte, error) {
	path, err := m.history.ScreenshotPath(index)
	if err != nil {
		return nil, err
	}
	return m.store.Read(path)
}

// Screenshots lists the history indexes that carry a screenshot.
func (m *Manager) Screenshots() []int {
	return m.history.Screenshots()
}

// Reset starts a new session generation and deletes its screenshots. The
// browser stays up.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Reset()
	m.logger.Info().Str("session", m.history.ID()).Msg("session reset")
	return m.store.Purge()
}

// Close shuts the browser down and removes the screenshot directory. A later
// operation relaunches the browser.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.pages.Close(), m.store.Purge())
}

// Release shuts the browser down but leaves saved screenshots on disk.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages.Close()
}
