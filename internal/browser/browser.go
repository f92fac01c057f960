package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Response is what a navigation returned, as far as callers care.
type Response struct {
	Status     int
	StatusText string
}

// Cookie is set on the page's browser context before navigation.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Page exposes the page actions research operations drive.
type Page interface {
	URL() string
	Title(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	IsClosed() bool
	AddCookies(ctx context.Context, cookies ...Cookie) error
	// Goto returns a nil Response when the browser reported none.
	Goto(ctx context.Context, url string, timeout time.Duration) (*Response, error)
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	HasElement(ctx context.Context, selector string) (bool, error)
	// ReplaceText selects the element's current text, deletes it and types text.
	ReplaceText(ctx context.Context, selector, text string) error
	// Submit presses Enter and waits up to timeout for network idle.
	Submit(ctx context.Context, timeout time.Duration) error
	Evaluate(ctx context.Context, script string, arg any) (any, error)
	SetViewportSize(ctx context.Context, width, height int) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Browser is one launched browser process.
type Browser interface {
	IsConnected() bool
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// LaunchFunc starts a new browser process.
type LaunchFunc func(ctx context.Context) (Browser, error)

// Session owns exactly one browser and one foreground page. Both are
// replaced wholesale when they die. Session is not safe for concurrent use.
type Session struct {
	launch  LaunchFunc
	logger  zerolog.Logger
	browser Browser
	page    Page
}

func NewSession(launch LaunchFunc, logger zerolog.Logger) *Session {
	return &Session{launch: launch, logger: logger}
}

// EnsurePage returns a ready page, launching a browser when none is running
// or the current one is disconnected, and opening a new page when the
// current one was closed.
func (s *Session) EnsurePage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.browser == nil || !s.browser.IsConnected() {
		if s.browser != nil {
			s.logger.Warn().Msg("browser disconnected, relaunching")
			_ = s.browser.Close()
		}
		s.browser, s.page = nil, nil
		b, err := s.launch(ctx)
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		s.browser = b
		s.logger.Info().Msg("browser launched")
	}
	if s.page == nil || s.page.IsClosed() {
		p, err := s.browser.NewPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("new page: %w", err)
		}
		s.page = p
		s.logger.Debug().Msg("page opened")
	}
	return s.page, nil
}

// Active reports whether a live browser is held.
func (s *Session) Active() bool {
	return s.browser != nil && s.browser.IsConnected()
}

// Close releases the page and the browser process. It is safe to call on a
// session that never launched and to call more than once; a later
// EnsurePage relaunches.
func (s *Session) Close() error {
	var errs []error
	if s.page != nil && !s.page.IsClosed() {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		s.logger.Info().Msg("browser closed")
	}
	s.browser, s.page = nil, nil
	return errors.Join(errs...)
}
