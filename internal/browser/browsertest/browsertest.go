// Package browsertest provides scriptable stand-ins for browser.Page and
// browser.Browser.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/polzovatel/web-research-mcp/internal/browser"
)

// Viewport is a recorded SetViewportSize call.
type Viewport struct {
	Width  int
	Height int
}

// Page is an in-memory browser.Page. Zero-value hooks fall back to benign
// defaults: navigation answers 200, screenshots are 1 KiB.
type Page struct {
	mu sync.Mutex

	CurrentURL string
	PageTitle  string
	HTML       string
	Closed     bool

	// Present lists selectors that HasElement and WaitForSelector find.
	// WaitForSelector accepts a comma-separated list and matches any part.
	Present map[string]bool

	GotoFunc       func(url string) (*browser.Response, error)
	EvaluateFunc   func(script string, arg any) (any, error)
	ScreenshotFunc func(vp Viewport) ([]byte, error)
	SubmitFunc     func() error
	IdleErr        error
	CookieErr      error

	Cookies   []browser.Cookie
	Visits    []string
	Viewports []Viewport
	Typed     map[string]string
	Evaluated []string
	Shots     int
	Submits   int
}

func NewPage() *Page {
	return &Page{Present: map[string]bool{}, Typed: map[string]string{}}
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL
}

func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.PageTitle, nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.HTML, nil
}

func (p *Page) AddCookies(ctx context.Context, cookies ...browser.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.CookieErr != nil {
		return p.CookieErr
	}
	p.Cookies = append(p.Cookies, cookies...)
	return nil
}

func (p *Page) Goto(ctx context.Context, url string, _ time.Duration) (*browser.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.Visits = append(p.Visits, url)
	p.CurrentURL = url
	p.mu.Unlock()
	if p.GotoFunc != nil {
		return p.GotoFunc(url)
	}
	return &browser.Response{Status: 200, StatusText: "OK"}, nil
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.IdleErr
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, part := range strings.Split(selector, ",") {
		if p.Present[strings.TrimSpace(part)] {
			return nil
		}
	}
	return fmt.Errorf("timeout waiting for %s", selector)
}

func (p *Page) HasElement(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.Present[selector], nil
}

func (p *Page) ReplaceText(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.Present[selector] {
		return fmt.Errorf("no element %s", selector)
	}
	p.Typed[selector] = text
	return nil
}

func (p *Page) Submit(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Submits++
	if p.SubmitFunc != nil {
		return p.SubmitFunc()
	}
	return nil
}

func (p *Page) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.Evaluated = append(p.Evaluated, script)
	if p.EvaluateFunc != nil {
		return p.EvaluateFunc(script, arg)
	}
	return nil, errors.New("evaluate not scripted")
}

func (p *Page) SetViewportSize(ctx context.Context, width, height int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Viewports = append(p.Viewports, Viewport{Width: width, Height: height})
	return nil
}

// Viewport returns the last viewport set, or the zero value.
func (p *Page) Viewport() Viewport {
	if len(p.Viewports) == 0 {
		return Viewport{}
	}
	return p.Viewports[len(p.Viewports)-1]
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.Shots++
	if p.ScreenshotFunc != nil {
		return p.ScreenshotFunc(p.Viewport())
	}
	return make([]byte, 1024), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Browser is a testify mock of browser.Browser.
type Browser struct {
	mock.Mock
}

func (b *Browser) IsConnected() bool {
	return b.Called().Bool(0)
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	args := b.Called(ctx)
	p, _ := args.Get(0).(browser.Page)
	return p, args.Error(1)
}

func (b *Browser) Close() error {
	return b.Called().Error(0)
}

// Launcher hands out the queued browsers in order and counts launches.
type Launcher struct {
	mu       sync.Mutex
	Browsers []browser.Browser
	Err      error
	Launches int
}

func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	if len(l.Browsers) == 0 {
		return nil, errors.New("no browser queued")
	}
	b := l.Browsers[0]
	l.Browsers = l.Browsers[1:]
	l.Launches++
	return b, nil
}

// SinglePageBrowser is a connected browser.Browser that always returns the
// same page, reopening it when closed.
type SinglePageBrowser struct {
	Page         *Page
	Disconnected bool
	Closed       bool
}

func (b *SinglePageBrowser) IsConnected() bool { return !b.Disconnected && !b.Closed }

func (b *SinglePageBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.Page.mu.Lock()
	b.Page.Closed = false
	b.Page.mu.Unlock()
	return b.Page, nil
}

func (b *SinglePageBrowser) Close() error {
	b.Closed = true
	return nil
}
