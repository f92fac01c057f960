package browser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

const defaultActionTime = 10 * time.Second

// LaunchOptions configure the chromium process.
type LaunchOptions struct {
	Headless bool
	// Install downloads the chromium build on first launch.
	Install bool
}

// Launcher starts playwright-driven chromium processes.
type Launcher struct {
	opts LaunchOptions
}

func NewLauncher(opts LaunchOptions) *Launcher {
	return &Launcher{opts: opts}
}

// Launch starts the playwright driver and a chromium process. Driver output
// is discarded because stdout may carry the tool transport.
func (l *Launcher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if l.opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &pwBrowser{pw: pw, browser: b}, nil
}

type pwBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func (b *pwBrowser) IsConnected() bool {
	return b.browser != nil && b.browser.IsConnected()
}

func (b *pwBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	pg.SetDefaultTimeout(float64(defaultActionTime.Milliseconds()))
	return &page{context: bctx, page: pg}, nil
}

func (b *pwBrowser) Close() error {
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.pw != nil {
		return b.pw.Stop()
	}
	return nil
}

type page struct {
	context playwright.BrowserContext
	page    playwright.Page
}

func (p *page) URL() string {
	return p.page.URL()
}

func (p *page) IsClosed() bool {
	return p.page.IsClosed()
}

func (p *page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title, err := p.page.Title()
	return title, wrap(err)
}

func (p *page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := p.page.Content()
	return html, wrap(err)
}

func (p *page) AddCookies(ctx context.Context, cookies ...Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pwCookies := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		oc := playwright.OptionalCookie{Name: c.Name, Value: c.Value}
		if c.Domain != "" {
			oc.Domain = playwright.String(c.Domain)
		}
		if c.Path != "" {
			oc.Path = playwright.String(c.Path)
		}
		pwCookies = append(pwCookies, oc)
	}
	return wrap(p.context.AddCookies(pwCookies))
}

func (p *page) Goto(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, wrap(err)
	}
	if resp == nil {
		return nil, nil
	}
	return &Response{Status: resp.Status(), StatusText: resp.StatusText()}, nil
}

func (p *page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}))
}

func (p *page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = defaultActionTime
	}
	return wrap(p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}))
}

func (p *page) HasElement(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := p.page.Locator(selector).Count()
	if err != nil {
		return false, wrap(err)
	}
	return n > 0, nil
}

func (p *page) ReplaceText(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := p.page.Locator(selector).First()
	if err := loc.Click(playwright.LocatorClickOptions{ClickCount: playwright.Int(3)}); err != nil {
		return wrap(err)
	}
	if err := loc.Press("Backspace"); err != nil {
		return wrap(err)
	}
	return wrap(loc.PressSequentially(text))
}

func (p *page) Submit(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Keyboard().Press("Enter"); err != nil {
		return wrap(err)
	}
	return p.WaitForNetworkIdle(ctx, timeout)
}

func (p *page) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := p.page.Evaluate(script, arg)
	return val, wrap(err)
}

func (p *page) SetViewportSize(ctx context.Context, width, height int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(p.page.SetViewportSize(width, height))
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(false),
	})
	return data, wrap(err)
}

func (p *page) Close() error {
	if p.page != nil && !p.page.IsClosed() {
		_ = p.page.Close()
	}
	if p.context != nil {
		return wrap(p.context.Close())
	}
	return nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}
