// Package guard navigates pages safely: bounded waits, consent-wall
// handling and detection of bot challenges and interstitials.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-mcp/internal/browser"
	"github.com/polzovatel/web-research-mcp/internal/fault"
)

const (
	DefaultNavigationTimeout = 15 * time.Second
	DefaultIdleTimeout       = 5 * time.Second
)

type Config struct {
	NavigationTimeout time.Duration
	IdleTimeout       time.Duration
}

type Guard struct {
	cfg    Config
	logger zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Guard {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Guard{cfg: cfg, logger: logger}
}

// SafeNavigate loads url and rejects pages that failed to load or that are
// not genuine content.
func (g *Guard) SafeNavigate(ctx context.Context, page browser.Page, url string) (Verdict, error) {
	v, err := g.navigate(ctx, page, url)
	if err != nil {
		return v, fmt.Errorf("navigate to %s: %w", url, err)
	}
	return v, nil
}

func (g *Guard) navigate(ctx context.Context, page browser.Page, url string) (Verdict, error) {
	if err := page.AddCookies(ctx, ConsentCookie); err != nil {
		g.logger.Debug().Err(err).Msg("consent cookie not set")
	}

	resp, err := page.Goto(ctx, url, g.cfg.NavigationTimeout)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", fault.ErrNavigation, err)
	}
	if resp == nil {
		return Verdict{}, fmt.Errorf("%w: no response received", fault.ErrNavigation)
	}
	if resp.Status >= 400 {
		return Verdict{}, fmt.Errorf("%w: HTTP %d: %s", fault.ErrNavigation, resp.Status, resp.StatusText)
	}

	if err := page.WaitForNetworkIdle(ctx, g.cfg.IdleTimeout); err != nil {
		if ctx.Err() != nil {
			return Verdict{}, ctx.Err()
		}
		g.logger.Debug().Err(err).Str("url", url).Msg("network not idle, continuing")
	}

	v, err := Evaluate(ctx, page, Hostility)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", fault.ErrNavigation, err)
	}
	g.logger.Debug().
		Str("url", url).
		Str("title", v.Title).
		Int("words", v.WordCount).
		Bool("bot_protection", v.BotProtection).
		Msg("page verdict")
	return v, Assess(v)
}

// DismissConsent clicks the accept button of a consent wall on the known
// search-engine domains. It never fails; problems are logged and ignored.
func (g *Guard) DismissConsent(ctx context.Context, page browser.Page) bool {
	current := page.URL()
	if !IsConsentDomain(current) {
		return false
	}
	banner, err := Evaluate(ctx, page, ConsentBanner)
	if err != nil {
		g.logger.Debug().Err(err).Msg("consent probe failed")
		return false
	}
	if !banner.Present {
		return false
	}
	res, err := Evaluate(ctx, page, ConsentAccept)
	if err != nil {
		g.logger.Debug().Err(err).Msg("consent handling failed")
		return false
	}
	if res.Clicked {
		g.logger.Debug().Str("url", current).Msg("consent dismissed")
	}
	return res.Clicked
}
