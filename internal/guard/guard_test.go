package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/web-research-mcp/internal/browser"
	"github.com/polzovatel/web-research-mcp/internal/browser/browsertest"
	"github.com/polzovatel/web-research-mcp/internal/fault"
)

func pageWith(verdict map[string]any) *browsertest.Page {
	p := browsertest.NewPage()
	p.EvaluateFunc = func(script string, _ any) (any, error) {
		if script == hostilityScript {
			return verdict, nil
		}
		return nil, errors.New("unexpected script")
	}
	return p
}

func healthyVerdict() map[string]any {
	return map[string]any{
		"botProtection":   false,
		"suspiciousTitle": false,
		"wordCount":       float64(250),
		"title":           "Example Domain",
	}
}

func newGuard() *Guard {
	return New(Config{}, zerolog.Nop())
}

func TestSafeNavigate_OK(t *testing.T) {
	p := pageWith(healthyVerdict())

	v, err := newGuard().SafeNavigate(context.Background(), p, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Example Domain", v.Title)
	assert.Equal(t, 250, v.WordCount)
	assert.Equal(t, []string{"https://example.com"}, p.Visits)
	require.Len(t, p.Cookies, 1)
	assert.Equal(t, ConsentCookie, p.Cookies[0])
}

func TestSafeNavigate_SuspiciousTitleWithStatus200(t *testing.T) {
	verdict := healthyVerdict()
	verdict["title"] = "Just a moment..."
	p := pageWith(verdict)

	_, err := newGuard().SafeNavigate(context.Background(), p, "https://example.com")
	require.ErrorIs(t, err, fault.ErrHostileContent)
	assert.Contains(t, err.Error(), "Just a moment...")
}

func TestSafeNavigate_BotProtection(t *testing.T) {
	verdict := healthyVerdict()
	verdict["botProtection"] = true
	_, err := newGuard().SafeNavigate(context.Background(), pageWith(verdict), "https://example.com")
	require.ErrorIs(t, err, fault.ErrHostileContent)
	assert.Contains(t, err.Error(), "bot protection")
}

func TestSafeNavigate_InsufficientContent(t *testing.T) {
	verdict := healthyVerdict()
	verdict["wordCount"] = float64(9)
	_, err := newGuard().SafeNavigate(context.Background(), pageWith(verdict), "https://example.com")
	require.ErrorIs(t, err, fault.ErrHostileContent)
	assert.Contains(t, err.Error(), "insufficient content")
}

func TestSafeNavigate_HTTPError(t *testing.T) {
	p := pageWith(healthyVerdict())
	p.GotoFunc = func(string) (*browser.Response, error) {
		return &browser.Response{Status: 503, StatusText: "Service Unavailable"}, nil
	}
	_, err := newGuard().SafeNavigate(context.Background(), p, "https://example.com")
	require.ErrorIs(t, err, fault.ErrNavigation)
	assert.Contains(t, err.Error(), "HTTP 503")
	assert.Empty(t, p.Evaluated, "no heuristic after a failed load")
}

func TestSafeNavigate_NoResponse(t *testing.T) {
	p := pageWith(healthyVerdict())
	p.GotoFunc = func(string) (*browser.Response, error) { return nil, nil }
	_, err := newGuard().SafeNavigate(context.Background(), p, "https://example.com")
	require.ErrorIs(t, err, fault.ErrNavigation)
	assert.Contains(t, err.Error(), "no response")
}

func TestSafeNavigate_GotoTimeout(t *testing.T) {
	p := pageWith(healthyVerdict())
	p.GotoFunc = func(string) (*browser.Response, error) {
		return nil, errors.New("Timeout 15000ms exceeded")
	}
	_, err := newGuard().SafeNavigate(context.Background(), p, "https://slow.example")
	require.ErrorIs(t, err, fault.ErrNavigation)
}

func TestSafeNavigate_IdleTimeoutIsNotFatal(t *testing.T) {
	p := pageWith(healthyVerdict())
	p.IdleErr = errors.New("networkidle timeout")
	p.CookieErr = errors.New("cookie rejected")
	_, err := newGuard().SafeNavigate(context.Background(), p, "https://example.com")
	require.NoError(t, err)
}

func TestDismissConsent(t *testing.T) {
	t.Run("skips other domains", func(t *testing.T) {
		p := browsertest.NewPage()
		p.CurrentURL = "https://example.com/"
		assert.False(t, newGuard().DismissConsent(context.Background(), p))
		assert.Empty(t, p.Evaluated)
	})

	t.Run("no banner", func(t *testing.T) {
		p := browsertest.NewPage()
		p.CurrentURL = "https://www.google.de/"
		p.EvaluateFunc = func(script string, _ any) (any, error) {
			return map[string]any{"present": false}, nil
		}
		assert.False(t, newGuard().DismissConsent(context.Background(), p))
		assert.Len(t, p.Evaluated, 1)
	})

	t.Run("clicks accept", func(t *testing.T) {
		p := browsertest.NewPage()
		p.CurrentURL = "https://www.google.com/"
		var acceptArg map[string]any
		p.EvaluateFunc = func(script string, arg any) (any, error) {
			if script == consentAcceptScript {
				acceptArg = arg.(map[string]any)
				return map[string]any{"present": true, "clicked": true}, nil
			}
			return map[string]any{"present": true}, nil
		}
		assert.True(t, newGuard().DismissConsent(context.Background(), p))
		assert.Equal(t, ConsentPhrases, acceptArg["phrases"])
		assert.Equal(t, ConsentARIALabels, acceptArg["labels"])
	})

	t.Run("swallows failures", func(t *testing.T) {
		p := browsertest.NewPage()
		p.CurrentURL = "https://www.google.fr/"
		p.EvaluateFunc = func(string, any) (any, error) { return nil, errors.New("execution context destroyed") }
		assert.False(t, newGuard().DismissConsent(context.Background(), p))
	})
}

func TestEvaluate_UnknownHeuristic(t *testing.T) {
	_, err := Evaluate(context.Background(), browsertest.NewPage(), Heuristic("nope"))
	require.Error(t, err)
}

func TestAssess(t *testing.T) {
	assert.NoError(t, Assess(Verdict{WordCount: MinWordCount, Title: "Docs"}))
	assert.ErrorIs(t, Assess(Verdict{WordCount: 500, Title: "Attention Required! | Cloudflare"}), fault.ErrHostileContent)
	assert.ErrorIs(t, Assess(Verdict{WordCount: 500, SuspiciousTitle: true}), fault.ErrHostileContent)
	assert.ErrorIs(t, Assess(Verdict{}), fault.ErrHostileContent)
}

func TestTitleSuspicious(t *testing.T) {
	for title, want := range map[string]bool{
		"Just a moment...":        true,
		"DDoS Protection by X":    true,
		"Security Check Required": true,
		"Please Wait":             true,
		"Weather today - Search":  false,
		"":                        false,
	} {
		assert.Equal(t, want, TitleSuspicious(title), title)
	}
}

func TestMatchesConsent(t *testing.T) {
	assert.True(t, MatchesConsent("Alle akzeptieren", ""))
	assert.True(t, MatchesConsent("ACCEPT ALL", ""))
	assert.True(t, MatchesConsent("", "Accept the use of cookies"))
	assert.True(t, MatchesConsent("すべて同意する", ""))
	assert.False(t, MatchesConsent("Reject all", "Reject"))
}

func TestIsConsentDomain(t *testing.T) {
	for raw, want := range map[string]bool{
		"https://www.google.com/search?q=x":  true,
		"https://google.com/":                true,
		"https://www.google.com.tr/":         true,
		"https://www.google.co.uk/":          true,
		"https://consent.google.de/ml":       true,
		"https://example.com/?q=.google.com": false,
		"https://notgoogle.com/":             false,
		"https://www.google.co.jp/":          false,
		"https://www.google.com.br/":         false,
		"not a url":                          false,
	} {
		assert.Equal(t, want, IsConsentDomain(raw), raw)
	}
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords("   "))
	assert.Equal(t, 4, CountWords(" one two\nthree\tfour "))
}
