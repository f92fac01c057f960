package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/polzovatel/web-research-mcp/internal/fault"
)

// Heuristic names a page-side check.
type Heuristic string

const (
	Hostility     Heuristic = "hostility"
	ConsentBanner Heuristic = "consent-banner"
	ConsentAccept Heuristic = "consent-accept"
)

// Verdict is the structured outcome of a heuristic. Fields a heuristic does
// not produce stay zero.
type Verdict struct {
	BotProtection   bool   `json:"botProtection"`
	SuspiciousTitle bool   `json:"suspiciousTitle"`
	WordCount       int    `json:"wordCount"`
	Title           string `json:"title"`
	Present         bool   `json:"present"`
	Clicked         bool   `json:"clicked"`
}

// Evaluator runs a script in the page with a single argument.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, arg any) (any, error)
}

// The scripts carry no vocabulary of their own; the tables are passed in.
const hostilityScript = `(v) => {
	const botProtection = v.markers.some(sel => {
		try { return !!document.querySelector(sel); } catch (e) { return false; }
	});
	const title = document.title || '';
	const lower = title.toLowerCase();
	const suspiciousTitle = v.phrases.some(p => lower.includes(p));
	const text = ((document.body && document.body.innerText) || '').trim();
	const wordCount = text === '' ? 0 : text.split(/\s+/).length;
	return { botProtection, suspiciousTitle, wordCount, title };
}`

const consentBannerScript = `(v) => {
	const present = v.containers.some(sel => {
		try { return !!document.querySelector(sel); } catch (e) { return false; }
	});
	return { present };
}`

const consentAcceptScript = `(v) => {
	const button = Array.from(document.querySelectorAll('button')).find(b => {
		const text = (b.textContent || '').toLowerCase();
		const label = (b.getAttribute('aria-label') || '').toLowerCase();
		return v.phrases.some(p => text.includes(p)) || v.labels.some(p => label.includes(p));
	});
	if (button) {
		button.click();
		return { present: true, clicked: true };
	}
	return { present: false, clicked: false };
}`

func scriptFor(h Heuristic) (string, map[string]any, error) {
	switch h {
	case Hostility:
		return hostilityScript, map[string]any{
			"markers": ChallengeMarkers,
			"phrases": SuspiciousTitlePhrases,
		}, nil
	case ConsentBanner:
		return consentBannerScript, map[string]any{"containers": ConsentContainers}, nil
	case ConsentAccept:
		return consentAcceptScript, map[string]any{
			"phrases": ConsentPhrases,
			"labels":  ConsentARIALabels,
		}, nil
	default:
		return "", nil, fmt.Errorf("unknown heuristic %q", h)
	}
}

// Evaluate runs heuristic h in the page and decodes its verdict.
func Evaluate(ctx context.Context, page Evaluator, h Heuristic) (Verdict, error) {
	script, arg, err := scriptFor(h)
	if err != nil {
		return Verdict{}, err
	}
	val, err := page.Evaluate(ctx, script, arg)
	if err != nil {
		return Verdict{}, fmt.Errorf("evaluate %s: %w", h, err)
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return Verdict{}, fmt.Errorf("encode %s verdict: %w", h, err)
	}
	var v Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return Verdict{}, fmt.Errorf("decode %s verdict: %w", h, err)
	}
	return v, nil
}

// Assess turns a hostility verdict into an error when the page is a
// challenge, an interstitial, or has too little text to be real content.
func Assess(v Verdict) error {
	switch {
	case v.BotProtection:
		return fmt.Errorf("%w: bot protection detected", fault.ErrHostileContent)
	case v.SuspiciousTitle || TitleSuspicious(v.Title):
		return fmt.Errorf("%w: suspicious page title %q", fault.ErrHostileContent, v.Title)
	case v.WordCount < MinWordCount:
		return fmt.Errorf("%w: page contains insufficient content (%d words)", fault.ErrHostileContent, v.WordCount)
	}
	return nil
}

// TitleSuspicious reports whether title contains an interstitial phrase.
func TitleSuspicious(title string) bool {
	lower := strings.ToLower(title)
	for _, p := range SuspiciousTitlePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// MatchesConsent reports whether a button with this text or aria-label
// would be clicked by the consent heuristic.
func MatchesConsent(text, ariaLabel string) bool {
	text, ariaLabel = strings.ToLower(text), strings.ToLower(ariaLabel)
	for _, p := range ConsentPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	for _, p := range ConsentARIALabels {
		if strings.Contains(ariaLabel, p) {
			return true
		}
	}
	return false
}

// IsConsentDomain reports whether the URL's host is, or is a subdomain
// of, one of ConsentDomains. Only the host is matched; regional domains
// not in the table are not consent domains.
func IsConsentDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := "." + strings.ToLower(u.Hostname())
	for _, d := range ConsentDomains {
		if strings.HasSuffix(host, d) {
			return true
		}
	}
	return false
}

// CountWords counts whitespace-separated words the way the page-side
// heuristic does.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
