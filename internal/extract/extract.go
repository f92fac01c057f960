// Package extract turns a navigated page's HTML into readable markdown and
// parses search-engine result pages.
package extract

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// VocabularyVersion identifies the selector tables below.
const VocabularyVersion = "2025.1"

// ContentSelectors are tried in order; the first match is the main content.
var ContentSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	"#content",
	".content",
	".main",
	".post",
	".article",
}

// BoilerplateSelectors are removed from the body when no content container
// matched.
var BoilerplateSelectors = []string{
	"header",
	"footer",
	"nav",
	`[role="navigation"]`,
	"aside",
	".sidebar",
	`[role="complementary"]`,
	".nav",
	".menu",
	".header",
	".footer",
	".advertisement",
	".ads",
	".cookie-notice",
}

type Extractor struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

func New() *Extractor {
	return &Extractor{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Extract returns the page's main content as markdown, or "" when nothing
// usable was found. baseURL resolves relative links and may be empty.
func (e *Extractor) Extract(html, selector, baseURL string) (string, error) {
	fragment, err := Select(html, selector)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	clean := e.policy.Sanitize(fragment)

	var md string
	if baseURL != "" {
		md, err = e.md.ConvertString(clean, converter.WithDomain(baseURL))
	} else {
		md, err = e.md.ConvertString(clean)
	}
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// Select picks the HTML to extract: the element matching selector when one
// is given, else the first content container, else the body stripped of
// boilerplate regions.
func Select(html, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	if selector != "" {
		return outer(doc.Find(selector).First())
	}
	for _, sel := range ContentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return outer(found)
		}
	}
	body := doc.Find("body").First()
	for _, sel := range BoilerplateSelectors {
		body.Find(sel).Remove()
	}
	return outer(body)
}

func outer(sel *goquery.Selection) (string, error) {
	if sel.Length() == 0 {
		return "", nil
	}
	h, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return h, nil
}
