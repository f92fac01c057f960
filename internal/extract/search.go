package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Result-page selectors of the search engine.
const (
	ResultBlockSelector   = "div.g"
	ResultTitleSelector   = "h3"
	ResultLinkSelector    = "a[href]"
	ResultSnippetSelector = "div.VwiC3b"
)

// Hit is one search result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ParseSearchResults returns the hits of a result page in page order.
// Blocks missing a title, link or snippet are skipped.
func ParseSearchResults(html string) ([]Hit, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var hits []Hit
	doc.Find(ResultBlockSelector).Each(func(_ int, block *goquery.Selection) {
		title := text(block.Find(ResultTitleSelector).First())
		href, _ := block.Find(ResultLinkSelector).First().Attr("href")
		snippet := text(block.Find(ResultSnippetSelector).First())
		link := resolveRedirect(strings.TrimSpace(href))
		if title == "" || link == "" || snippet == "" {
			return
		}
		hits = append(hits, Hit{Title: title, URL: link, Snippet: snippet})
	})
	return hits, nil
}

func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// resolveRedirect unwraps "/url?q=<target>" links.
func resolveRedirect(href string) string {
	if !strings.HasPrefix(href, "/url?") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if q := u.Query().Get("q"); q != "" {
		return q
	}
	return href
}
