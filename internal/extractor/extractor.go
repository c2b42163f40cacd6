// Package extractor implements a pluggable text extractor fallback: when
// a feed entry's summary is too short, fetch its link and pull readable
// text out of the HTML page.
package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"
)

const fetchTimeout = 10 * time.Second

// Extractor pulls body text out of an arbitrary web page.
type Extractor interface {
	Extract(ctx context.Context, link string) (string, error)
}

// HTMLExtractor is the default Extractor: goquery picks the first
// <article>, else the first <main>, else <body>, and html2text flattens
// it to plain text.
type HTMLExtractor struct {
	client *http.Client
}

// New builds an HTMLExtractor using its own short-timeout HTTP client,
// distinct from the poller's feed-fetch client.
func New() *HTMLExtractor {
	return &HTMLExtractor{client: &http.Client{Timeout: fetchTimeout}}
}

// Extract fetches link and returns its readable text content, or an
// error. An empty, non-error result means the page had nothing usable;
// callers treat that the same as an error.
func (e *HTMLExtractor) Extract(ctx context.Context, link string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "newsfeed-extractor")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse html %s: %w", link, err)
	}

	selection := doc.Find("article")
	if selection.Length() == 0 {
		selection = doc.Find("main")
	}
	if selection.Length() == 0 {
		selection = doc.Find("body")
	}

	htmlFragment, err := selection.Html()
	if err != nil || strings.TrimSpace(htmlFragment) == "" {
		return "", nil
	}

	text, err := html2text.FromString(htmlFragment, html2text.Options{PrettyTables: false})
	if err != nil {
		return "", fmt.Errorf("html2text %s: %w", link, err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}
