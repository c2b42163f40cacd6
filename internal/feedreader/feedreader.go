// Package feedreader fetches and parses a single RSS/Atom feed with a
// cached, user-agent-tagged HTTP client feeding gofeed.
package feedreader

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/die-net/lrucache"
	"github.com/gregjones/httpcache"
	"github.com/mmcdole/gofeed"
)

const fetchTimeout = 30 * time.Second

// Entry is one feed item, dated and ready for the freshness/dedup checks.
type Entry struct {
	Title       string
	Link        string
	Summary     string
	PublishedAt time.Time
}

// WordCount returns the number of whitespace-separated words in the
// entry's summary, the same count the poller's extractor-fallback gate
// computes.
func (e Entry) WordCount() int {
	return len(strings.Fields(e.Summary))
}

type userAgentRoundTripper struct {
	transport http.RoundTripper
}

func (rt userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "newsfeed-poller")
	return rt.transport.RoundTrip(req)
}

// Reader fetches and parses feeds over a shared, cached HTTP client.
type Reader struct {
	client *http.Client
}

// New builds a Reader with a 20MB LRU-backed caching transport.
func New() *Reader {
	cache := lrucache.New(1024*1024*20, 0)
	return &Reader{
		client: &http.Client{
			Transport: userAgentRoundTripper{httpcache.NewTransport(cache)},
			Timeout:   fetchTimeout,
		},
	}
}

// Fetch retrieves and parses feedURL, returning every entry that carries
// a usable published/updated date. Entries without either are skipped.
func (r *Reader) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = r.client
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	var entries []Entry
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil {
			continue
		}
		entries = append(entries, Entry{
			Title:       html.UnescapeString(item.Title),
			Link:        item.Link,
			Summary:     normalizeWhitespace(html.UnescapeString(item.Description)),
			PublishedAt: published.UTC(),
		})
	}
	return entries, nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
