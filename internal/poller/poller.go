// Package poller implements the Feed Poller: every tick, list all known
// feeds and dispatch one bounded-concurrency task per feed that fetches,
// diffs against the feed's watermark, and emits one NewPost per new entry.
package poller

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iqnews/newsfeed/internal/events"
	"github.com/iqnews/newsfeed/internal/extractor"
	"github.com/iqnews/newsfeed/internal/feedreader"
	"github.com/iqnews/newsfeed/internal/logging"
	"github.com/iqnews/newsfeed/internal/metrics"
	"github.com/iqnews/newsfeed/internal/models"
)

const minSummaryWords = 150

// Store is the subset of the repository the poller needs.
type Store interface {
	ListFeeds() ([]models.Feed, error)
	SelectFeedByID(feedID string) (models.Feed, error)
	ListSubscriberIDs(feedID string) ([]int64, error)
	InsertPosts(feedID string, posts []models.Post) error
}

// Publisher emits events onto the broker.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload interface{}, correlationID, replyTo string) error
}

// FeedReader fetches and parses a single feed. Satisfied by
// *feedreader.Reader; an interface here so tests can fake feed fetches.
type FeedReader interface {
	Fetch(ctx context.Context, feedURL string) ([]feedreader.Entry, error)
}

// Poller periodically walks every known feed with bounded fan-out.
type Poller struct {
	store     Store
	publisher Publisher
	reader    FeedReader
	extractor extractor.Extractor

	tickInterval time.Duration
	fanOut       int
}

// New builds a Poller. fanOut bounds how many feeds are polled
// concurrently in a single tick via a counting semaphore.
func New(store Store, publisher Publisher, reader FeedReader, ext extractor.Extractor, tickInterval time.Duration, fanOut int) *Poller {
	return &Poller{
		store:        store,
		publisher:    publisher,
		reader:       reader,
		extractor:    ext,
		tickInterval: tickInterval,
		fanOut:       fanOut,
	}
}

// Run ticks every p.tickInterval until stop is closed. A tick never
// waits for the previous tick's stragglers; a feed missed this round is
// retried next round since the watermark guarantees no data loss.
func (p *Poller) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	feeds, err := p.store.ListFeeds()
	if err != nil {
		log.WithError(err).Error("poller: failed to list feeds")
		return
	}

	sem := make(chan struct{}, p.fanOut)
	for _, feed := range feeds {
		select {
		case sem <- struct{}{}:
			go func(f models.Feed) {
				defer func() { <-sem }()
				p.pollFeed(f.ID)
			}(feed)
		default:
			// Fan-out bound reached for this tick; this feed is dropped for
			// this round and will be reconsidered next tick. The watermark
			// guarantees no data is lost by skipping a round.
			log.WithField("feed_id", feed.ID).Info("poller: fan-out bound reached, deferring feed to next tick")
		}
	}
}

// pollFeed is the per-feed fetch-diff-emit task run by one fan-out slot.
func (p *Poller) pollFeed(feedID string) {
	correlationID := uuid.NewString()
	logger := logging.WithCorrelation("feedpoller", correlationID).WithField("feed_id", feedID)

	feed, err := p.store.SelectFeedByID(feedID)
	if err != nil {
		// Deleted between listing and this step: nothing to do.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := p.reader.Fetch(ctx, feed.URL)
	if err != nil {
		logger.WithField("feed_url", feed.URL).WithError(err).Warn("failed to fetch feed")
		return
	}

	subscribers, err := p.store.ListSubscriberIDs(feed.ID)
	if err != nil {
		logger.WithError(err).Error("failed to read subscriber list, skipping feed task entirely")
		return
	}

	var newPosts []models.Post
	for _, entry := range entries {
		if !entry.PublishedAt.After(feed.LastPostDate) {
			continue
		}

		content := entry.Summary
		if wordCount(content) < minSummaryWords {
			extracted, extractErr := p.extractor.Extract(ctx, entry.Link)
			if extractErr != nil || extracted == "" {
				continue
			}
			content = extracted
		}
		content = normalizeWhitespace(content)

		post := models.Post{
			ID:          uuid.NewString(),
			FeedID:      feed.ID,
			Title:       entry.Title,
			Content:     content,
			Link:        entry.Link,
			PublishedAt: entry.PublishedAt,
		}

		event := events.NewPost{
			PublishedAt:     post.PublishedAt,
			FeedURL:         feed.URL,
			PostTitle:       post.Title,
			PostLink:        post.Link,
			PostContent:     post.Content,
			FeedSubscribers: subscribers,
			CorrelationID:   correlationID,
		}
		if err := p.publisher.Publish(ctx, events.QueueNewPosts, event, correlationID, ""); err != nil {
			logger.WithError(err).Error("failed to publish new post")
			continue
		}
		// Only now is the post counted toward the batch that gets
		// persisted and whose max published_at advances the watermark:
		// an unpublished entry must never be skipped on the next poll.
		newPosts = append(newPosts, post)
		metrics.IncrementPostsValidated(feed.URL)
	}

	if len(newPosts) == 0 {
		return
	}

	if err := p.store.InsertPosts(feed.ID, newPosts); err != nil {
		logger.WithError(err).Error("failed to persist new posts / advance watermark")
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
