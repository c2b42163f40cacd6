// Package scorer implements the Relevance Scorer: for every NewPost,
// evaluate relevance against each subscriber and forward qualifying
// (post, user) pairs to the writer.
package scorer

import (
	"context"
	"fmt"
	"time"

	"github.com/iqnews/newsfeed/internal/events"
	"github.com/iqnews/newsfeed/internal/logging"
	"github.com/iqnews/newsfeed/internal/metrics"
	"github.com/iqnews/newsfeed/internal/modelclient"
	"github.com/iqnews/newsfeed/internal/pipeerr"
	"github.com/iqnews/newsfeed/internal/ratelimit"
)

const systemPrompt = `You are a news relevance scorer. Given a post and a reader's stated preferences and antipathies, return a JSON object {"rank": <integer 0-100>, "explanation": "<short reason>"}. Higher rank means more relevant.`

// ProfileReader looks up a subscriber's preferences/antipathies.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID int64) (preferences, antipathies string, err error)
}

// Publisher emits events onto the broker.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload interface{}, correlationID, replyTo string) error
}

// Scorer holds the dependencies for scoring one NewPost at a time.
type Scorer struct {
	profiles  ProfileReader
	publisher Publisher
	model     modelclient.Client
	limiter   *ratelimit.Limiter
	threshold int
	maxAge    time.Duration // 0 disables in favor of the same-UTC-day rule
}

// New builds a Scorer. threshold is the minimum rank (exclusive) that
// passes a post on to the writer; maxAge, if nonzero, overrides the
// default same-UTC-day freshness rule.
func New(profiles ProfileReader, publisher Publisher, model modelclient.Client, limiter *ratelimit.Limiter, threshold int, maxAge time.Duration) *Scorer {
	return &Scorer{
		profiles:  profiles,
		publisher: publisher,
		model:     model,
		limiter:   limiter,
		threshold: threshold,
		maxAge:    maxAge,
	}
}

// HandleNewPost processes a single NewPost delivery body.
func (s *Scorer) HandleNewPost(ctx context.Context, body []byte) error {
	post, err := events.DecodeNewPost(body)
	if err != nil {
		return pipeerr.Malformedf("decode new post: %w", err)
	}

	logger := logging.WithCorrelation("scorer", post.CorrelationID).WithField("feed_url", post.FeedURL)

	if s.isStale(post.PublishedAt) {
		logger.Info("scorer: post too old, dropping")
		return nil
	}

	for _, userID := range post.FeedSubscribers {
		if err := s.scoreOne(ctx, post, userID); err != nil {
			if pipeerr.KindOf(err) == pipeerr.Transient {
				return err // whole message nacked: a DB/network failure affects every subscriber, not just this one
			}
			metrics.IncrementError("scorer", string(pipeerr.KindOf(err)))
			logger.WithError(err).WithField("user_id", userID).Warn("scorer: skipping subscriber")
			continue
		}
	}
	return nil
}

func (s *Scorer) isStale(publishedAt time.Time) bool {
	if s.maxAge > 0 {
		return time.Since(publishedAt) > s.maxAge
	}
	return publishedAt.UTC().Format("2006-01-02") != time.Now().UTC().Format("2006-01-02")
}

func (s *Scorer) scoreOne(ctx context.Context, post events.NewPost, userID int64) error {
	preferences, antipathies, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return pipeerr.Transientf("read profile for user %d: %w", userID, err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return pipeerr.Transientf("acquire rate limit token: %w", err)
	}

	userPrompt := fmt.Sprintf(
		"Title: %s\nPreferences: %s\nAntipathies: %s\nContent: %s",
		post.PostTitle, preferences, antipathies, post.PostContent,
	)
	raw, err := s.model.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return pipeerr.Transientf("call scoring model: %w", err)
	}

	result, err := modelclient.ParseScoreResult(raw)
	if err != nil {
		return pipeerr.ModelOutputf("parse scoring model response: %w", err)
	}

	if result.Rank <= s.threshold {
		return nil
	}

	event := events.RelevantPost{
		FeedURL:       post.FeedURL,
		PostTitle:     post.PostTitle,
		PostLink:      post.PostLink,
		PostContent:   post.PostContent,
		UserID:        userID,
		Preferences:   preferences,
		Rank:          result.Rank,
		CorrelationID: post.CorrelationID,
	}
	if err := s.publisher.Publish(ctx, events.QueueRelevantPosts, event, post.CorrelationID, ""); err != nil {
		return pipeerr.Transientf("publish relevant post: %w", err)
	}
	return nil
}
