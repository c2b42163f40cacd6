// Package writer implements the Summary Writer: turns a RelevantPost
// into a short personalized summary via the writing model and emits
// ReadyPost.
package writer

import (
	"context"
	"fmt"

	"github.com/iqnews/newsfeed/internal/events"
	"github.com/iqnews/newsfeed/internal/logging"
	"github.com/iqnews/newsfeed/internal/metrics"
	"github.com/iqnews/newsfeed/internal/modelclient"
	"github.com/iqnews/newsfeed/internal/pipeerr"
	"github.com/iqnews/newsfeed/internal/ratelimit"
)

const systemPrompt = `You are a news summarizer. Given a post and a reader's stated preferences, write a personalized summary of 150 words or fewer. Return a JSON object {"content": "<summary>"}.`

// Publisher emits events onto the broker.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload interface{}, correlationID, replyTo string) error
}

// Writer rewrites one RelevantPost at a time into a ReadyPost.
type Writer struct {
	publisher Publisher
	model     modelclient.Client
	limiter   *ratelimit.Limiter
}

// New builds a Writer.
func New(publisher Publisher, model modelclient.Client, limiter *ratelimit.Limiter) *Writer {
	return &Writer{publisher: publisher, model: model, limiter: limiter}
}

// HandleRelevantPost processes a single RelevantPost delivery body. A
// parse failure or a missing content field drops the message outright:
// a failed rewrite is not worth repeating at the model's expense.
func (w *Writer) HandleRelevantPost(ctx context.Context, body []byte) error {
	post, err := events.DecodeRelevantPost(body)
	if err != nil {
		return pipeerr.Malformedf("decode relevant post: %w", err)
	}

	logger := logging.WithCorrelation("writer", post.CorrelationID).WithField("user_id", post.UserID)

	if err := w.limiter.Acquire(ctx); err != nil {
		return pipeerr.Transientf("acquire rate limit token: %w", err)
	}

	userPrompt := fmt.Sprintf(
		"Title: %s\nPreferences: %s\nContent: %s",
		post.PostTitle, post.Preferences, post.PostContent,
	)
	raw, err := w.model.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return pipeerr.Transientf("call writing model: %w", err)
	}

	result, err := modelclient.ParseSummaryResult(raw)
	if err != nil {
		metrics.IncrementError("writer", string(pipeerr.ModelOutput))
		logger.WithError(err).Warn("writer: dropping message, malformed model output")
		return nil
	}

	event := events.ReadyPost{
		UserID:        post.UserID,
		News:          result.Content,
		PostURL:       post.PostLink,
		FeedURL:       post.FeedURL,
		Rank:          post.Rank,
		CorrelationID: post.CorrelationID,
	}
	if err := w.publisher.Publish(ctx, events.QueueReadyPosts, event, post.CorrelationID, ""); err != nil {
		return pipeerr.Transientf("publish ready post: %w", err)
	}
	metrics.IncrementSummaries()
	return nil
}
