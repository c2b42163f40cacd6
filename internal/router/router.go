// Package router implements the Delivery Router: consumes ReadyPost and
// enqueues it into the addressed user's paced mailbox. The
// pacing/FIFO logic itself lives in internal/mailbox; this package is
// the thin adapter between the broker and that mailbox.
package router

import (
	"context"
	"time"

	"github.com/iqnews/newsfeed/internal/events"
	"github.com/iqnews/newsfeed/internal/mailbox"
	"github.com/iqnews/newsfeed/internal/pipeerr"
)

// Router adapts ReadyPost deliveries onto a mailbox.Router.
type Router struct {
	mailboxes *mailbox.Router
}

// New builds a Router whose mailboxes call send for the final outbound
// delivery and pace successive sends to the same user by pacing.
func New(send mailbox.Sender, pacing time.Duration) *Router {
	return &Router{mailboxes: mailbox.New(send, pacing)}
}

// HandleReadyPost decodes a ReadyPost delivery and enqueues it. Delivery
// is naturally duplicate-tolerant, so the dispatcher consumes this queue
// with auto-ack.
func (r *Router) HandleReadyPost(_ context.Context, body []byte) error {
	post, err := events.DecodeReadyPost(body)
	if err != nil {
		return pipeerr.Malformedf("decode ready post: %w", err)
	}

	r.mailboxes.Enqueue(mailbox.Message{
		UserID:        post.UserID,
		News:          post.News,
		PostURL:       post.PostURL,
		FeedURL:       post.FeedURL,
		Rank:          post.Rank,
		CorrelationID: post.CorrelationID,
	})
	return nil
}

// Shutdown cancels every delivery task cooperatively, within grace.
func (r *Router) Shutdown(grace time.Duration) {
	r.mailboxes.Shutdown(grace)
}
