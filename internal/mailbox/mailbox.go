// Package mailbox implements the Delivery Router's per-user paced
// mailbox: a process-local user_id → mailbox map guarded by a mutex for
// lazy single-creation, each mailbox with its own dedicated delivery
// goroutine.
package mailbox

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Message is one outbound delivery, opaque to the mailbox itself.
type Message struct {
	UserID        int64
	News          string
	PostURL       string
	FeedURL       string
	Rank          int
	CorrelationID string
}

// Sender performs the actual outbound send for one Message. Errors are
// logged but never retried.
type Sender func(ctx context.Context, m Message) error

// Router owns every active user's mailbox and delivery goroutine.
type Router struct {
	send   Sender
	pacing time.Duration

	mapMu    sync.Mutex
	mailbox  map[int64]*userMailbox
	shutdown chan struct{}
	wg       sync.WaitGroup
}

type userMailbox struct {
	queue chan Message
	stop  chan struct{}
}

// New creates a Router that calls send for each delivery and sleeps
// pacing after every attempt, per user, regardless of outcome.
func New(send Sender, pacing time.Duration) *Router {
	return &Router{
		send:     send,
		pacing:   pacing,
		mailbox:  make(map[int64]*userMailbox),
		shutdown: make(chan struct{}),
	}
}

// Enqueue appends m to its addressee's mailbox, creating the mailbox and
// its delivery goroutine on first use. The critical section only covers
// the lookup-or-insert, not the send.
func (r *Router) Enqueue(m Message) {
	box := r.getOrCreateMailbox(m.UserID)
	box.queue <- m
}

func (r *Router) getOrCreateMailbox(userID int64) *userMailbox {
	r.mapMu.Lock()
	defer r.mapMu.Unlock()

	if box, ok := r.mailbox[userID]; ok {
		return box
	}

	box := &userMailbox{
		queue: make(chan Message, 256),
		stop:  make(chan struct{}),
	}
	r.mailbox[userID] = box

	r.wg.Add(1)
	go r.deliveryLoop(userID, box)

	return box
}

// deliveryLoop is the one dedicated delivery task per active user: take
// the next entry, attempt the send, sleep pacing unconditionally, repeat.
func (r *Router) deliveryLoop(userID int64, box *userMailbox) {
	defer r.wg.Done()
	logger := log.WithField("user_id", userID)
	for {
		select {
		case <-box.stop:
			return
		case <-r.shutdown:
			return
		case m := <-box.queue:
			err := r.send(context.Background(), m)
			if err != nil {
				logger.WithError(err).WithField("correlation_id", m.CorrelationID).Warn("delivery failed, not retried")
			}
			select {
			case <-time.After(r.pacing):
			case <-r.shutdown:
				return
			}
		}
	}
}

// Shutdown cancels every delivery task cooperatively and waits up to
// grace for them to return. In-flight mailbox entries are discarded.
func (r *Router) Shutdown(grace time.Duration) {
	close(r.shutdown)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		log.Warn("mailbox router: shutdown grace period elapsed with tasks still running")
	}
}
