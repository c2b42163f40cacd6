// Package broker wraps RabbitMQ (amqp091-go) with a durable-queue,
// default-exchange topology and a request/reply pattern: a caller
// declares a private exclusive reply queue, publishes with reply_to and
// a correlation ID, then waits for a matching reply.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// Delivery is the subset of amqp.Delivery a handler needs.
type Delivery struct {
	Body          []byte
	CorrelationID string
	ReplyTo       string
	raw           amqp.Delivery
}

// Ack acknowledges the underlying delivery.
func (d Delivery) Ack() error { return d.raw.Ack(false) }

// Nack negatively acknowledges the delivery. requeue controls whether the
// broker should redeliver it.
func (d Delivery) Nack(requeue bool) error { return d.raw.Nack(false, requeue) }

// Conn is a broker connection able to publish, consume, and perform
// request/reply calls against durable, default-exchange queues.
type Conn struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	mu        sync.Mutex
	replyOnce sync.Once
	replyQ    amqp.Queue
	pending   map[string]chan Delivery
}

// Dial opens a connection and channel: one long-lived connection per
// process, shared by every publish/consume/call it makes.
func Dial(url string) (*Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker channel: %w", err)
	}
	return &Conn{conn: conn, ch: ch, pending: make(map[string]chan Delivery)}, nil
}

// Close shuts down the channel and connection.
func (c *Conn) Close() error {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// DeclareQueue declares a durable queue.
func (c *Conn) DeclareQueue(name string) error {
	_, err := c.ch.QueueDeclare(name, true, false, false, false, nil)
	return err
}

// Publish publishes payload (JSON-marshalled) onto queue via the default
// exchange, carrying correlationID and an optional replyTo.
func (c *Conn) Publish(ctx context.Context, queue string, payload interface{}, correlationID, replyTo string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.DeclareQueue(queue); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		CorrelationId: correlationID,
		ReplyTo:       replyTo,
	})
}

// Consume starts consuming queue. When manualAck is true, handlers must
// call Delivery.Ack/Nack explicitly; otherwise the broker auto-acks on
// delivery.
func (c *Conn) Consume(queue string, manualAck bool) (<-chan Delivery, error) {
	if err := c.DeclareQueue(queue); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	raw, err := c.ch.Consume(queue, "", !manualAck, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for d := range raw {
			out <- Delivery{
				Body:          d.Body,
				CorrelationID: d.CorrelationId,
				ReplyTo:       d.ReplyTo,
				raw:           d,
			}
		}
	}()
	return out, nil
}

// ensureReplyQueue lazily declares this connection's private exclusive
// reply queue and starts routing incoming replies to waiting Call()ers,
// keyed by correlation ID.
func (c *Conn) ensureReplyQueue() error {
	var err error
	c.replyOnce.Do(func() {
		var q amqp.Queue
		q, err = c.ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return
		}
		c.replyQ = q
		var raw <-chan amqp.Delivery
		raw, err = c.ch.Consume(q.Name, "", true, true, false, false, nil)
		if err != nil {
			return
		}
		go func() {
			for d := range raw {
				c.mu.Lock()
				ch, ok := c.pending[d.CorrelationId]
				if ok {
					delete(c.pending, d.CorrelationId)
				}
				c.mu.Unlock()
				if !ok {
					log.WithField("correlation_id", d.CorrelationId).Warn("broker: reply with no waiter, dropping")
					continue
				}
				ch <- Delivery{Body: d.Body, CorrelationID: d.CorrelationId, raw: d}
			}
		}()
	})
	return err
}

// Call performs the request/reply RPC pattern: declare a private reply
// queue (done once per Conn and reused), publish req onto queue with
// reply_to set and the caller-supplied correlationID, then wait up to
// timeout for the matching reply.
func (c *Conn) Call(ctx context.Context, queue string, correlationID string, req interface{}, timeout time.Duration) (Delivery, error) {
	if err := c.ensureReplyQueue(); err != nil {
		return Delivery{}, fmt.Errorf("ensure reply queue: %w", err)
	}

	waitCh := make(chan Delivery, 1)
	c.mu.Lock()
	c.pending[correlationID] = waitCh
	c.mu.Unlock()

	if err := c.Publish(ctx, queue, req, correlationID, c.replyQ.Name); err != nil {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
		return Delivery{}, fmt.Errorf("publish request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case d := <-waitCh:
		return d, nil
	case <-callCtx.Done():
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
		return Delivery{}, fmt.Errorf("rpc call to %s timed out: %w", queue, callCtx.Err())
	}
}
