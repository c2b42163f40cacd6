package broker

import (
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/iqnews/newsfeed/internal/metrics"
	"github.com/iqnews/newsfeed/internal/pipeerr"
)

// Handler processes one delivery. A nil error acks the message (when
// manual ack is in effect); a non-nil error is inspected for its
// pipeerr.Kind to decide ack vs nack.
type Handler func(d Delivery) error

// Dispatcher fans deliveries from one or more queues out to per-queue
// handlers: a registry of listeners keyed by queue name, each invoked as
// new input arrives.
type Dispatcher struct {
	conn      *Conn
	manualAck map[string]bool
	handlers  map[string]Handler
	stage     string
}

// NewDispatcher creates a Dispatcher bound to conn for the given stage
// (used only for logging/metrics labels).
func NewDispatcher(conn *Conn, stage string) *Dispatcher {
	return &Dispatcher{
		conn:      conn,
		manualAck: make(map[string]bool),
		handlers:  make(map[string]Handler),
		stage:     stage,
	}
}

// On registers h as the handler for queue. manualAck controls the
// acknowledgement discipline used when consuming that queue: use manual
// ack on every handler that performs a database write, and auto-ack only
// on hot paths where replay is harmless.
func (d *Dispatcher) On(queue string, manualAck bool, h Handler) {
	d.manualAck[queue] = manualAck
	d.handlers[queue] = h
}

// Run starts one consumer goroutine per registered queue and blocks until
// stop is closed.
func (d *Dispatcher) Run(stop <-chan struct{}) error {
	for queue, handler := range d.handlers {
		deliveries, err := d.conn.Consume(queue, d.manualAck[queue])
		if err != nil {
			return err
		}
		go d.consumeLoop(queue, d.manualAck[queue], handler, deliveries)
	}
	<-stop
	return nil
}

func (d *Dispatcher) consumeLoop(queue string, manualAck bool, handler Handler, deliveries <-chan Delivery) {
	logger := log.WithFields(log.Fields{"stage": d.stage, "queue": queue})
	for delivery := range deliveries {
		d.handleOne(logger, queue, manualAck, handler, delivery)
	}
}

func (d *Dispatcher) handleOne(logger *log.Entry, queue string, manualAck bool, handler Handler, delivery Delivery) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("handler panicked\n" + string(debug.Stack()))
			if manualAck {
				_ = delivery.Nack(true)
			}
		}
	}()

	err := handler(delivery)
	if !manualAck {
		// auto-ack already happened at consume time.
		if err != nil {
			logger.WithError(err).WithField("correlation_id", delivery.CorrelationID).Error("handler error on auto-ack queue")
		}
		return
	}

	if err == nil {
		if ackErr := delivery.Ack(); ackErr != nil {
			logger.WithError(ackErr).Error("failed to ack delivery")
		}
		return
	}

	kind := pipeerr.KindOf(err)
	logger = logger.WithFields(log.Fields{"correlation_id": delivery.CorrelationID, "error_kind": kind})
	metrics.IncrementError(d.stage, string(kind))
	switch kind {
	case pipeerr.Malformed, pipeerr.NotFound:
		// Ack to avoid poison-message storms / treat as out-of-order success.
		logger.WithError(err).Info("dropping message (acked)")
		if ackErr := delivery.Ack(); ackErr != nil {
			logger.WithError(ackErr).Error("failed to ack delivery")
		}
	case pipeerr.ModelOutput:
		// Drop this (post, user) pair; never retried at the model's expense.
		logger.WithError(err).Warn("model output error, dropping pair")
		if ackErr := delivery.Ack(); ackErr != nil {
			logger.WithError(ackErr).Error("failed to ack delivery")
		}
	default:
		// Transient/unclassified: do not ack, let the broker redeliver.
		logger.WithError(err).Warn("transient error, requeueing")
		if nackErr := delivery.Nack(true); nackErr != nil {
			logger.WithError(nackErr).Error("failed to nack delivery")
		}
	}
}
