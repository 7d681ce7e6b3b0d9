package notify

import (
	"context"
	"log/slog"
	"time"
)

const (
	// Two delivery attempts, each capped, mirroring the background task
	// policy for external work.
	maxAttempts    = 2
	attemptTimeout = 15 * time.Minute
	retryDelay     = 30 * time.Second
)

// Dispatcher queues messages and delivers them off the request path with
// at-least-once semantics and a bounded retry. Callers fire and forget;
// a message dropped after the final attempt is logged, never surfaced.
type Dispatcher struct {
	mailer Mailer
	logger *slog.Logger
	inbox  chan Message
}

func NewDispatcher(mailer Mailer, logger *slog.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		mailer: mailer,
		logger: logger,
		inbox:  make(chan Message, queueSize),
	}
}

// Enqueue hands a message to the dispatcher. It never blocks: when the
// queue is full the message is dropped with a log entry, keeping
// notification pressure away from vote and save paths.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.inbox <- msg:
	default:
		d.logger.Warn("notification queue full, dropping message", "subject", msg.Subject)
	}
}

// Send implements Mailer so the dispatcher can stand in wherever a
// synchronous mailer is expected.
func (d *Dispatcher) Send(_ context.Context, msg Message) error {
	d.Enqueue(msg)
	return nil
}

// Run consumes the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.inbox:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err := d.mailer.Send(attemptCtx, msg)
		cancel()
		if err == nil {
			return
		}
		d.logger.Warn("notification delivery failed",
			"subject", msg.Subject, "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
		}
	}
}
