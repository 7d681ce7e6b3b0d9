package publisher

import (
	"context"
	"log/slog"

	audit "agora/pkg/platform/audit"
)

// Channel hands events to an in-process worker over a buffered channel.
// Used when no Kafka sink is configured. Emit never blocks: when the
// buffer is full the event is dropped and logged.
type Channel struct {
	out    chan audit.Event
	logger *slog.Logger
}

func NewChannel(logger *slog.Logger, buffer int) *Channel {
	return &Channel{out: make(chan audit.Event, buffer), logger: logger}
}

// Events is the worker side of the channel.
func (c *Channel) Events() <-chan audit.Event {
	return c.out
}

func (c *Channel) Emit(_ context.Context, event audit.Event) error {
	select {
	case c.out <- event:
	default:
		if c.logger != nil {
			c.logger.Warn("audit buffer full, event dropped",
				"action", string(event.Action))
		}
	}
	return nil
}
