package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDelivers(t *testing.T) {
	capture := NewCaptureMailer()
	d := NewDispatcher(capture, discardLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(Message{Subject: "first", Recipients: []string{"a@example.org"}})
	require.NoError(t, d.Send(ctx, Message{Subject: "second"}))

	assert.Eventually(t, func() bool {
		return len(capture.Messages()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// No consumer running: the queue fills and the overflow is dropped
	// instead of blocking the caller.
	capture := NewCaptureMailer()
	d := NewDispatcher(capture, discardLogger(), 1)

	done := make(chan struct{})
	go func() {
		d.Enqueue(Message{Subject: "kept"})
		d.Enqueue(Message{Subject: "dropped"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	d := NewDispatcher(NewCaptureMailer(), discardLogger(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
