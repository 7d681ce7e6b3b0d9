package worker_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "agora/pkg/platform/audit"
	"agora/pkg/platform/audit/publisher"
	memorystore "agora/pkg/platform/audit/store/memory"
	"agora/pkg/platform/audit/worker"
)

func TestWorkerDrainsPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := publisher.NewChannel(slog.New(slog.NewTextHandler(io.Discard, nil)), 16)
	store := memorystore.New()
	w := worker.New(store, channel.Events())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, channel.Emit(ctx, audit.Event{
		Action:    audit.ActionVoteCast,
		Category:  audit.ActionVoteCast.Category(),
		Timestamp: time.Now(),
		Subject:   "ballot",
	}))
	require.NoError(t, channel.Emit(ctx, audit.Event{
		Action:   audit.ActionOrgAccepted,
		Category: audit.ActionOrgAccepted.Category(),
	}))

	assert.Eventually(t, func() bool {
		return len(store.Events()) == 2
	}, time.Second, 10*time.Millisecond)

	events := store.Events()
	assert.Equal(t, audit.ActionVoteCast, events[0].Action)
	assert.Equal(t, audit.CategoryElection, events[0].Category)
	assert.Equal(t, audit.ActionOrgAccepted, events[1].Action)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestChannelDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	channel := publisher.NewChannel(slog.New(slog.NewTextHandler(io.Discard, nil)), 1)

	// No consumer: the second emit overflows the buffer but must not block.
	require.NoError(t, channel.Emit(ctx, audit.Event{Action: audit.ActionVoteCast}))
	require.NoError(t, channel.Emit(ctx, audit.Event{Action: audit.ActionVoteCast}))

	assert.Len(t, channel.Events(), 1)
}
