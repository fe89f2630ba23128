package concurrency

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(context.Background(), 3, 10)
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(func(context.Context) { n.Add(1) }))
	}
	p.Close()
	assert.EqualValues(t, 10, n.Load(), "Close waits for queued tasks")
}

func TestPoolQueueFull(t *testing.T) {
	p := NewPool(context.Background(), 1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, p.Submit(func(context.Context) {}))
	assert.ErrorIs(t, p.Submit(func(context.Context) {}), ErrQueueFull)

	close(release)
	p.Close()
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(context.Background(), 1, 1)
	p.Close()
	p.Close()
	assert.ErrorIs(t, p.Submit(func(context.Context) {}), ErrPoolClosed)
}

func TestPoolCancelsTaskContextOnClose(t *testing.T) {
	p := NewPool(context.Background(), 1, 1)
	started := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		select {
		case <-ctx.Done():
			cancelled.Store(true)
		case <-time.After(5 * time.Second):
		}
	}))
	<-started
	p.Close()
	assert.True(t, cancelled.Load())
}
