package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failureCounter struct {
	mu    sync.Mutex
	names []string
}

func (f *failureCounter) RecordTaskFailure(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
}

func TestDispatcher_runsSubmittedTasks(t *testing.T) {
	d := New(DefaultConfig(), nil)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Submit("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
}

func TestDispatcher_failuresAreRecordedNotRetried(t *testing.T) {
	failures := &failureCounter{}
	d := New(Config{Workers: 1, QueueSize: 4}, failures)

	var attempts atomic.Int32
	require.NoError(t, d.Submit("leave", func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("boom")
	}))
	require.NoError(t, d.Submit("panics", func(ctx context.Context) error {
		panic("bad task")
	}))

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, int32(1), attempts.Load())
	assert.ElementsMatch(t, []string{"leave", "panics"}, failures.names)
}

func TestDispatcher_submitAfterStop(t *testing.T) {
	d := New(DefaultConfig(), nil)
	require.NoError(t, d.Stop(context.Background()))
	require.NoError(t, d.Stop(context.Background()))

	err := d.Submit("late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDispatcher_queueFull(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 1}, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Submit("block", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.NoError(t, d.Submit("queued", func(ctx context.Context) error { return nil }))
	err := d.Submit("overflow", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_stopTimeoutCancelsTasks(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 1}, nil)

	require.NoError(t, d.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
