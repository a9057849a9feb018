package telegram

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrinkbot/pkg/logger"
)

func updateFrom(sender int64, id int) Update {
	return Update{
		UpdateID: id,
		Message: &Message{
			From: &User{ID: sender},
			Chat: &Chat{ID: sender},
		},
	}
}

func TestDispatcher_SerializesPerSender(t *testing.T) {
	var (
		mu       sync.Mutex
		inflight = map[int64]int{}
		order    = map[int64][]int{}
		overlap  atomic.Bool
	)

	d := NewDispatcher(func(ctx context.Context, u Update) {
		sender := u.SenderID()

		mu.Lock()
		inflight[sender]++
		if inflight[sender] > 1 {
			overlap.Store(true)
		}
		order[sender] = append(order[sender], u.UpdateID)
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		inflight[sender]--
		mu.Unlock()
	}, DispatcherConfig{QueueSize: 64}, logger.Nop())

	for i := 0; i < 20; i++ {
		require.NoError(t, d.Submit(updateFrom(1, i)))
		require.NoError(t, d.Submit(updateFrom(2, i)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.False(t, overlap.Load())
	for _, sender := range []int64{1, 2} {
		require.Len(t, order[sender], 20)
		for i, id := range order[sender] {
			assert.Equal(t, i, id)
		}
	}
	assert.Zero(t, d.Queues())
}

func TestDispatcher_SendersRunInParallel(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})

	d := NewDispatcher(func(ctx context.Context, u Update) {
		switch u.SenderID() {
		case 1:
			<-release
			close(done)
		case 2:
			close(release)
		}
	}, DispatcherConfig{}, logger.Nop())

	require.NoError(t, d.Submit(updateFrom(1, 1)))
	require.NoError(t, d.Submit(updateFrom(2, 1)))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sender 1 was blocked by sender 2")
	}

	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_QueueFull(t *testing.T) {
	block := make(chan struct{})
	var dropped atomic.Int32

	d := NewDispatcher(func(ctx context.Context, u Update) {
		<-block
	}, DispatcherConfig{
		QueueSize: 1,
		OnDropped: func(u Update, err error) { dropped.Add(1) },
	}, logger.Nop())

	// first update may already be picked up by the drain goroutine, so push until full
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = d.Submit(updateFrom(1, i))
	}
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int32(1), dropped.Load())

	close(block)
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_StoppedRejects(t *testing.T) {
	d := NewDispatcher(func(ctx context.Context, u Update) {}, DispatcherConfig{}, logger.Nop())
	require.NoError(t, d.Stop(context.Background()))

	assert.ErrorIs(t, d.Submit(updateFrom(1, 1)), ErrQueueStopped)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	var processed atomic.Int32

	d := NewDispatcher(func(ctx context.Context, u Update) {
		if u.UpdateID == 0 {
			panic("boom")
		}
	}, DispatcherConfig{
		OnProcessed: func(u Update, _ time.Duration) { processed.Add(1) },
	}, logger.Nop())

	require.NoError(t, d.Submit(updateFrom(1, 0)))
	require.NoError(t, d.Submit(updateFrom(1, 1)))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, int32(2), processed.Load())
}

func TestDispatcher_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	d := NewDispatcher(func(ctx context.Context, u Update) {
		<-block
	}, DispatcherConfig{}, logger.Nop())
	require.NoError(t, d.Submit(updateFrom(1, 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)
}
