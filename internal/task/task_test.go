package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type funcTask struct {
	id uuid.UUID
	fn func(ctx context.Context) error
}

func newFuncTask(fn func(ctx context.Context) error) *funcTask {
	return &funcTask{id: uuid.New(), fn: fn}
}

func (t *funcTask) ID() uuid.UUID                     { return t.id }
func (t *funcTask) Type() string                      { return "func" }
func (t *funcTask) Execute(ctx context.Context) error { return t.fn(ctx) }

func TestTaskQueue(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue(1, setupTestLogger())
	noop := func(context.Context) error { return nil }

	require.NoError(t, q.Enqueue(newFuncTask(noop)))
	assert.ErrorIs(t, q.Enqueue(newFuncTask(noop)), ErrQueueFull)

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.Enqueue(newFuncTask(noop)), ErrQueueClosed)

	// queued tasks survive Close
	_, ok := <-q.GetChannel()
	assert.True(t, ok)
	_, ok = <-q.GetChannel()
	assert.False(t, ok)
}

func TestWorkerPoolDrainsQueue(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue(10, setupTestLogger())
	pool := NewWorkerPool(q, WorkerPoolConfig{WorkerCount: 3}, setupTestLogger())

	var ran atomic.Int32
	var failed atomic.Int32
	pool.SetErrorHandler(func(Task, error) { failed.Add(1) })

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(newFuncTask(func(context.Context) error {
			ran.Add(1)
			return nil
		})))
	}
	require.NoError(t, q.Enqueue(newFuncTask(func(context.Context) error {
		return errors.New("fail")
	})))
	require.NoError(t, q.Enqueue(newFuncTask(func(context.Context) error {
		panic("boom")
	})))

	pool.Start()
	q.Close()
	require.NoError(t, pool.Stop(context.Background()))

	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int32(1), failed.Load())
}

func TestWorkerPoolStopTimesOut(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue(1, setupTestLogger())
	pool := NewWorkerPool(q, WorkerPoolConfig{WorkerCount: 0}, setupTestLogger())
	assert.Equal(t, 1, pool.workerCount)

	require.NoError(t, q.Enqueue(newFuncTask(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))
	pool.Start()
	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Stop(ctx), context.DeadlineExceeded)
}

func TestAsyncEventHandlerDeliversThroughPool(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue(4, setupTestLogger())
	pool := NewWorkerPool(q, DefaultWorkerPoolConfig(), setupTestLogger())

	var mu sync.Mutex
	var seen []string
	record := events.HandlerFunc(func(_ context.Context, e *events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Type)
		return nil
	})
	h := NewAsyncEventHandler(q, setupTestLogger(), record, record)

	event, err := events.NewEvent(events.TypeItemMastered, uuid.New(),
		events.ItemMasteredPayload{ItemID: uuid.New(), Level: domain.MasteryMastered}, time.Now())
	require.NoError(t, err)

	require.NoError(t, h.HandleEvent(context.Background(), event))
	pool.Start()
	q.Close()
	require.NoError(t, pool.Stop(context.Background()))

	assert.Equal(t, []string{events.TypeItemMastered, events.TypeItemMastered}, seen)
}

func TestAsyncEventHandlerReportsFullQueue(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue(1, setupTestLogger())
	noop := events.HandlerFunc(func(context.Context, *events.Event) error { return nil })
	h := NewAsyncEventHandler(q, setupTestLogger(), noop, noop)

	event, err := events.NewEvent(events.TypeStreakBroken, uuid.New(), events.StreakBrokenPayload{}, time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, h.HandleEvent(context.Background(), event), ErrQueueFull)
}
