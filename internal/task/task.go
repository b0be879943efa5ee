package task

import (
	"context"

	"github.com/google/uuid"
)

// Task is one unit of background work, such as delivering an event to a
// downstream handler.
type Task interface {
	ID() uuid.UUID
	// Type names the work in logs, e.g. "deliver:STREAK_BROKEN".
	Type() string
	Execute(ctx context.Context) error
}

// TaskQueueReader is the consumer side of a queue, used by WorkerPool.
type TaskQueueReader interface {
	GetChannel() <-chan Task
}

// TaskQueueWriter is the producer side of a queue. Enqueue never blocks; it
// fails with ErrQueueFull or ErrQueueClosed instead.
type TaskQueueWriter interface {
	Enqueue(task Task) error
	Close()
}
