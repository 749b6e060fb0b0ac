package async

import (
	"context"
	"errors"
	"time"
)

var (
	ErrQueueClosed = errors.New("queue is shutting down")
	ErrQueueFull   = errors.New("queue is full")
)

// Task is one unit of background work. Run receives a context that is cancelled
// when the task's timeout elapses or shutdown gives up waiting.
type Task struct {
	ID          string
	SubmittedAt time.Time
	Run         func(ctx context.Context) error
	// Dropped, if set, is called instead of Run when a forced shutdown
	// discards the task before it started.
	Dropped func(err error)
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Waiting counts tasks accepted but not yet running.
	Waiting() int
	Shutdown(ctx context.Context) error
}
