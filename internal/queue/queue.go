// Package queue provides the in-process dispatch queue feeding generation
// workers. Tasks survive restarts in the database, not here: anything queued
// but unstarted at shutdown stays pending and can be re-enqueued.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Enqueue when the buffer is at capacity.
var ErrQueueFull = errors.New("task queue is full")

// ErrQueueClosed is returned by Enqueue after Stop.
var ErrQueueClosed = errors.New("task queue is closed")

// Handler processes one queued task identified by taskID.
type Handler func(ctx context.Context, taskID string)

// Queue fans queued task IDs out to a fixed pool of workers.
type Queue struct {
	tasks   chan string
	handler Handler
	workers int

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a queue with the given buffer capacity and worker count.
// Values below 1 fall back to sane minimums.
func New(capacity, workers int, handler Handler) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		tasks:   make(chan string, capacity),
		handler: handler,
		workers: workers,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool. Call once.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	logrus.WithField("workers", q.workers).Info("task queue started")
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for taskID := range q.tasks {
		logrus.WithFields(logrus.Fields{
			"worker":  id,
			"task_id": taskID,
		}).Debug("worker picked up task")
		q.handler(q.baseCtx, taskID)
	}
}

// Enqueue hands a task ID to the pool without blocking.
func (q *Queue) Enqueue(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- taskID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight tasks to finish. Queued but
// unstarted tasks are still drained by the workers before they exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
	logrus.Info("task queue stopped")
}
