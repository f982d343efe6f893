package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueProcessesAllTasks(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)

	q := New(16, 4, func(_ context.Context, taskID string) {
		mu.Lock()
		seen[taskID] = true
		mu.Unlock()
	})
	q.Start()

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		if err := q.Enqueue(id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	q.Stop()

	for _, id := range ids {
		if !seen[id] {
			t.Fatalf("task %s was never processed", id)
		}
	}
}

func TestQueueFull(t *testing.T) {
	release := make(chan struct{})
	q := New(1, 1, func(_ context.Context, _ string) {
		<-release
	})
	q.Start()
	defer func() {
		close(release)
		q.Stop()
	}()

	// First fills the worker, second fills the buffer.
	if err := q.Enqueue("busy"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// Give the worker a moment to pick up the first task.
	deadline := time.After(time.Second)
	for {
		if err := q.Enqueue("buffered"); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("buffer slot never freed")
		case <-time.After(time.Millisecond):
		}
	}

	if err := q.Enqueue("overflow"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	q := New(4, 1, func(_ context.Context, _ string) {})
	q.Start()
	q.Stop()

	if err := q.Enqueue("late"); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestQueueStopIsIdempotent(t *testing.T) {
	q := New(4, 2, func(_ context.Context, _ string) {})
	q.Start()
	q.Stop()
	q.Stop()
}
