package modal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_RunsInOrderOneAtATime(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var mu sync.Mutex
	var order []int
	running := 0
	maxRunning := 0

	for i := 0; i < 20; i++ {
		i := i
		q.Enqueue(func(ctx context.Context) {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			Sleep(ctx, time.Millisecond)

			mu.Lock()
			order = append(order, i)
			running--
			mu.Unlock()
		})
	}

	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if maxRunning != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", maxRunning)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestQueue_CloseCancelsRunningTask(t *testing.T) {
	q := NewQueue()

	started := make(chan struct{})
	finished := make(chan bool, 1)
	q.Enqueue(func(ctx context.Context) {
		close(started)
		finished <- Sleep(ctx, time.Hour)
	})

	ran := false
	q.Enqueue(func(context.Context) { ran = true })

	<-started
	q.Close()

	select {
	case full := <-finished:
		if full {
			t.Error("Sleep should report cancellation after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("running task was not cancelled")
	}
	if ran {
		t.Error("pending task should be dropped on Close")
	}
	if q.Enqueue(func(context.Context) {}) {
		t.Error("Enqueue after Close should return false")
	}
	if err := q.Drain(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Drain after Close = %v, want ErrClosed", err)
	}

	// Second close must not block or panic.
	q.Close()
}

func TestQueue_DrainHonoursContext(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	block := make(chan struct{})
	q.Enqueue(func(ctx context.Context) {
		select {
		case <-block:
		case <-ctx.Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := q.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() = %v, want deadline exceeded", err)
	}
	close(block)
}

func TestSleep_ZeroDuration(t *testing.T) {
	if !Sleep(context.Background(), 0) {
		t.Error("Sleep(0) on a live context should report true")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Sleep(ctx, 0) {
		t.Error("Sleep(0) on a cancelled context should report false")
	}
}
