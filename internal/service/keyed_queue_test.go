package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedQueueSerializesSameKey(t *testing.T) {
	q := NewKeyedQueue[int64]()
	var (
		mu      sync.Mutex
		order   []int
		running int32
	)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = q.Run(context.Background(), 1, func(context.Context) error {
				if atomic.AddInt32(&running, 1) != 1 {
					t.Errorf("two functions ran concurrently for one key")
				}
				time.Sleep(time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				atomic.AddInt32(&running, -1)
				return nil
			})
		}(i)
		// Give each goroutine time to enqueue so arrival order is known.
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("out of order at %d: %v", i, order)
		}
	}
	if q.Pending() != 0 {
		t.Fatalf("expected no pending keys, got %d", q.Pending())
	}
}

func TestKeyedQueueDifferentKeysRunConcurrently(t *testing.T) {
	q := NewKeyedQueue[int64]()
	started := make(chan struct{})
	unblock := make(chan struct{})

	go func() {
		_ = q.Run(context.Background(), 1, func(context.Context) error {
			close(started)
			<-unblock
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- q.Run(context.Background(), 2, func(context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("key 2 was blocked by key 1")
	}
	close(unblock)
}

func TestKeyedQueueCanceledWaiterKeepsChain(t *testing.T) {
	q := NewKeyedQueue[int64]()
	started := make(chan struct{})
	unblock := make(chan struct{})
	firstDone := make(chan struct{})

	go func() {
		defer close(firstDone)
		_ = q.Run(context.Background(), 1, func(context.Context) error {
			close(started)
			<-unblock
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := q.Run(ctx, 1, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected canceled waiter to skip fn, err=%v called=%v", err, called)
	}

	third := make(chan struct{})
	go func() {
		_ = q.Run(context.Background(), 1, func(context.Context) error {
			select {
			case <-firstDone:
			default:
				t.Errorf("third function ran before the first finished")
			}
			close(third)
			return nil
		})
	}()

	close(unblock)
	select {
	case <-third:
	case <-time.After(time.Second):
		t.Fatal("queue stalled after a canceled waiter")
	}
}
