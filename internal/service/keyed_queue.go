package service

import (
	"context"
	"sync"
)

// KeyedQueue runs functions one at a time per key, in arrival order.
// Different keys run concurrently.
type KeyedQueue[K comparable] struct {
	mu     sync.Mutex
	chains map[K]chan struct{}
}

func NewKeyedQueue[K comparable]() *KeyedQueue[K] {
	return &KeyedQueue[K]{chains: map[K]chan struct{}{}}
}

func (q *KeyedQueue[K]) Run(ctx context.Context, key K, fn func(context.Context) error) error {
	q.mu.Lock()
	previous := q.chains[key]
	next := make(chan struct{})
	q.chains[key] = next
	q.mu.Unlock()

	release := func() {
		close(next)
		q.mu.Lock()
		if q.chains[key] == next {
			delete(q.chains, key)
		}
		q.mu.Unlock()
	}

	if previous != nil {
		select {
		case <-previous:
		case <-ctx.Done():
			// Keep the chain intact: whoever queued behind us still waits for previous.
			go func() {
				<-previous
				release()
			}()
			return ctx.Err()
		}
	}
	defer release()

	return fn(ctx)
}

// Pending reports how many keys currently have queued or running work.
func (q *KeyedQueue[K]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chains)
}
