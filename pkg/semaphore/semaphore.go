// Package semaphore provides the relay's optional ceiling on concurrently
// handled connections.
package semaphore

import (
	"context"
	"fmt"
	"time"
)

// ConnSemaphore limits concurrent connection handlers. Slots are tokens in a
// buffered channel; a nil *ConnSemaphore is unbounded.
type ConnSemaphore struct {
	sem     chan struct{}
	timeout time.Duration
}

// New creates a semaphore with n slots. Acquire waits at most timeout for a slot.
// n <= 0 returns nil, i.e. no limit.
func New(n int, timeout time.Duration) *ConnSemaphore {
	if n <= 0 {
		return nil
	}

	sem := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		sem <- struct{}{}
	}
	return &ConnSemaphore{sem: sem, timeout: timeout}
}

// TryAcquire takes a slot if one is free right now.
func (s *ConnSemaphore) TryAcquire() bool {
	if s == nil {
		return true
	}

	select {
	case <-s.sem:
		return true
	default:
		return false
	}
}

// Acquire waits for a slot until the timeout expires or ctx is cancelled.
func (s *ConnSemaphore) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}

	if s.TryAcquire() {
		return nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case <-s.sem:
		return nil
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("no connection slot free after %v", s.timeout)
	}
}

// Release returns a slot.
func (s *ConnSemaphore) Release() {
	if s == nil {
		return
	}
	s.sem <- struct{}{}
}

// Available reports the number of free slots, -1 if unbounded.
func (s *ConnSemaphore) Available() int {
	if s == nil {
		return -1
	}
	return len(s.sem)
}
