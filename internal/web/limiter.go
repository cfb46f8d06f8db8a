package web

// limiter.go bounds how many merges run at once.
//
// Each merge holds a slot for its whole lifetime: upload parsing, both
// passes over the inputs and the download. When every slot is taken a
// request waits up to maxWait and then fails with ErrTooManyMerges.
// WaitForDrain lets shutdown wait for running merges.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyMerges is returned when no slot frees up within the wait time.
var ErrTooManyMerges = errors.New("too many concurrent merges, please try again later")

const (
	// DefaultMaxConcurrentMerges applies when the configured limit is not positive.
	DefaultMaxConcurrentMerges = 4

	// DefaultMaxWaitTime applies when the configured wait is not positive.
	DefaultMaxWaitTime = 30 * time.Second
)

// MergeLimiter is a counting semaphore over merge requests.
type MergeLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewMergeLimiter allows at most maxConcurrent merges.
func NewMergeLimiter(maxConcurrent int, maxWait time.Duration) *MergeLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentMerges
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &MergeLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. The caller must Release a
// slot it acquired.
func (l *MergeLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyMerges
	}
}

// Release frees a slot taken by Acquire.
func (l *MergeLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// ActiveCount returns the number of running merges.
func (l *MergeLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *MergeLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no merge is running or ctx is done.
func (l *MergeLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot for the health endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *MergeLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.semaphore),
	}
}
