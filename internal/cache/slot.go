// Package cache holds a single-entry query cache with staleness windows,
// shared in-flight refreshes, and generation-based invalidation.
package cache

import (
	"context"
	"sync"
	"time"
)

type Fetcher[T any] func(ctx context.Context) (T, error)

type Option func(*options)

type options struct {
	now func() time.Time
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Slot caches the result of one fetcher.
//
// At most one refresh is pending per generation and concurrent readers
// share it. Invalidate starts a new generation: a refresh that began
// before it can still answer the readers that were already waiting, but
// it never repopulates the slot.
type Slot[T any] struct {
	fetch Fetcher[T]
	now   func() time.Time

	mu        sync.Mutex
	value     T
	fetchedAt time.Time
	valid     bool
	gen       uint64
	pending   *call[T]

	fetches       int
	invalidations int
}

type call[T any] struct {
	gen   uint64
	done  chan struct{}
	value T
	err   error
}

func NewSlot[T any](fetch Fetcher[T], opts ...Option) *Slot[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Slot[T]{fetch: fetch, now: o.now}
}

// Get returns the cached value when it is younger than maxAge, otherwise it
// waits for the pending refresh (starting one if needed).
func (s *Slot[T]) Get(ctx context.Context, maxAge time.Duration) (T, error) {
	s.mu.Lock()
	if s.freshLocked(maxAge) {
		v := s.value
		s.mu.Unlock()
		return v, nil
	}
	c := s.startLocked(ctx)
	s.mu.Unlock()

	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek returns the last value without waiting. When that value is stale a
// background refresh is started. After Invalidate or Reset, Peek reports
// false until a refresh of the new generation lands.
func (s *Slot[T]) Peek(maxAge time.Duration) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.freshLocked(maxAge) {
		s.startLocked(context.Background())
	}
	if !s.valid {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Invalidate forces the next read to refetch regardless of age.
func (s *Slot[T]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.valid = false
	s.invalidations++
}

// Reset drops the cached value, e.g. when the session that owned it ends.
func (s *Slot[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.gen++
	s.value = zero
	s.valid = false
	s.fetchedAt = time.Time{}
}

// Update rewrites the cached value in place without changing its age.
// It is a no-op when the slot holds nothing.
func (s *Slot[T]) Update(fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return
	}
	s.value = fn(s.value)
}

func (s *Slot[T]) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *Slot[T]) Invalidations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidations
}

func (s *Slot[T]) freshLocked(maxAge time.Duration) bool {
	return s.valid && s.now().Sub(s.fetchedAt) < maxAge
}

func (s *Slot[T]) startLocked(ctx context.Context) *call[T] {
	if s.pending != nil && s.pending.gen == s.gen {
		return s.pending
	}
	c := &call[T]{gen: s.gen, done: make(chan struct{})}
	s.pending = c
	s.fetches++
	// One reader giving up must not cancel the refresh the others share.
	go s.run(context.WithoutCancel(ctx), c)
	return c
}

func (s *Slot[T]) run(ctx context.Context, c *call[T]) {
	v, err := s.fetch(ctx)

	s.mu.Lock()
	c.value, c.err = v, err
	if s.pending == c {
		s.pending = nil
	}
	if err == nil && c.gen == s.gen {
		s.value = v
		s.fetchedAt = s.now()
		s.valid = true
	}
	s.mu.Unlock()

	close(c.done)
}
