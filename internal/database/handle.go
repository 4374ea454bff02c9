package database

import (
	"context"
	"errors"
	"sync"
)

// Handle opens a shared connection on first use and hands the same value to every later
// caller. Concurrent first callers wait for a single open; a failed open is retried by the
// next caller.
type Handle[T any] struct {
	mu     sync.Mutex
	open   func(ctx context.Context) (T, error)
	value  T
	opened bool
}

// NewHandle wraps an opener in a Handle.
func NewHandle[T any](open func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{open: open}
}

// Get returns the shared value, opening it when necessary.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opened {
		return h.value, nil
	}

	var zero T
	if h.open == nil {
		return zero, errors.New("database handle: opener is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	value, err := h.open(ctx)
	if err != nil {
		return zero, err
	}

	h.value = value
	h.opened = true
	return value, nil
}

// Reset forgets the shared value and returns it so the caller can close it.
func (h *Handle[T]) Reset() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	value, opened := h.value, h.opened
	var zero T
	h.value = zero
	h.opened = false
	return value, opened
}
