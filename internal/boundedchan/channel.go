// v0
// internal/boundedchan/channel.go
package boundedchan

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
)

var (
	// ErrClosed is returned by Put once Complete has been called.
	ErrClosed = errors.New("boundedchan: channel completed; no further input accepted")
	// ErrEndOfStream is returned by Take when the channel is completed and drained.
	ErrEndOfStream = errors.New("boundedchan: end of stream")
	// ErrCancelled is returned when the caller's context ends before or during a wait.
	// The context error is wrapped alongside it.
	ErrCancelled = errors.New("boundedchan: cancelled")
	// ErrFull is returned by TryPut when no slot is free.
	ErrFull = errors.New("boundedchan: channel full")
)

// Channel is a fixed-capacity FIFO queue with blocking Put/Take, context
// cancellation and a completion signal that lets the consumer drain what is
// already queued before it observes ErrEndOfStream.
//
// Waiters block on a notification channel that is closed and replaced on every
// state change, so a blocked call can also select on ctx.Done().
type Channel[T any] struct {
	mu        sync.Mutex
	items     []T
	head      int
	size      int
	completed bool
	changed   chan struct{}
}

// New builds a channel holding at most capacity pending items. It panics if
// capacity is below one.
func New[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("boundedchan: invalid capacity %d", capacity))
	}
	return &Channel[T]{
		items:   make([]T, capacity),
		changed: make(chan struct{}),
	}
}

// Put appends item, blocking while the channel is full.
func (c *Channel[T]) Put(ctx context.Context, item T) error {
	for {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		c.mu.Lock()
		if c.completed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.size < len(c.items) {
			c.items[(c.head+c.size)%len(c.items)] = item
			c.size++
			c.notifyLocked()
			c.mu.Unlock()
			return nil
		}
		wait := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return cancelled(ctx.Err())
		case <-wait:
		}
	}
}

// TryPut appends item only if a slot is free right now. It never waits.
func (c *Channel[T]) TryPut(item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		return ErrClosed
	}
	if c.size == len(c.items) {
		return ErrFull
	}
	c.items[(c.head+c.size)%len(c.items)] = item
	c.size++
	c.notifyLocked()
	return nil
}

// Take removes and returns the oldest item, blocking while the channel is empty
// and not yet completed.
func (c *Channel[T]) Take(ctx context.Context) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, cancelled(err)
		}
		c.mu.Lock()
		if c.size > 0 {
			item := c.items[c.head]
			c.items[c.head] = zero
			c.head = (c.head + 1) % len(c.items)
			c.size--
			c.notifyLocked()
			c.mu.Unlock()
			return item, nil
		}
		if c.completed {
			c.mu.Unlock()
			return zero, ErrEndOfStream
		}
		wait := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, cancelled(ctx.Err())
		case <-wait:
		}
	}
}

// Complete marks the channel as accepting no further input. Already queued items
// stay available to Take. Calling it more than once has no further effect.
func (c *Channel[T]) Complete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		return
	}
	c.completed = true
	c.notifyLocked()
}

// All yields items by repeated Take until the stream ends or ctx is cancelled.
// The sequence is consumed as it is iterated and cannot be restarted.
func (c *Channel[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			item, err := c.Take(ctx)
			if err != nil {
				return
			}
			if !yield(item) {
				return
			}
		}
	}
}

// Len returns the number of pending items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Cap returns the fixed capacity.
func (c *Channel[T]) Cap() int { return len(c.items) }

// Completed reports whether Complete has been called.
func (c *Channel[T]) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

func (c *Channel[T]) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
