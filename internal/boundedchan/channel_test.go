// v0
// internal/boundedchan/channel_test.go
package boundedchan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutTakePreservesOrder(t *testing.T) {
	ctx := context.Background()
	c := New[int](8)
	for i := 0; i < 8; i++ {
		require.NoError(t, c.Put(ctx, i))
	}
	assert.Equal(t, 8, c.Len())
	for i := 0; i < 8; i++ {
		got, err := c.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
	assert.Equal(t, 0, c.Len())
}

func TestOrderAcrossWrapAround(t *testing.T) {
	ctx := context.Background()
	c := New[int](3)
	next := 0
	for round := 0; round < 5; round++ {
		require.NoError(t, c.Put(ctx, round*2))
		require.NoError(t, c.Put(ctx, round*2+1))
		for i := 0; i < 2; i++ {
			got, err := c.Take(ctx)
			require.NoError(t, err)
			assert.Equal(t, next, got)
			next++
		}
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := New[string](4)
	require.NoError(t, c.Put(ctx, "a"))
	c.Complete()
	c.Complete()
	assert.True(t, c.Completed())

	got, err := c.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	_, err = c.Take(ctx)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestTakeOnCompletedEmptyChannel(t *testing.T) {
	c := New[int](1)
	c.Complete()
	_, err := c.Take(context.Background())
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestPutOnCompletedChannelFailsWithClosed(t *testing.T) {
	c := New[int](10)
	c.Complete()
	err := c.Put(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, c.Len())
}

func TestPutBlocksWhenFullUntilTake(t *testing.T) {
	ctx := context.Background()
	c := New[int](1)
	require.NoError(t, c.Put(ctx, 1))

	done := make(chan error, 1)
	go func() { done <- c.Put(ctx, 2) }()

	select {
	case err := <-done:
		t.Fatalf("put returned early on a full channel: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	got, err := c.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	require.NoError(t, <-done)
	got, err = c.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestPutCancelledWhileBlocked(t *testing.T) {
	c := New[int](1)
	require.NoError(t, c.Put(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Put(ctx, 2) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("put did not observe cancellation")
	}
}

func TestPutCancelledBeforeCall(t *testing.T) {
	c := New[int](4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Put(ctx, 1), ErrCancelled)
	assert.Equal(t, 0, c.Len())
}

func TestTakeCancelledWhileWaiting(t *testing.T) {
	c := New[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Take(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompleteWakesBlockedConsumer(t *testing.T) {
	c := New[int](2)
	done := make(chan error, 1)
	go func() {
		_, err := c.Take(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	c.Complete()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrEndOfStream)
	case <-time.After(time.Second):
		t.Fatal("consumer stayed blocked after Complete")
	}
}

func TestCompleteWakesBlockedProducer(t *testing.T) {
	c := New[int](1)
	require.NoError(t, c.Put(context.Background(), 1))
	done := make(chan error, 1)
	go func() { done <- c.Put(context.Background(), 2) }()
	time.Sleep(10 * time.Millisecond)
	c.Complete()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("producer stayed blocked after Complete")
	}
}

func TestAllDrainsThenStops(t *testing.T) {
	ctx := context.Background()
	c := New[int](5)
	for i := 1; i <= 3; i++ {
		require.NoError(t, c.Put(ctx, i))
	}
	c.Complete()

	var got []int
	for v := range c.All(ctx) {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3}, got)

	// exhausted: a second pass yields nothing
	for v := range c.All(ctx) {
		t.Fatalf("unexpected item %d after exhaustion", v)
	}
}

func TestConcurrentProducerConsumerKeepsFIFO(t *testing.T) {
	const n = 500
	ctx := context.Background()
	c := New[int](4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.Complete()
		for i := 0; i < n; i++ {
			if err := c.Put(ctx, i); err != nil {
				t.Errorf("put %d: %v", i, err)
				return
			}
			if c.Len() > c.Cap() {
				t.Errorf("len %d exceeds capacity %d", c.Len(), c.Cap())
			}
		}
	}()

	want := 0
	for {
		v, err := c.Take(ctx)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, want, v)
		want++
	}
	wg.Wait()
	assert.Equal(t, n, want)
}

func TestNewPanicsOnInvalidCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}

func TestTryPutNeverWaits(t *testing.T) {
	c := New[int](1)
	require.NoError(t, c.TryPut(1))
	assert.ErrorIs(t, c.TryPut(2), ErrFull)
	assert.Equal(t, 1, c.Len())

	v, err := c.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, c.TryPut(3))

	c.Complete()
	assert.ErrorIs(t, c.TryPut(4), ErrClosed)
}
