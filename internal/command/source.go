// v0
// internal/command/source.go
package command

import (
	"context"
	"errors"
	"sync"
)

// Command is one operator key.
type Command rune

const (
	Quit  Command = 'q'
	Night Command = 'n'
	Auto  Command = 'a'
)

func (c Command) String() string { return string(rune(c)) }

// ErrClosed is returned by Next once a source can deliver no more commands.
var ErrClosed = errors.New("command: source closed")

// Source delivers operator commands. Next blocks until a command arrives, the
// source is closed or ctx ends; on cancellation it returns ctx.Err().
type Source interface {
	Next(ctx context.Context) (Command, error)
}

// Stopped reports whether err from Next is a normal end: closed source or
// cancellation.
func Stopped(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ChanSource is a Source fed in-process, by tests and the HTTP surface.
type ChanSource struct {
	ch   chan Command
	done chan struct{}
	once sync.Once
}

func NewChanSource(buffer int) *ChanSource {
	if buffer < 0 {
		buffer = 0
	}
	return &ChanSource{ch: make(chan Command, buffer), done: make(chan struct{})}
}

// Send blocks until c is accepted, the source is closed or ctx ends.
func (s *ChanSource) Send(ctx context.Context, c Command) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.ch <- c:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend queues c without blocking and reports whether it was accepted.
func (s *ChanSource) TrySend(c Command) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- c:
		return true
	default:
		return false
	}
}

func (s *ChanSource) Next(ctx context.Context) (Command, error) {
	select {
	case c := <-s.ch:
		return c, nil
	case <-s.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close is idempotent. Queued commands not yet taken are dropped.
func (s *ChanSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// MergedSource fans several sources into one.
type MergedSource struct {
	out  chan Command
	done chan struct{}
}

// Merge starts one forwarding goroutine per non-nil source; they run until ctx ends
// or their source stops. The merged source reports ErrClosed once all of them have
// stopped.
func Merge(ctx context.Context, sources ...Source) *MergedSource {
	m := &MergedSource{out: make(chan Command), done: make(chan struct{})}
	var wg sync.WaitGroup
	for _, src := range sources {
		if src == nil {
			continue
		}
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			for {
				c, err := src.Next(ctx)
				if err != nil {
					return
				}
				select {
				case m.out <- c:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}
	go func() {
		wg.Wait()
		close(m.done)
	}()
	return m
}

func (m *MergedSource) Next(ctx context.Context) (Command, error) {
	select {
	case c := <-m.out:
		return c, nil
	case <-m.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
