// v0
// internal/command/keys.go
package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"unicode"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-tty"
)

// KeySource reads single keys from the operator. One goroutine owns the reader and
// hands keys over an unbuffered channel, so a key is only consumed when some Next
// call is waiting for it and Next itself can observe cancellation.
type KeySource struct {
	keys   chan Command
	err    error
	closer io.Closer
}

// OpenTerminal reads raw keys through go-tty when f is a terminal and falls back to
// a line reader otherwise (pipes, redirected input).
func OpenTerminal(f *os.File) (*KeySource, error) {
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return NewReaderSource(f), nil
	}
	t, err := tty.Open()
	if err != nil {
		return nil, fmt.Errorf("open tty: %w", err)
	}
	return newKeySource(t.ReadRune, t), nil
}

// NewReaderSource reads keys from r, skipping whitespace and line breaks.
func NewReaderSource(r io.Reader) *KeySource {
	br := bufio.NewReader(r)
	var closer io.Closer
	if c, ok := r.(io.Closer); ok && r != os.Stdin {
		closer = c
	}
	return newKeySource(func() (rune, error) {
		k, _, err := br.ReadRune()
		return k, err
	}, closer)
}

func newKeySource(read func() (rune, error), closer io.Closer) *KeySource {
	s := &KeySource{keys: make(chan Command), closer: closer}
	go s.pump(read)
	return s
}

func (s *KeySource) pump(read func() (rune, error)) {
	for {
		r, err := read()
		if err != nil {
			s.err = fmt.Errorf("%w: %w", ErrClosed, err)
			close(s.keys)
			return
		}
		if r == 0 || unicode.IsSpace(r) || unicode.IsControl(r) {
			continue
		}
		s.keys <- Command(unicode.ToLower(r))
	}
}

func (s *KeySource) Next(ctx context.Context) (Command, error) {
	select {
	case c, ok := <-s.keys:
		if !ok {
			return 0, s.err
		}
		return c, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close releases the terminal. The reader goroutine ends with its next read error.
func (s *KeySource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
