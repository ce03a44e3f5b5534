// v1
// internal/breaker/breaker.go
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config holds the breaker tunables.
type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // how long to stay open before probing
	SuccessesToClose int           // successes required in HalfOpen before closing
}

type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	recentFails int
	halfOpenOK  int
	openedAt    time.Time

	probe    func(ctx context.Context) error
	onChange func(name string, s State)
	now      func() time.Time
}

func New(name string, cfg Config, probe func(ctx context.Context) error, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.SuccessesToClose < 1 {
		cfg.SuccessesToClose = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger,
		state:  Closed,
		probe:  probe,
		now:    time.Now,
	}
	b.logger.Info("breaker_created", "name", name, "state", b.state.String(), "maxFailures", cfg.MaxFailures, "resetTimeout", cfg.ResetTimeout.String())
	return b
}

// OnStateChange registers a hook called (outside the lock) after every transition.
func (b *Breaker) OnStateChange(fn func(name string, s State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	state := b.state
	openedAt := b.openedAt
	b.mu.Unlock()

	if state == Open {
		if b.now().Sub(openedAt) < b.cfg.ResetTimeout {
			b.logger.Warn("breaker_fast_fail", "name", b.name, "since_open", b.now().Sub(openedAt).String())
			return ErrOpen
		}
		if b.probe != nil {
			if err := b.probe(ctx); err != nil {
				b.logger.Warn("breaker_probe_failed", "name", b.name, "error", err.Error())
				b.transition(Open)
				return ErrOpen
			}
		}
		b.transition(HalfOpen)
	}

	err := op(ctx)
	if err == nil {
		b.onSuccess()
		return nil
	}
	if b.onFailure(err) {
		return ErrOpen
	}
	return err
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	var next State
	switch b.state {
	case HalfOpen:
		b.halfOpenOK++
		if b.halfOpenOK < b.cfg.SuccessesToClose {
			b.mu.Unlock()
			return
		}
		next = Closed
	case Closed:
		b.recentFails = 0
		b.mu.Unlock()
		return
	default:
		next = Closed
	}
	b.mu.Unlock()
	b.transition(next)
}

// onFailure reports whether the failure opened the breaker.
func (b *Breaker) onFailure(err error) bool {
	b.mu.Lock()
	b.recentFails++
	fails := b.recentFails
	open := b.state == HalfOpen || fails >= b.cfg.MaxFailures
	b.mu.Unlock()
	b.logger.Warn("operation_failure", "name", b.name, "failures", fails, "error", err.Error())
	if open {
		b.transition(Open)
	}
	return open
}

func (b *Breaker) transition(to State) {
	b.mu.Lock()
	from := b.state
	b.state = to
	switch to {
	case Open:
		b.openedAt = b.now()
		b.halfOpenOK = 0
	case HalfOpen:
		b.halfOpenOK = 0
	case Closed:
		b.recentFails = 0
		b.halfOpenOK = 0
	}
	hook := b.onChange
	b.mu.Unlock()

	if from == to {
		return
	}
	switch to {
	case Open:
		b.logger.Error("breaker_opened", "name", b.name, "from", from.String(), "maxFailures", b.cfg.MaxFailures)
	case HalfOpen:
		b.logger.Info("breaker_half_open", "name", b.name)
	case Closed:
		b.logger.Info("breaker_closed", "name", b.name, "from", from.String())
	}
	if hook != nil {
		hook(b.name, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
