// v0
// internal/traffic/controller.go
package traffic

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nrgchamp/strcontrol/internal/command"
	"nrgchamp/strcontrol/internal/deadline"
)

const (
	// TickLabel labels every measured tick.
	TickLabel = "TICK"
	// TickContext is attached to every tick record.
	TickContext = "Control periódico del semáforo"

	DefaultTickPeriod   = 200 * time.Millisecond
	DefaultTickDeadline = 120 * time.Millisecond
)

// Stats are cumulative controller counters.
type Stats struct {
	Ticks       int64 `json:"ticks"`
	Misses      int64 `json:"misses"`
	Transitions int64 `json:"transitions"`
}

// Controller is the traffic-light state machine. The tick task and the command task
// share one Snapshot guarded by mu; every mutation swaps the whole snapshot, and a
// tick's check-and-transition runs under the lock, so a command is never lost and
// is visible no later than the next tick.
//
// emitMu is taken before mu and held until the sinks have seen the events, so
// sinks observe changes in the order they were applied.
type Controller struct {
	emitMu sync.Mutex
	mu     sync.Mutex
	snap   Snapshot

	phases Phases
	mon    *deadline.Monitor
	sink   Sink
	lg     *slog.Logger
	now    func() time.Time
	period time.Duration
	limit  time.Duration

	ticks       atomic.Int64
	misses      atomic.Int64
	transitions atomic.Int64
}

type Option func(*Controller)

func WithPhases(p Phases) Option { return func(c *Controller) { c.phases = p } }

func WithSink(s Sink) Option { return func(c *Controller) { c.sink = s } }

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithTickPeriod(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.period = d
		}
	}
}

func WithTickDeadline(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.limit = d
		}
	}
}

// NewController starts in Rojo with a full Rojo dwell and reports that change.
func NewController(mon *deadline.Monitor, lg *slog.Logger, opts ...Option) *Controller {
	if mon == nil {
		mon = deadline.NewMonitor(nil)
	}
	c := &Controller{
		phases: DefaultPhases(),
		mon:    mon,
		lg:     lg,
		now:    time.Now,
		period: DefaultTickPeriod,
		limit:  DefaultTickDeadline,
	}
	for _, o := range opts {
		o(c)
	}
	if c.sink == nil {
		c.sink = SinkFunc(func(Event) {})
	}
	now := c.now()
	c.mu.Lock()
	ev := c.enterLocked(Rojo, false, now)
	c.mu.Unlock()
	c.emit(ev)
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Controller) Stats() Stats {
	return Stats{Ticks: c.ticks.Load(), Misses: c.misses.Load(), Transitions: c.transitions.Load()}
}

// EnterNight forces Intermitente and sets night mode, whatever dwell remains.
func (c *Controller) EnterNight() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	now := c.now()
	c.mu.Lock()
	ev := c.enterLocked(Intermitente, true, now)
	c.mu.Unlock()
	c.emit(ev, Event{Kind: EventNight, At: now, Snapshot: ev.Snapshot})
}

// EnterAuto clears night mode and restarts the cycle from Rojo with a fresh dwell.
func (c *Controller) EnterAuto() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	now := c.now()
	c.mu.Lock()
	ev := c.enterLocked(Rojo, false, now)
	c.mu.Unlock()
	c.emit(ev, Event{Kind: EventAuto, At: now, Snapshot: ev.Snapshot})
}

// Tick runs one measured evaluation and returns its deadline record. A miss is
// counted and logged; the next tick runs on schedule regardless.
func (c *Controller) Tick() deadline.Record {
	rec := c.mon.Time(TickLabel, c.limit, c.step, func() string { return TickContext })
	c.ticks.Add(1)
	if rec.Missed() {
		c.misses.Add(1)
	}
	return rec
}

func (c *Controller) step() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	now := c.now()
	c.mu.Lock()
	var ev Event
	switch {
	case c.snap.Night:
		ev = Event{Kind: EventBlink, At: now, Snapshot: c.snap}
	case !now.Before(c.snap.EndsAt):
		ev = c.enterLocked(c.snap.State.next(), false, now)
	default:
		ev = Event{Kind: EventStatus, At: now, Snapshot: c.snap, Remaining: c.snap.Remaining(now)}
	}
	c.mu.Unlock()
	c.emit(ev)
}

func (c *Controller) enterLocked(s LightState, night bool, now time.Time) Event {
	c.snap = enter(c.phases, s, night, now)
	c.transitions.Add(1)
	d, _ := c.phases.Dwell(s)
	return Event{Kind: EventChange, At: now, Snapshot: c.snap, Dwell: d}
}

func (c *Controller) emit(evs ...Event) {
	for _, ev := range evs {
		c.sink.Observe(ev)
	}
}

// Run ticks at a fixed cadence until ctx is cancelled. The first tick runs
// immediately.
func (c *Controller) Run(ctx context.Context) error {
	t := time.NewTicker(c.period)
	defer t.Stop()
	c.lg.Info("tick_loop_start", "period_ms", c.period.Milliseconds(), "deadline_ms", c.limit.Milliseconds())
	for ctx.Err() == nil {
		c.Tick()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
	st := c.Stats()
	c.lg.Info("tick_loop_stop", "ticks", st.Ticks, "misses", st.Misses)
	return nil
}

// Apply executes one command and reports whether it asked to leave the loop.
// Unknown keys are ignored.
func (c *Controller) Apply(cmd command.Command) (quit bool) {
	switch cmd {
	case command.Night:
		c.EnterNight()
	case command.Auto:
		c.EnterAuto()
	case command.Quit:
		return true
	default:
		c.lg.Debug("command ignored", "key", cmd.String())
	}
	return false
}

// RunCommands applies commands from src until ctx ends or src stops. On Quit it
// calls stop, which cancels the whole traffic loop. A closed source does the same.
func (c *Controller) RunCommands(ctx context.Context, src command.Source, stop context.CancelFunc) error {
	for {
		cmd, err := src.Next(ctx)
		if errors.Is(err, command.ErrClosed) {
			c.lg.Info("command_loop_stop", "reason", "source_closed")
			if stop != nil {
				stop()
			}
			return nil
		}
		if err != nil {
			if command.Stopped(err) {
				return nil
			}
			return err
		}
		if c.Apply(cmd) {
			c.lg.Info("command_loop_stop", "reason", "quit")
			if stop != nil {
				stop()
			}
			return nil
		}
	}
}
