// v0
// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"nrgchamp/strcontrol/internal/command"
	"nrgchamp/strcontrol/internal/config"
	"nrgchamp/strcontrol/internal/deadline"
	"nrgchamp/strcontrol/internal/flood"
	"nrgchamp/strcontrol/internal/traffic"
)

// Options carries the collaborators main wires in. Nil fields are skipped.
type Options struct {
	// Out receives the operator menu and UI lines.
	Out io.Writer
	// Keys delivers every operator command, for the menu and both loops.
	Keys command.Source
	// Deadlines, Alerts and Traffic are extra sinks next to the log.
	Deadlines deadline.Sink
	Alerts    flood.AlertSink
	Traffic   traffic.Sink
	Observer  flood.Observer
	// Clock replaces time.Now in the traffic controller.
	Clock func() time.Time
}

// App runs the operator menu and one loop at a time.
type App struct {
	cfg  *config.Config
	lg   *slog.Logger
	opts Options

	mu   sync.Mutex
	loop string
	pipe *flood.Pipeline
	mode *flood.ModeSelector
	ctrl *traffic.Controller
}

func New(cfg *config.Config, lg *slog.Logger, opts Options) *App {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &App{cfg: cfg, lg: lg, opts: opts}
}

// Status is served on /status.
type Status struct {
	Loop         string            `json:"loop"`
	Mode         string            `json:"mode,omitempty"`
	Flood        *flood.Stats      `json:"flood,omitempty"`
	Traffic      *traffic.Snapshot `json:"traffic,omitempty"`
	TrafficStats *traffic.Stats    `json:"trafficStats,omitempty"`
}

func (a *App) Status() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{Loop: a.loop}
	if st.Loop == "" {
		st.Loop = "menu"
	}
	if a.pipe != nil {
		fs := a.pipe.Stats()
		st.Flood = &fs
		st.Mode = a.mode.Get().String()
	}
	if a.ctrl != nil {
		snap, ts := a.ctrl.Snapshot(), a.ctrl.Stats()
		st.Traffic = &snap
		st.TrafficStats = &ts
	}
	return st
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.opts.Out, format, args...)
}

func (a *App) deadlineSink() deadline.Sink {
	return deadline.MultiSink(deadline.NewSlogSink(a.lg), a.opts.Deadlines)
}

// Run shows the menu until the operator quits, the key source closes or ctx ends.
func (a *App) Run(ctx context.Context) error {
	for {
		a.printf("\n=== PROYECTO STR ===\n[1] STR Inundaciones (Simulación)\n[2] STR Semáforo\n[q] Salir\nSeleccione: ")
		c, err := a.opts.Keys.Next(ctx)
		if err != nil {
			if command.Stopped(err) {
				return nil
			}
			return err
		}
		a.printf("\n")
		switch c {
		case command.Quit:
			return nil
		case '1':
			err = a.RunFlood(ctx)
		case '2':
			err = a.RunTraffic(ctx)
		default:
			a.printf("Opción inválida.\n")
			continue
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		a.printf("Volviendo al menú...\n")
	}
}

func (a *App) setActive(loop string, pipe *flood.Pipeline, mode *flood.ModeSelector, ctrl *traffic.Controller) {
	a.mu.Lock()
	a.loop, a.pipe, a.mode, a.ctrl = loop, pipe, mode, ctrl
	a.mu.Unlock()
}
