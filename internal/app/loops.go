// v0
// internal/app/loops.go
package app

import (
	"context"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"nrgchamp/strcontrol/internal/boundedchan"
	"nrgchamp/strcontrol/internal/command"
	"nrgchamp/strcontrol/internal/deadline"
	"nrgchamp/strcontrol/internal/flood"
	"nrgchamp/strcontrol/internal/traffic"
)

// RunFlood runs the producer and the ingestion pipeline on a fresh channel and
// handles mode keys until Quit. Shutdown stops the producer first, then completes
// the channel so the consumer drains what is queued.
func (a *App) RunFlood(ctx context.Context) error {
	a.printf("=== STR: Alerta Temprana Inundaciones (Simulación) ===\n")
	a.printf("Comandos: [1]=Normal  [2]=Vigilancia  [3]=Alerta  [4]=Emergencia  [q]=Volver al menú\n\n")

	cfg := a.cfg
	ch := boundedchan.New[flood.Reading](cfg.QueueCapacity)
	mode := flood.NewModeSelector(flood.ModeNormal)

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	gen := flood.NewGenerator(cfg.SensorID, cfg.ZoneID, mode, seed)
	gen.InvalidEvery = cfg.InvalidEvery

	alerts := flood.MultiAlertSink{flood.NewSlogAlertSink(a.lg), a.opts.Alerts}
	popts := []flood.PipelineOption{flood.WithDeadline(cfg.IngestDeadline)}
	if a.opts.Observer != nil {
		popts = append(popts, flood.WithObserver(a.opts.Observer))
	}
	pipe := flood.NewPipeline(ch, cfg.Policy, deadline.NewMonitor(a.deadlineSink()), alerts, a.lg, popts...)

	a.setActive("flood", pipe, mode, nil)
	defer a.setActive("", nil, nil, nil)

	prodCtx, stopProducer := context.WithCancel(ctx)
	defer stopProducer()

	var g errgroup.Group
	g.Go(func() error { return flood.RunProducer(prodCtx, gen, ch, cfg.SamplePeriod, a.lg) })
	g.Go(func() error { return pipe.Run(ctx) })

	for {
		c, err := a.opts.Keys.Next(ctx)
		if err != nil || c == command.Quit {
			break
		}
		if m, ok := flood.ModeFromKey(rune(c)); ok {
			mode.Set(m)
			a.printf("[UI] Modo: %s\n", m)
			a.lg.Info("mode_changed", "mode", m.String())
		}
	}

	stopProducer()
	ch.Complete()
	err := g.Wait()
	st := pipe.Stats()
	a.lg.Info("flood_loop_stop", "processed", st.Processed, "invalid", st.Invalid, "alerts", st.Alerts, "misses", st.Misses)
	return err
}

// RunTraffic runs the tick task and the command task until Quit or ctx ends. Either
// task cancelling the loop stops both.
func (a *App) RunTraffic(ctx context.Context) error {
	a.printf("=== STR: Semáforo ===\n")
	a.printf("Controles: [n]=modo noche(intermitente)  [a]=auto normal  [q]=Volver al menú\n\n")

	cfg := a.cfg
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	topts := []traffic.Option{
		traffic.WithPhases(cfg.Phases),
		traffic.WithTickPeriod(cfg.TickPeriod),
		traffic.WithTickDeadline(cfg.TickDeadline),
		traffic.WithSink(traffic.MultiSink{traffic.NewSlogSink(a.lg), a.opts.Traffic}),
	}
	if a.opts.Clock != nil {
		topts = append(topts, traffic.WithClock(a.opts.Clock))
	}
	ctrl := traffic.NewController(deadline.NewMonitor(a.deadlineSink()), a.lg, topts...)

	a.setActive("traffic", nil, nil, ctrl)
	defer a.setActive("", nil, nil, nil)

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return ctrl.RunCommands(gctx, a.opts.Keys, cancel) })
	return g.Wait()
}
