// v0
// internal/flood/pipeline.go
package flood

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"nrgchamp/strcontrol/internal/boundedchan"
	"nrgchamp/strcontrol/internal/deadline"
)

// TaskLabel labels every measured ingestion cycle.
const TaskLabel = "INGESTA+PROC"

// DefaultProcessingDeadline is the soft budget for one reading.
const DefaultProcessingDeadline = 200 * time.Millisecond

// Observer receives per-reading signals, e.g. for metrics.
type Observer interface {
	ObserveReading(state RiskState, valid bool)
	ObserveQueueDepth(n int)
}

// Outcome describes what the pipeline did with one reading.
type Outcome struct {
	Reading    Reading
	Err        error
	State      RiskState
	Rule       string
	Alerted    bool
	ServerTime time.Time
}

// Valid reports whether the reading passed validation.
func (o Outcome) Valid() bool { return o.Err == nil }

// Describe renders the context string attached to the deadline record.
func (o Outcome) Describe() string {
	note := ""
	var inv *InvalidReadingError
	if errors.As(o.Err, &inv) {
		note = " (invalid " + inv.Field + ")"
	}
	return fmt.Sprintf("WL=%.2fm Rain=%.1fmm/h | Valid=%t%s | Estado=%s Regla=%s | tS=%s tSrv=%s",
		o.Reading.WaterLevelM, o.Reading.RainMmH,
		o.Valid(), note,
		o.State, o.Rule,
		o.Reading.SensorTime.UTC().Format(deadline.StampLayout),
		o.ServerTime.UTC().Format(deadline.StampLayout),
	)
}

// Stats are cumulative pipeline counters.
type Stats struct {
	Processed int64 `json:"processed"`
	Invalid   int64 `json:"invalid"`
	Alerts    int64 `json:"alerts"`
	Misses    int64 `json:"misses"`
}

// Pipeline consumes readings from a bounded channel, validates, classifies and
// raises alerts, timing each reading against the processing deadline.
type Pipeline struct {
	in     *boundedchan.Channel[Reading]
	policy RiskPolicy
	mon    *deadline.Monitor
	alerts AlertSink
	limit  time.Duration
	lg     *slog.Logger
	obs    Observer
	now    func() time.Time

	processed atomic.Int64
	invalid   atomic.Int64
	alerted   atomic.Int64
	misses    atomic.Int64
}

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

func WithDeadline(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.limit = d
		}
	}
}

func WithObserver(o Observer) PipelineOption {
	return func(p *Pipeline) { p.obs = o }
}

func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPipeline(in *boundedchan.Channel[Reading], policy RiskPolicy, mon *deadline.Monitor, alerts AlertSink, lg *slog.Logger, opts ...PipelineOption) *Pipeline {
	if alerts == nil {
		alerts = AlertSinkFunc(func(context.Context, Alert) error { return nil })
	}
	p := &Pipeline{
		in:     in,
		policy: policy,
		mon:    mon,
		alerts: alerts,
		limit:  DefaultProcessingDeadline,
		lg:     lg,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run consumes until the channel reports end of stream or ctx is cancelled. Both
// are normal terminations and return nil.
func (p *Pipeline) Run(ctx context.Context) error {
	p.lg.Info("ingest_loop_start", "deadline_ms", p.limit.Milliseconds(), "capacity", p.in.Cap())
	for {
		r, err := p.in.Take(ctx)
		switch {
		case errors.Is(err, boundedchan.ErrEndOfStream):
			p.lg.Info("ingest_loop_stop", "reason", "end_of_stream", "processed", p.processed.Load())
			return nil
		case errors.Is(err, boundedchan.ErrCancelled):
			p.lg.Info("ingest_loop_stop", "reason", "cancelled", "processed", p.processed.Load())
			return nil
		case err != nil:
			return err
		}
		if p.obs != nil {
			p.obs.ObserveQueueDepth(p.in.Len())
		}

		var out Outcome
		rec := p.mon.Time(TaskLabel, p.limit, func() {
			out = p.Process(ctx, r)
		}, func() string { return out.Describe() })
		if rec.Missed() {
			p.misses.Add(1)
		}
	}
}

// Process handles one reading. Invalid readings are logged and skipped; they never
// stop the pipeline.
func (p *Pipeline) Process(ctx context.Context, r Reading) Outcome {
	out := Outcome{Reading: r, State: Normal, Rule: "N/A", ServerTime: p.now()}
	p.processed.Add(1)

	if err := p.policy.Validate(r); err != nil {
		out.Err = err
		p.invalid.Add(1)
		p.lg.Warn("reading_rejected", "sensor", r.SensorID, "zone", r.ZoneID, "error", err)
		if p.obs != nil {
			p.obs.ObserveReading(out.State, false)
		}
		return out
	}

	out.State, out.Rule = p.policy.Classify(r)
	if p.obs != nil {
		p.obs.ObserveReading(out.State, true)
	}
	if out.State.Alerting() {
		a := newAlert(r, out.State, out.Rule, out.ServerTime)
		if err := p.alerts.Emit(ctx, a); err != nil {
			p.lg.Error("alert_emit_failed", "zone", a.Zone, "state", a.State.String(), "error", err)
		} else {
			out.Alerted = true
			p.alerted.Add(1)
		}
	}
	return out
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Invalid:   p.invalid.Load(),
		Alerts:    p.alerted.Load(),
		Misses:    p.misses.Load(),
	}
}
