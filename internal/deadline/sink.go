// v0
// internal/deadline/sink.go
package deadline

import (
	"context"
	"log/slog"
	"sync"
)

// Sink consumes deadline records.
type Sink interface {
	Write(Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Record)

func (f SinkFunc) Write(r Record) { f(r) }

// Discard drops every record.
var Discard Sink = SinkFunc(func(Record) {})

// MultiSink duplicates records to every non-nil sink, in order.
func MultiSink(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return SinkFunc(func(r Record) {
		for _, s := range out {
			s.Write(r)
		}
	})
}

// StampLayout is the UTC millisecond timestamp used on every console line.
const StampLayout = "15:04:05.000Z"

// SlogSink logs one line per record. Misses are logged at warn level.
type SlogSink struct {
	lg *slog.Logger
}

func NewSlogSink(lg *slog.Logger) *SlogSink {
	return &SlogSink{lg: lg}
}

func (s *SlogSink) Write(r Record) {
	lvl := slog.LevelInfo
	if r.Missed() {
		lvl = slog.LevelWarn
	}
	s.lg.LogAttrs(context.Background(), lvl, "deadline",
		slog.String("ts", r.At.UTC().Format(StampLayout)),
		slog.String("task", r.Label),
		slog.String("verdict", string(r.Verdict)),
		slog.Float64("elapsed_ms", float64(r.Elapsed.Microseconds())/1000.0),
		slog.Int64("deadline_ms", r.Deadline.Milliseconds()),
		slog.String("ctx", r.Context),
	)
}

// Recorder keeps records in memory. Tests use it to assert on what was measured.
type Recorder struct {
	mu   sync.Mutex
	recs []Record
}

func (r *Recorder) Write(rec Record) {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
}

// Records returns a copy of everything written so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.recs...)
}
