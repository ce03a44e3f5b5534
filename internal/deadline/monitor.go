// v0
// internal/deadline/monitor.go
package deadline

import (
	"time"
)

// Verdict classifies a measured unit of work against its soft deadline.
type Verdict string

const (
	VerdictOK   Verdict = "OK"
	VerdictMiss Verdict = "MISS"
)

// Record is the outcome of one measured unit of work. Records are written to a
// Sink as soon as they are produced and never stored by the monitor.
type Record struct {
	At       time.Time
	Label    string
	Elapsed  time.Duration
	Deadline time.Duration
	Verdict  Verdict
	Context  string
}

// Missed reports whether the unit of work exceeded its deadline.
func (r Record) Missed() bool { return r.Verdict == VerdictMiss }

// Classify returns OK when elapsed does not exceed the deadline.
func Classify(elapsed, limit time.Duration) Verdict {
	if elapsed <= limit {
		return VerdictOK
	}
	return VerdictMiss
}

// Monitor wraps units of work with wall-clock timing. It never starts goroutines:
// the work runs on the caller.
type Monitor struct {
	sink Sink
	now  func() time.Time
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMonitor builds a monitor writing every record to sink. A nil sink discards records.
func NewMonitor(sink Sink, opts ...Option) *Monitor {
	if sink == nil {
		sink = Discard
	}
	m := &Monitor{sink: sink, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Measure runs work synchronously, times it and writes a record classified against
// limit. describe is evaluated after work returns so it can report the outcome; it may
// be nil. The error returned by work is passed back unchanged.
func (m *Monitor) Measure(label string, limit time.Duration, work func() error, describe func() string) (Record, error) {
	start := m.now()
	var err error
	if work != nil {
		err = work()
	}
	end := m.now()

	elapsed := end.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	rec := Record{
		At:       end.UTC(),
		Label:    label,
		Elapsed:  elapsed,
		Deadline: limit,
		Verdict:  Classify(elapsed, limit),
	}
	if describe != nil {
		rec.Context = describe()
	}
	m.sink.Write(rec)
	return rec, err
}

// Time is Measure for work that cannot fail.
func (m *Monitor) Time(label string, limit time.Duration, work func(), describe func() string) Record {
	rec, _ := m.Measure(label, limit, func() error {
		if work != nil {
			work()
		}
		return nil
	}, describe)
	return rec
}
