// v0
// internal/flood/alerts.go
package flood

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"nrgchamp/strcontrol/internal/boundedchan"
	"nrgchamp/strcontrol/internal/deadline"
)

// ErrAlertDropped is returned by AsyncAlertSink.Emit when its queue is full.
var ErrAlertDropped = errors.New("flood: alert queue full; alert dropped")

// Alert is emitted for readings classified Alerta or Emergencia.
type Alert struct {
	ID         string    `json:"id"`
	Zone       string    `json:"zone"`
	SensorID   string    `json:"sensorId"`
	State      RiskState `json:"state"`
	Rule       string    `json:"rule"`
	WaterLevel float64   `json:"waterLevelM"`
	Rain       float64   `json:"rainMmH"`
	SensorTime time.Time `json:"sensorTime"`
	At         time.Time `json:"at"`
}

func newAlert(r Reading, state RiskState, rule string, at time.Time) Alert {
	return Alert{
		ID:         uuid.NewString(),
		Zone:       r.ZoneID,
		SensorID:   r.SensorID,
		State:      state,
		Rule:       rule,
		WaterLevel: r.WaterLevelM,
		Rain:       r.RainMmH,
		SensorTime: r.SensorTime,
		At:         at.UTC(),
	}
}

// AlertSink receives alerts from the pipeline.
type AlertSink interface {
	Emit(ctx context.Context, a Alert) error
}

// AlertSinkFunc adapts a function to AlertSink.
type AlertSinkFunc func(ctx context.Context, a Alert) error

func (f AlertSinkFunc) Emit(ctx context.Context, a Alert) error { return f(ctx, a) }

// SlogAlertSink writes one ALERTA line per alert.
type SlogAlertSink struct {
	lg *slog.Logger
}

func NewSlogAlertSink(lg *slog.Logger) *SlogAlertSink { return &SlogAlertSink{lg: lg} }

func (s *SlogAlertSink) Emit(_ context.Context, a Alert) error {
	s.lg.Warn("ALERTA",
		"ts", a.At.UTC().Format(deadline.StampLayout),
		"zone", a.Zone,
		"state", a.State.String(),
		"rule", a.Rule,
		"alert_id", a.ID,
	)
	return nil
}

// MultiAlertSink emits to every sink and joins their errors.
type MultiAlertSink []AlertSink

func (m MultiAlertSink) Emit(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncAlertSink decouples slow network sinks from the pipeline's deadline. Alerts
// are queued in a bounded channel and forwarded by one background goroutine.
// Emit never waits: when the queue is full the alert is dropped and counted.
// Close stops intake and waits for the queue to drain.
type AsyncAlertSink struct {
	next    AlertSink
	lg      *slog.Logger
	q       *boundedchan.Channel[Alert]
	timeout time.Duration
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
}

// NewAsyncAlertSink forwards each alert to next with its own timeout.
func NewAsyncAlertSink(next AlertSink, capacity int, timeout time.Duration, lg *slog.Logger) *AsyncAlertSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &AsyncAlertSink{next: next, lg: lg, q: boundedchan.New[Alert](capacity), timeout: timeout}
	s.wg.Add(1)
	go s.forward()
	return s
}

// Emit queues a for forwarding. A full queue drops a and returns ErrAlertDropped;
// after Close it returns boundedchan.ErrClosed.
func (s *AsyncAlertSink) Emit(_ context.Context, a Alert) error {
	err := s.q.TryPut(a)
	if errors.Is(err, boundedchan.ErrFull) {
		s.dropped.Add(1)
		return fmt.Errorf("%w (id=%s, queued=%d)", ErrAlertDropped, a.ID, s.q.Len())
	}
	return err
}

// Dropped returns how many alerts were dropped on a full queue.
func (s *AsyncAlertSink) Dropped() int64 { return s.dropped.Load() }

func (s *AsyncAlertSink) forward() {
	defer s.wg.Done()
	for a := range s.q.All(context.Background()) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.next.Emit(ctx, a); err != nil {
			s.lg.Error("alert_forward_failed", "alert_id", a.ID, "zone", a.Zone, "error", err)
		}
		cancel()
	}
}

// Close completes the queue and waits until every queued alert was forwarded.
func (s *AsyncAlertSink) Close() error {
	s.once.Do(s.q.Complete)
	s.wg.Wait()
	return nil
}
