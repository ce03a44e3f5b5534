// v0
// internal/flood/pipeline_test.go
package flood

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nrgchamp/strcontrol/internal/boundedchan"
	"nrgchamp/strcontrol/internal/deadline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *alertRecorder) Emit(_ context.Context, a Alert) error {
	r.mu.Lock()
	r.alerts = append(r.alerts, a)
	r.mu.Unlock()
	return nil
}

func (r *alertRecorder) all() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

func newTestPipeline(capacity int) (*Pipeline, *boundedchan.Channel[Reading], *alertRecorder, *deadline.Recorder) {
	ch := boundedchan.New[Reading](capacity)
	alerts := &alertRecorder{}
	recs := &deadline.Recorder{}
	p := NewPipeline(ch, DefaultPolicy(), deadline.NewMonitor(recs), alerts, discardLogger())
	return p, ch, alerts, recs
}

func reading(wl, rain float64) Reading {
	return Reading{SensorID: "SEN-001", ZoneID: "Zona-Norte", WaterLevelM: wl, RainMmH: rain, SensorTime: time.Now().UTC()}
}

func TestProcessScenarios(t *testing.T) {
	tests := []struct {
		name    string
		r       Reading
		valid   bool
		state   RiskState
		alerted bool
		rule    string
	}{
		{name: "A normal", r: reading(1.3, 8), valid: true, state: Normal},
		{name: "B vigilancia by water", r: reading(2.1, 10), valid: true, state: Vigilancia, rule: "water_level"},
		{name: "C emergencia by water", r: reading(3.6, 10), valid: true, state: Emergencia, alerted: true, rule: "water_level"},
		{name: "D invalid water", r: reading(-1, 10), valid: false, state: Normal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, _, alerts, _ := newTestPipeline(1)
			out := p.Process(context.Background(), tc.r)
			assert.Equal(t, tc.valid, out.Valid())
			assert.Equal(t, tc.state, out.State)
			assert.Equal(t, tc.alerted, out.Alerted)
			if tc.rule != "" {
				assert.Contains(t, out.Rule, tc.rule)
			}
			got := alerts.all()
			if !tc.alerted {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, "Zona-Norte", got[0].Zone)
			assert.Equal(t, Emergencia, got[0].State)
			assert.Contains(t, got[0].Rule, FieldWaterLevel)
			assert.NotEmpty(t, got[0].ID)
		})
	}
}

func TestProcessInvalidReadingNamesField(t *testing.T) {
	p, _, _, _ := newTestPipeline(1)
	out := p.Process(context.Background(), reading(-1, 10))
	require.ErrorIs(t, out.Err, ErrInvalidReading)
	assert.Contains(t, out.Describe(), "Valid=false (invalid water_level)")
	assert.Equal(t, Stats{Processed: 1, Invalid: 1}, p.Stats())
}

func TestRunDrainsCompletedChannel(t *testing.T) {
	p, ch, alerts, recs := newTestPipeline(8)
	ctx := context.Background()
	inputs := []Reading{reading(1.3, 8), reading(-1, 10), reading(3.1, 10), reading(3.6, 10), reading(2.1, 10)}
	for _, r := range inputs {
		require.NoError(t, ch.Put(ctx, r))
	}
	ch.Complete()

	require.NoError(t, p.Run(ctx))

	stats := p.Stats()
	assert.EqualValues(t, 5, stats.Processed)
	assert.EqualValues(t, 1, stats.Invalid)
	assert.EqualValues(t, 2, stats.Alerts)

	got := alerts.all()
	require.Len(t, got, 2)
	assert.Equal(t, Alerta, got[0].State)
	assert.Equal(t, Emergencia, got[1].State)

	records := recs.Records()
	require.Len(t, records, len(inputs))
	for _, rec := range records {
		assert.Equal(t, TaskLabel, rec.Label)
		assert.Equal(t, DefaultProcessingDeadline, rec.Deadline)
	}
	assert.True(t, strings.HasPrefix(records[0].Context, "WL=1.30m Rain=8.0mm/h | Valid=true"))
}

func TestRunStopsOnCancellation(t *testing.T) {
	p, _, _, _ := newTestPipeline(2)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}
}

func TestRunCountsDeadlineMisses(t *testing.T) {
	ch := boundedchan.New[Reading](2)
	slow := AlertSinkFunc(func(context.Context, Alert) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	recs := &deadline.Recorder{}
	p := NewPipeline(ch, DefaultPolicy(), deadline.NewMonitor(recs), slow, discardLogger(), WithDeadline(time.Microsecond))
	require.NoError(t, ch.Put(context.Background(), reading(3.6, 10)))
	ch.Complete()
	require.NoError(t, p.Run(context.Background()))
	assert.EqualValues(t, 1, p.Stats().Misses)
	assert.Equal(t, deadline.VerdictMiss, recs.Records()[0].Verdict)
	assert.EqualValues(t, 1, p.Stats().Alerts, "a missed deadline never drops the work")
}

func TestAlertSinkErrorDoesNotStopPipeline(t *testing.T) {
	ch := boundedchan.New[Reading](4)
	failing := AlertSinkFunc(func(context.Context, Alert) error { return errors.New("sink down") })
	p := NewPipeline(ch, DefaultPolicy(), deadline.NewMonitor(nil), failing, discardLogger())
	ctx := context.Background()
	require.NoError(t, ch.Put(ctx, reading(3.6, 10)))
	require.NoError(t, ch.Put(ctx, reading(1.0, 1)))
	ch.Complete()
	require.NoError(t, p.Run(ctx))
	assert.EqualValues(t, 2, p.Stats().Processed)
	assert.EqualValues(t, 0, p.Stats().Alerts)
}

type observerStub struct {
	mu      sync.Mutex
	valid   int
	invalid int
	depths  []int
}

func (o *observerStub) ObserveReading(_ RiskState, valid bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if valid {
		o.valid++
	} else {
		o.invalid++
	}
}

func (o *observerStub) ObserveQueueDepth(n int) {
	o.mu.Lock()
	o.depths = append(o.depths, n)
	o.mu.Unlock()
}

func TestObserverSeesEveryReading(t *testing.T) {
	ch := boundedchan.New[Reading](4)
	obs := &observerStub{}
	p := NewPipeline(ch, DefaultPolicy(), deadline.NewMonitor(nil), nil, discardLogger(), WithObserver(obs))
	ctx := context.Background()
	require.NoError(t, ch.Put(ctx, reading(1, 1)))
	require.NoError(t, ch.Put(ctx, reading(-1, 1)))
	ch.Complete()
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 1, obs.valid)
	assert.Equal(t, 1, obs.invalid)
	assert.Equal(t, []int{1, 0}, obs.depths)
}
