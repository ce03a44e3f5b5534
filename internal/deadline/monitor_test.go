// v0
// internal/deadline/monitor_test.go
package deadline

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	cur := start
	return func() time.Time {
		t := cur
		cur = cur.Add(step)
		return t
	}
}

func TestMeasureClassifiesAgainstDeadline(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		step  time.Duration
		limit time.Duration
		want  Verdict
	}{
		{name: "under", step: 50 * time.Millisecond, limit: 200 * time.Millisecond, want: VerdictOK},
		{name: "exact", step: 200 * time.Millisecond, limit: 200 * time.Millisecond, want: VerdictOK},
		{name: "over", step: 201 * time.Millisecond, limit: 200 * time.Millisecond, want: VerdictMiss},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &Recorder{}
			m := NewMonitor(rec, WithClock(steppingClock(base, tc.step)))
			got, err := m.Measure("TICK", tc.limit, func() error { return nil }, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Verdict)
			assert.Equal(t, tc.step, got.Elapsed)
			assert.Equal(t, tc.limit, got.Deadline)
			require.Len(t, rec.Records(), 1)
			assert.Equal(t, got, rec.Records()[0])
		})
	}
}

func TestMeasureRunsWorkOnCallerAndDescribesAfter(t *testing.T) {
	rec := &Recorder{}
	m := NewMonitor(rec)
	var order []string
	_, err := m.Measure("INGESTA+PROC", time.Second,
		func() error { order = append(order, "work"); return nil },
		func() string { order = append(order, "describe"); return "done" },
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "describe"}, order)
	assert.Equal(t, "done", rec.Records()[0].Context)
}

func TestMeasurePropagatesWorkError(t *testing.T) {
	boom := errors.New("boom")
	rec := &Recorder{}
	m := NewMonitor(rec)
	got, err := m.Measure("TICK", time.Second, func() error { return boom }, func() string { return "failed" })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "failed", got.Context)
	assert.Len(t, rec.Records(), 1, "a failed unit of work is still reported")
}

func TestTimeReportsInfallibleWork(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := &Recorder{}
	m := NewMonitor(rec, WithClock(steppingClock(base, 130*time.Millisecond)))
	ran := false
	got := m.Time("TICK", 120*time.Millisecond, func() { ran = true }, func() string { return "tick" })
	assert.True(t, ran)
	assert.Equal(t, VerdictMiss, got.Verdict)
	assert.Equal(t, "tick", got.Context)
	require.Len(t, rec.Records(), 1)
	assert.Equal(t, got, rec.Records()[0])
}

func TestSlogSinkLineShape(t *testing.T) {
	var buf bytes.Buffer
	lg := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NewSlogSink(lg)
	sink.Write(Record{
		At:       time.Date(2024, 5, 1, 10, 0, 0, 123e6, time.UTC),
		Label:    "TICK",
		Elapsed:  150 * time.Millisecond,
		Deadline: 120 * time.Millisecond,
		Verdict:  VerdictMiss,
		Context:  "Control periódico del semáforo",
	})
	line := buf.String()
	for _, want := range []string{"level=WARN", "ts=10:00:00.123Z", "task=TICK", "verdict=MISS", "elapsed_ms=150", "deadline_ms=120"} {
		assert.True(t, strings.Contains(line, want), "missing %q in %q", want, line)
	}
}

func TestMultiSinkSkipsNil(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	s := MultiSink(a, nil, b)
	s.Write(Record{Label: "x"})
	assert.Len(t, a.Records(), 1)
	assert.Len(t, b.Records(), 1)
}
