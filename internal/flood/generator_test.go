// v0
// internal/flood/generator_test.go
package flood

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nrgchamp/strcontrol/internal/boundedchan"
)

func TestModeFromKey(t *testing.T) {
	for k, want := range map[rune]Mode{'1': ModeNormal, '2': ModeVigilancia, '3': ModeAlerta, '4': ModeEmergencia} {
		got, ok := ModeFromKey(k)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	for _, k := range []rune{'0', '5', 'q', 'n'} {
		_, ok := ModeFromKey(k)
		assert.False(t, ok, "key %q", k)
	}
}

func TestGeneratorFollowsModeBands(t *testing.T) {
	policy := DefaultPolicy()
	want := map[Mode]RiskState{
		ModeNormal:     Normal,
		ModeVigilancia: Vigilancia,
		ModeAlerta:     Alerta,
		ModeEmergencia: Emergencia,
	}
	sel := NewModeSelector(ModeNormal)
	g := NewGenerator("SEN-001", "Zona-Norte", sel, 42)
	g.InvalidEvery = 0
	for mode, state := range want {
		sel.Set(mode)
		for i := 0; i < 200; i++ {
			r := g.Produce()
			require.NoError(t, policy.Validate(r))
			got, _ := policy.Classify(r)
			require.Equal(t, state, got, "mode %s reading %+v", mode, r)
		}
	}
}

func TestGeneratorInjectsInvalidReadings(t *testing.T) {
	g := NewGenerator("SEN-001", "Zona-Norte", NewModeSelector(ModeNormal), 7)
	invalid := 0
	for i := 0; i < 2000; i++ {
		if g.Produce().WaterLevelM < 0 {
			invalid++
		}
	}
	assert.Greater(t, invalid, 0)
	assert.Less(t, invalid, 400)
}

func TestModeSelectorConcurrentAccess(t *testing.T) {
	sel := NewModeSelector(ModeNormal)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(m Mode) {
			defer wg.Done()
			sel.Set(m)
		}(Mode(i%4 + 1))
		go func() {
			defer wg.Done()
			m := sel.Get()
			if m < ModeNormal || m > ModeEmergencia {
				t.Errorf("torn mode %d", m)
			}
		}()
	}
	wg.Wait()
}

func TestRunProducerStopsWhenChannelCompleted(t *testing.T) {
	ch := boundedchan.New[Reading](100)
	g := NewGenerator("SEN-001", "Zona-Norte", NewModeSelector(ModeNormal), 1)
	done := make(chan error, 1)
	go func() { done <- RunProducer(context.Background(), g, ch, time.Millisecond, discardLogger()) }()
	time.Sleep(20 * time.Millisecond)
	ch.Complete()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("producer did not stop after Complete")
	}
	assert.Greater(t, ch.Len(), 0)
}

func TestRunProducerBlocksOnFullChannelUntilCancelled(t *testing.T) {
	ch := boundedchan.New[Reading](2)
	g := NewGenerator("SEN-001", "Zona-Norte", NewModeSelector(ModeNormal), 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunProducer(ctx, g, ch, time.Millisecond, discardLogger()) }()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, ch.Len(), "backpressure keeps the channel at capacity")
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("producer did not observe cancellation")
	}
}
