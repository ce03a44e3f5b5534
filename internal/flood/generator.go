// v0
// internal/flood/generator.go
package flood

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"nrgchamp/strcontrol/internal/boundedchan"
)

// Mode selects the regime the synthetic generator simulates.
type Mode int32

const (
	ModeNormal     Mode = 1
	ModeVigilancia Mode = 2
	ModeAlerta     Mode = 3
	ModeEmergencia Mode = 4
)

func (m Mode) String() string {
	switch m {
	case ModeVigilancia:
		return "Vigilancia"
	case ModeAlerta:
		return "Alerta"
	case ModeEmergencia:
		return "Emergencia"
	default:
		return "Normal"
	}
}

// ModeFromKey maps the operator keys '1'..'4' to a mode.
func ModeFromKey(k rune) (Mode, bool) {
	if k < '1' || k > '4' {
		return 0, false
	}
	return Mode(k - '0'), true
}

// ModeSelector is written by the command task and read by the producer. It is
// overwritten wholesale, so an atomic load/store is enough.
type ModeSelector struct {
	v atomic.Int32
}

func NewModeSelector(m Mode) *ModeSelector {
	s := &ModeSelector{}
	s.Set(m)
	return s
}

func (s *ModeSelector) Set(m Mode) { s.v.Store(int32(m)) }

func (s *ModeSelector) Get() Mode {
	m := Mode(s.v.Load())
	if m < ModeNormal || m > ModeEmergencia {
		return ModeNormal
	}
	return m
}

// Source produces readings for the ingestion channel.
type Source interface {
	Produce() Reading
}

type band struct {
	wlBase, wlSpan     float64
	rainBase, rainSpan float64
}

var bands = map[Mode]band{
	ModeNormal:     {1.2, 0.3, 5, 5},
	ModeVigilancia: {2.1, 0.3, 35, 10},
	ModeAlerta:     {3.1, 0.3, 70, 10},
	ModeEmergencia: {3.6, 0.4, 95, 15},
}

// Generator is the synthetic sensor. One reading in InvalidEvery carries an
// out-of-range water level; zero disables that.
type Generator struct {
	SensorID     string
	ZoneID       string
	InvalidEvery int

	mode *ModeSelector
	rnd  *rand.Rand
	now  func() time.Time
}

func NewGenerator(sensorID, zoneID string, mode *ModeSelector, seed uint64) *Generator {
	return &Generator{
		SensorID:     sensorID,
		ZoneID:       zoneID,
		InvalidEvery: 20,
		mode:         mode,
		rnd:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:          time.Now,
	}
}

// Produce is not safe for concurrent use; the producer task is its only caller.
func (g *Generator) Produce() Reading {
	b := bands[g.mode.Get()]
	wl := b.wlBase + g.rnd.Float64()*b.wlSpan
	rain := b.rainBase + g.rnd.Float64()*b.rainSpan
	if g.InvalidEvery > 0 && g.rnd.IntN(g.InvalidEvery) == 0 {
		wl = -1
	}
	return Reading{
		SensorID:    g.SensorID,
		ZoneID:      g.ZoneID,
		WaterLevelM: wl,
		RainMmH:     rain,
		SensorTime:  g.now().UTC(),
	}
}

// RunProducer feeds out with one reading per period until ctx is cancelled or the
// channel is completed. Put blocks while the channel is full.
func RunProducer(ctx context.Context, src Source, out *boundedchan.Channel[Reading], period time.Duration, lg *slog.Logger) error {
	if period <= 0 {
		period = 250 * time.Millisecond
	}
	t := time.NewTicker(period)
	defer t.Stop()
	lg.Info("producer started", "period", period.String())
	for {
		err := out.Put(ctx, src.Produce())
		switch {
		case errors.Is(err, boundedchan.ErrCancelled), errors.Is(err, boundedchan.ErrClosed):
			lg.Info("producer stopped", "reason", err.Error())
			return nil
		case err != nil:
			return err
		}
		select {
		case <-ctx.Done():
			lg.Info("producer stopped", "reason", "cancelled")
			return nil
		case <-t.C:
		}
	}
}
