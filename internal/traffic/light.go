// v0
// internal/traffic/light.go
package traffic

import (
	"fmt"
	"time"
)

// LightState is the signal currently shown by the controller.
type LightState int

const (
	Verde LightState = iota
	Amarillo
	Rojo
	Intermitente
)

func (s LightState) String() string {
	switch s {
	case Verde:
		return "Verde"
	case Amarillo:
		return "Amarillo"
	case Rojo:
		return "Rojo"
	case Intermitente:
		return "Intermitente"
	default:
		return fmt.Sprintf("LightState(%d)", int(s))
	}
}

func (s LightState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// next is the time-driven successor. Intermitente only leaves through EnterAuto.
func (s LightState) next() LightState {
	switch s {
	case Verde:
		return Amarillo
	case Amarillo:
		return Rojo
	default:
		return Verde
	}
}

// Phases holds the dwell of every time-driven state.
type Phases struct {
	Verde    time.Duration
	Amarillo time.Duration
	Rojo     time.Duration
}

func DefaultPhases() Phases {
	return Phases{Verde: 10 * time.Second, Amarillo: 3 * time.Second, Rojo: 10 * time.Second}
}

// Dwell returns how long s stays current. ok is false for Intermitente, whose dwell is
// unbounded.
func (p Phases) Dwell(s LightState) (d time.Duration, ok bool) {
	switch s {
	case Verde:
		return p.Verde, true
	case Amarillo:
		return p.Amarillo, true
	case Rojo:
		return p.Rojo, true
	default:
		return 0, false
	}
}

// Check rejects non-positive dwells.
func (p Phases) Check() error {
	for _, s := range []LightState{Verde, Amarillo, Rojo} {
		if d, _ := p.Dwell(s); d <= 0 {
			return fmt.Errorf("traffic: dwell for %s must be positive, got %s", s, d)
		}
	}
	return nil
}

// Snapshot is the controller state observed at one instant. It is replaced as a
// whole, so State and EndsAt always belong together. EndsAt is zero while the
// dwell is unbounded.
type Snapshot struct {
	State  LightState `json:"state"`
	EndsAt time.Time  `json:"endsAt"`
	Night  bool       `json:"night"`
}

// Remaining is the dwell left at now, never negative. Unbounded dwells report -1.
func (s Snapshot) Remaining(now time.Time) time.Duration {
	if s.EndsAt.IsZero() {
		return -1
	}
	if rem := s.EndsAt.Sub(now); rem > 0 {
		return rem
	}
	return 0
}

func enter(p Phases, s LightState, night bool, now time.Time) Snapshot {
	snap := Snapshot{State: s, Night: night}
	if d, ok := p.Dwell(s); ok {
		snap.EndsAt = now.Add(d)
	}
	return snap
}
