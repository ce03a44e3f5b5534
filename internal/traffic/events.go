// v0
// internal/traffic/events.go
package traffic

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"nrgchamp/strcontrol/internal/deadline"
)

// EventKind tells sinks what the controller just did.
type EventKind int

const (
	// EventChange is a state transition, time-driven or forced.
	EventChange EventKind = iota
	// EventStatus is a tick that found dwell remaining.
	EventStatus
	// EventBlink is a night-mode tick.
	EventBlink
	// EventNight and EventAuto report an operator mode switch.
	EventNight
	EventAuto
)

func (k EventKind) String() string {
	switch k {
	case EventChange:
		return "change"
	case EventStatus:
		return "status"
	case EventBlink:
		return "blink"
	case EventNight:
		return "night"
	case EventAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// Event is reported to a Sink outside the state lock, in the order the state
// changed.
type Event struct {
	Kind      EventKind
	At        time.Time
	Snapshot  Snapshot
	Dwell     time.Duration // EventChange; zero when unbounded
	Remaining time.Duration // EventStatus
}

// Sink consumes controller events. Implementations must not block for long: the
// tick task calls them inside its measured body and commands wait for them.
type Sink interface {
	Observe(ev Event)
}

type SinkFunc func(ev Event)

func (f SinkFunc) Observe(ev Event) { f(ev) }

// MultiSink fans an event out to every non-nil sink.
type MultiSink []Sink

func (m MultiSink) Observe(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Observe(ev)
		}
	}
}

// SlogSink prints the operator lines of the traffic loop.
type SlogSink struct {
	lg *slog.Logger
}

func NewSlogSink(lg *slog.Logger) *SlogSink { return &SlogSink{lg: lg} }

func (s *SlogSink) Observe(ev Event) {
	ts := ev.At.UTC().Format(deadline.StampLayout)
	switch ev.Kind {
	case EventChange:
		dur := "∞"
		if ev.Dwell > 0 {
			dur = fmt.Sprintf("%gs", ev.Dwell.Seconds())
		}
		s.lg.Info("[CAMBIO] -> "+ev.Snapshot.State.String(), "ts", ts, "duracion", dur)
	case EventStatus:
		s.lg.Info("[ESTADO] "+ev.Snapshot.State.String(), "ts", ts, "restante", fmt.Sprintf("%.1fs", ev.Remaining.Seconds()))
	case EventBlink:
		s.lg.Info("[INTERMITENTE] Amarillo parpadeando...", "ts", ts)
	case EventNight:
		s.lg.Info("[MODO] NOCHE/INTERMITENTE", "ts", ts)
	case EventAuto:
		s.lg.Info("[MODO] AUTO NORMAL", "ts", ts)
	}
}

// MQTTSink publishes every state change to <prefix>/<intersection>/state as a
// retained QoS 1 message, so late subscribers see the current light.
type MQTTSink struct {
	client       mqtt.Client
	prefix       string
	intersection string
	lg           *slog.Logger
}

func NewMQTTSink(client mqtt.Client, prefix, intersection string, lg *slog.Logger) *MQTTSink {
	return &MQTTSink{client: client, prefix: prefix, intersection: intersection, lg: lg}
}

func (s *MQTTSink) Topic() string {
	return fmt.Sprintf("%s/%s/state", s.prefix, s.intersection)
}

type statePayload struct {
	Intersection string     `json:"intersection"`
	State        LightState `json:"state"`
	Night        bool       `json:"night"`
	EndsAt       *time.Time `json:"endsAt,omitempty"`
	At           time.Time  `json:"at"`
}

func (s *MQTTSink) Observe(ev Event) {
	if ev.Kind != EventChange {
		return
	}
	p := statePayload{Intersection: s.intersection, State: ev.Snapshot.State, Night: ev.Snapshot.Night, At: ev.At.UTC()}
	if !ev.Snapshot.EndsAt.IsZero() {
		ends := ev.Snapshot.EndsAt.UTC()
		p.EndsAt = &ends
	}
	b, err := json.Marshal(p)
	if err != nil {
		s.lg.Error("marshal failed", "err", err)
		return
	}
	// The tick never waits on the broker.
	token := s.client.Publish(s.Topic(), 1, true, b)
	go func() {
		if token.Wait() && token.Error() != nil {
			s.lg.Warn("mqtt publish failed", "topic", s.Topic(), "err", token.Error())
		}
	}()
}
