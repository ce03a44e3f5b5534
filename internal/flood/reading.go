// v0
// internal/flood/reading.go
package flood

import (
	"fmt"
	"time"
)

// Reading is one sample from a river/rain sensor. Values are never mutated after
// the generator produces them.
type Reading struct {
	SensorID    string    `json:"sensorId"`
	ZoneID      string    `json:"zoneId"`
	WaterLevelM float64   `json:"waterLevelM"`
	RainMmH     float64   `json:"rainMmH"`
	SensorTime  time.Time `json:"sensorTime"`
}

// RiskState is ordered by severity: Normal < Vigilancia < Alerta < Emergencia.
type RiskState int

const (
	Normal RiskState = iota
	Vigilancia
	Alerta
	Emergencia
)

func (s RiskState) String() string {
	switch s {
	case Normal:
		return "Normal"
	case Vigilancia:
		return "Vigilancia"
	case Alerta:
		return "Alerta"
	case Emergencia:
		return "Emergencia"
	default:
		return fmt.Sprintf("RiskState(%d)", int(s))
	}
}

// Alerting reports whether the state raises an alert.
func (s RiskState) Alerting() bool { return s >= Alerta }

func (s RiskState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
