// v0
// internal/flood/policy.go
package flood

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidReading marks readings rejected before classification.
var ErrInvalidReading = errors.New("invalid reading")

// InvalidReadingError names the field that fell outside its valid range.
type InvalidReadingError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *InvalidReadingError) Error() string {
	return fmt.Sprintf("invalid reading: %s=%.2f outside [%g,%g]", e.Field, e.Value, e.Min, e.Max)
}

func (e *InvalidReadingError) Is(target error) bool { return target == ErrInvalidReading }

const (
	FieldWaterLevel = "water_level"
	FieldRain       = "rain"
)

// Thresholds are the lower bounds of each alerting tier for one measurement.
type Thresholds struct {
	Vigilancia float64
	Alerta     float64
	Emergencia float64
}

func (t Thresholds) ascending() bool {
	return t.Vigilancia <= t.Alerta && t.Alerta <= t.Emergencia
}

// RiskPolicy carries the injected thresholds and valid ranges.
type RiskPolicy struct {
	Water    Thresholds
	Rain     Thresholds
	WaterMin float64
	WaterMax float64
	RainMin  float64
	RainMax  float64
}

// DefaultPolicy returns the reference thresholds: water 2.0/3.0/3.5 m, rain 30/60/90 mm/h.
func DefaultPolicy() RiskPolicy {
	return RiskPolicy{
		Water:    Thresholds{Vigilancia: 2.0, Alerta: 3.0, Emergencia: 3.5},
		Rain:     Thresholds{Vigilancia: 30, Alerta: 60, Emergencia: 90},
		WaterMin: 0, WaterMax: 10,
		RainMin: 0, RainMax: 300,
	}
}

// Check verifies that the policy is usable.
func (p RiskPolicy) Check() error {
	if !p.Water.ascending() {
		return fmt.Errorf("water thresholds must be ascending: %+v", p.Water)
	}
	if !p.Rain.ascending() {
		return fmt.Errorf("rain thresholds must be ascending: %+v", p.Rain)
	}
	if p.WaterMin > p.WaterMax || p.RainMin > p.RainMax {
		return errors.New("valid ranges must satisfy min <= max")
	}
	return nil
}

// Validate rejects readings whose water level or rainfall falls outside the valid
// range. Water level is checked first.
func (p RiskPolicy) Validate(r Reading) error {
	if outside(r.WaterLevelM, p.WaterMin, p.WaterMax) {
		return &InvalidReadingError{Field: FieldWaterLevel, Value: r.WaterLevelM, Min: p.WaterMin, Max: p.WaterMax}
	}
	if outside(r.RainMmH, p.RainMin, p.RainMax) {
		return &InvalidReadingError{Field: FieldRain, Value: r.RainMmH, Min: p.RainMin, Max: p.RainMax}
	}
	return nil
}

// Classify maps a valid reading to exactly one state, most severe tier first.
// The returned rule names the measurement and bound that matched.
func (p RiskPolicy) Classify(r Reading) (RiskState, string) {
	tiers := []struct {
		state RiskState
		water float64
		rain  float64
	}{
		{Emergencia, p.Water.Emergencia, p.Rain.Emergencia},
		{Alerta, p.Water.Alerta, p.Rain.Alerta},
		{Vigilancia, p.Water.Vigilancia, p.Rain.Vigilancia},
	}
	for _, t := range tiers {
		if r.WaterLevelM >= t.water {
			return t.state, fmt.Sprintf("%s>=%.2fm", FieldWaterLevel, t.water)
		}
		if r.RainMmH >= t.rain {
			return t.state, fmt.Sprintf("%s>=%.1fmm/h", FieldRain, t.rain)
		}
	}
	return Normal, "OK"
}

func outside(v, lo, hi float64) bool {
	return math.IsNaN(v) || v < lo || v > hi
}
