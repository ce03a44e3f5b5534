// v0
// internal/flood/policy_test.go
package flood

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWholeValidDomain(t *testing.T) {
	p := DefaultPolicy()
	for wl := 0.0; wl <= 10.0; wl += 0.25 {
		for rain := 0.0; rain <= 300.0; rain += 12.5 {
			require.NoError(t, p.Validate(Reading{WaterLevelM: wl, RainMmH: rain}), "wl=%v rain=%v", wl, rain)
		}
	}
}

func TestValidateNamesOffendingField(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name  string
		r     Reading
		field string
	}{
		{name: "water below", r: Reading{WaterLevelM: -1, RainMmH: 10}, field: FieldWaterLevel},
		{name: "water above", r: Reading{WaterLevelM: 10.01, RainMmH: 10}, field: FieldWaterLevel},
		{name: "water NaN", r: Reading{WaterLevelM: math.NaN(), RainMmH: 10}, field: FieldWaterLevel},
		{name: "rain below", r: Reading{WaterLevelM: 1, RainMmH: -0.1}, field: FieldRain},
		{name: "rain above", r: Reading{WaterLevelM: 1, RainMmH: 300.5}, field: FieldRain},
		{name: "both, water first", r: Reading{WaterLevelM: 11, RainMmH: 400}, field: FieldWaterLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := p.Validate(tc.r)
			require.ErrorIs(t, err, ErrInvalidReading)
			var inv *InvalidReadingError
			require.True(t, errors.As(err, &inv))
			assert.Equal(t, tc.field, inv.Field)
		})
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name  string
		r     Reading
		state RiskState
		rule  string
	}{
		{name: "normal", r: Reading{WaterLevelM: 1.0, RainMmH: 5}, state: Normal, rule: "OK"},
		{name: "vigilancia by rain", r: Reading{WaterLevelM: 1.0, RainMmH: 30}, state: Vigilancia, rule: "rain>=30.0mm/h"},
		{name: "alerta by water", r: Reading{WaterLevelM: 3.0, RainMmH: 5}, state: Alerta, rule: "water_level>=3.00m"},
		{name: "emergencia beats alerta", r: Reading{WaterLevelM: 3.2, RainMmH: 95}, state: Emergencia, rule: "rain>=90.0mm/h"},
		{name: "emergencia both", r: Reading{WaterLevelM: 4, RainMmH: 120}, state: Emergencia, rule: "water_level>=3.50m"},
		{name: "alerta rain beats vigilancia water", r: Reading{WaterLevelM: 2.5, RainMmH: 61}, state: Alerta, rule: "rain>=60.0mm/h"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state, rule := p.Classify(tc.r)
			assert.Equal(t, tc.state, state)
			assert.Equal(t, tc.rule, rule)
		})
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	p := DefaultPolicy()
	prev := Normal
	for wl := 0.0; wl <= 10.0; wl += 0.05 {
		s, _ := p.Classify(Reading{WaterLevelM: wl})
		assert.GreaterOrEqual(t, s, prev, "wl=%v", wl)
		prev = s
	}
}

func TestCheckRejectsDescendingThresholds(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Check())
	p.Rain.Alerta = 100
	assert.Error(t, p.Check())
}

func TestRiskStateOrderAndNames(t *testing.T) {
	assert.Less(t, Normal, Vigilancia)
	assert.Less(t, Vigilancia, Alerta)
	assert.Less(t, Alerta, Emergencia)
	assert.Equal(t, "Emergencia", Emergencia.String())
	assert.False(t, Vigilancia.Alerting())
	assert.True(t, Alerta.Alerting())
}
