package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/energyledger/core/model"
)

func TestNormalizeUnits_ConvertsWatts(t *testing.T) {
	in := []model.Sample{model.NewSample(t0, map[string]any{
		"grid_input_W":         1500,
		"grid_output_W":        "250",
		model.FieldConsumption: 2.5,
	})}
	out := NormalizeUnits(in)

	assert.Equal(t, model.Some(1.5), out[0].GridInput())
	assert.Equal(t, model.Some(0.25), out[0].GridOutput())
	assert.Equal(t, model.Some(2.5), out[0].Consumption())
	_, hasWatt := out[0].Fields["grid_input_W"]
	assert.False(t, hasWatt)
	// input untouched
	_, stillWatt := in[0].Fields["grid_input_W"]
	assert.True(t, stillWatt)
}

func TestNormalizeUnits_Idempotent(t *testing.T) {
	in := []model.Sample{
		model.NewSample(t0, map[string]any{"grid_input_W": 1200, "production_W": "x"}),
		model.NewSample(t0, map[string]any{model.FieldGridInput: 0.4}),
	}
	once := NormalizeUnits(in)
	twice := NormalizeUnits(once)
	assert.Equal(t, once, twice)
	assert.False(t, once[0].Production().Valid)
}

func TestNormalizeUnits_ExistingKilowattWins(t *testing.T) {
	in := []model.Sample{model.NewSample(t0, map[string]any{
		"grid_input_W":       9000,
		model.FieldGridInput: 0.7,
	})}
	out := NormalizeUnits(in)
	assert.Equal(t, model.Some(0.7), out[0].GridInput())
	assert.Len(t, out[0].Fields, 1)
}

func TestNormalizeUnits_MagnitudeIsIgnored(t *testing.T) {
	// a large kW value must not be mistaken for watts
	in := []model.Sample{model.NewSample(t0, map[string]any{model.FieldConsumption: 4000})}
	out := NormalizeUnits(in)
	assert.Equal(t, model.Some(4000), out[0].Consumption())
}
