package review

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

func validated(t *testing.T, m vitals.Measurements) vitals.ValidatedReading {
	t.Helper()
	v, err := vitals.Validate(vitals.ExtractedReading{Measurements: m, MachineNotes: []string{"scale present"}})
	require.NoError(t, err)
	return v
}

func TestNewDraftOrigin(t *testing.T) {
	tests := []struct {
		name       string
		in         vitals.Measurements
		wantState  DerivationState
		wantOrigin BMIOrigin
	}{
		{
			name:       "derived bmi",
			in:         vitals.Measurements{HeightCm: vitals.F(164.63), WeightKg: vitals.F(63.21)},
			wantState:  Fresh,
			wantOrigin: BMIDerived,
		},
		{
			name:       "supplied bmi",
			in:         vitals.Measurements{HeightCm: vitals.F(170), WeightKg: vitals.F(70), BMI: vitals.F(24.2)},
			wantState:  NoDerived,
			wantOrigin: BMISupplied,
		},
		{
			name:       "no bmi",
			in:         vitals.Measurements{Systolic: vitals.F(120), Diastolic: vitals.F(80)},
			wantState:  NoDerived,
			wantOrigin: BMINone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDraft(uuid.New(), uuid.New(), validated(t, tt.in), []uuid.UUID{uuid.New()})
			assert.Equal(t, tt.wantState, d.State())
			assert.Equal(t, tt.wantOrigin, d.BMIOrigin())
			assert.Equal(t, []string{"scale present"}, d.MachineNotes)
		})
	}
}

func TestDraftWeightEditRederivesBMI(t *testing.T) {
	d := NewDraft(uuid.New(), uuid.New(), validated(t, vitals.Measurements{HeightCm: vitals.F(164.63), WeightKg: vitals.F(63.21)}), nil)
	require.Equal(t, 23.33, *d.Values().BMI)

	require.NoError(t, d.Apply(Edit{Field: vitals.WeightKg, Value: vitals.F(70.04)}))
	assert.Equal(t, Stale, d.State(), "stale until read")

	v := d.Values()
	assert.Equal(t, 70.0, *v.WeightKg, "edits are rounded like validation")
	assert.Equal(t, vitals.ComputeBMI(164.6, 70.0), *v.BMI)
	assert.Equal(t, Fresh, d.State())
	assert.Equal(t, BMIDerived, d.BMIOrigin())
}

func TestDraftBMIEditKeptUntilHeightChanges(t *testing.T) {
	d := NewDraft(uuid.New(), uuid.New(), validated(t, vitals.Measurements{HeightCm: vitals.F(170), WeightKg: vitals.F(70)}), nil)

	require.NoError(t, d.Apply(Edit{Field: vitals.BMI, Value: vitals.F(24.123)}))
	assert.Equal(t, NoDerived, d.State())
	assert.Equal(t, 24.12, *d.Values().BMI)
	assert.Equal(t, BMIEdited, d.BMIOrigin())

	require.NoError(t, d.Apply(Edit{Field: vitals.Pulse, Value: vitals.F(64)}))
	assert.Equal(t, 24.12, *d.Values().BMI, "unrelated edits keep the typed bmi")

	require.NoError(t, d.Apply(Edit{Field: vitals.HeightCm, Value: vitals.F(175)}))
	assert.Equal(t, vitals.ComputeBMI(175, 70), *d.Values().BMI)
	assert.Equal(t, BMIDerived, d.BMIOrigin())
}

func TestDraftClearingInputs(t *testing.T) {
	t.Run("derived bmi is dropped", func(t *testing.T) {
		d := NewDraft(uuid.New(), uuid.New(), validated(t, vitals.Measurements{HeightCm: vitals.F(170), WeightKg: vitals.F(70)}), nil)
		require.NoError(t, d.Apply(Edit{Field: vitals.HeightCm}))
		v := d.Values()
		assert.Nil(t, v.HeightCm)
		assert.Nil(t, v.BMI, "no bmi without height")
		assert.Equal(t, NoDerived, d.State())
		assert.Equal(t, BMINone, d.BMIOrigin())
	})

	t.Run("supplied bmi is kept", func(t *testing.T) {
		d := NewDraft(uuid.New(), uuid.New(), validated(t, vitals.Measurements{WeightKg: vitals.F(70), BMI: vitals.F(24.2)}), nil)
		require.NoError(t, d.Apply(Edit{Field: vitals.WeightKg, Value: vitals.F(71)}))
		assert.Equal(t, 24.2, *d.Values().BMI)
		assert.Equal(t, BMISupplied, d.BMIOrigin())
	})
}

func TestDraftApplyRejectsBadEdits(t *testing.T) {
	d := NewDraft(uuid.New(), uuid.New(), validated(t, vitals.Measurements{Pulse: vitals.F(70)}), nil)

	err := d.Apply(Edit{Field: vitals.Pulse, Value: vitals.F(72)}, Edit{Field: "temperature", Value: vitals.F(37)})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, 70.0, *d.Values().Pulse, "a rejected batch changes nothing")

	err = d.Apply(Edit{Field: vitals.Pulse, Value: vitals.F(math.NaN())})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestDraftJSONRoundTripKeepsState(t *testing.T) {
	d := NewDraft(uuid.New(), uuid.New(), validated(t, vitals.Measurements{HeightCm: vitals.F(170), WeightKg: vitals.F(70), BMI: vitals.F(24.2)}), []uuid.UUID{uuid.New()})
	require.NoError(t, d.Apply(Edit{Field: vitals.BMI, Value: vitals.F(25)}))

	b, err := json.Marshal(d)
	require.NoError(t, err)
	var back Draft
	require.NoError(t, json.Unmarshal(b, &back))

	assert.Equal(t, d.ID, back.ID)
	assert.Equal(t, d.SourceImageIDs, back.SourceImageIDs)
	assert.Equal(t, BMIEdited, back.BMIOrigin())
	assert.Equal(t, 25.0, *back.Values().BMI)
	assert.Nil(t, back.Values().Pulse)
}
