package review

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

// DerivationState tracks whether the draft's bmi follows from its height and
// weight.
type DerivationState string

const (
	// NoDerived means bmi is absent, supplied by recognition or typed in.
	NoDerived DerivationState = "no_derived"
	// Stale means height or weight changed since bmi was last derived.
	Stale DerivationState = "stale"
	// Fresh means bmi was derived from the current height and weight.
	Fresh DerivationState = "fresh"
)

// BMIOrigin says where the current bmi value came from.
type BMIOrigin string

const (
	BMINone     BMIOrigin = ""
	BMISupplied BMIOrigin = "supplied"
	BMIDerived  BMIOrigin = "derived"
	BMIEdited   BMIOrigin = "edited"
)

// Edit sets one field. A nil Value clears it.
type Edit struct {
	Field vitals.Field
	Value *float64
}

// Draft is an editable, not yet persisted reading. Values are read through
// Values, which settles any pending bmi recomputation first.
type Draft struct {
	ID             uuid.UUID
	ProfileID      uuid.UUID
	JobID          uuid.UUID
	SourceImageIDs []uuid.UUID
	MachineNotes   []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// ReadingID is set once the draft was confirmed.
	ReadingID *uuid.UUID

	m      vitals.Measurements
	state  DerivationState
	origin BMIOrigin
}

// NewDraft seeds a draft from a validated reading.
func NewDraft(profileID, jobID uuid.UUID, reading vitals.ValidatedReading, imageIDs []uuid.UUID) *Draft {
	now := time.Now().UTC()
	d := &Draft{
		ID:             uuid.New(),
		ProfileID:      profileID,
		JobID:          jobID,
		SourceImageIDs: append([]uuid.UUID{}, imageIDs...),
		MachineNotes:   reading.MachineNotes(),
		CreatedAt:      now,
		UpdatedAt:      now,
		m:              reading.Measurements(),
		state:          NoDerived,
	}
	switch {
	case reading.BMIDerived():
		d.state, d.origin = Fresh, BMIDerived
	case d.m.BMI != nil:
		d.origin = BMISupplied
	}
	return d
}

// State reports the derivation state without settling it.
func (d *Draft) State() DerivationState { return d.state }

// BMIOrigin reports where bmi came from as of the last read.
func (d *Draft) BMIOrigin() BMIOrigin { return d.origin }

// Confirmed reports whether the draft became a reading.
func (d *Draft) Confirmed() bool { return d.ReadingID != nil }

// Apply updates the draft. Height or weight edits mark bmi stale; a bmi edit
// is kept as typed until height or weight change again.
func (d *Draft) Apply(edits ...Edit) error {
	for _, e := range edits {
		if _, ok := vitals.Ranges[e.Field]; !ok {
			return common.NewAppError("INVALID_ARGUMENT", fmt.Sprintf("unknown field %q", e.Field), common.ErrInvalidInput)
		}
		if e.Value != nil && (math.IsNaN(*e.Value) || math.IsInf(*e.Value, 0)) {
			return common.NewAppError("INVALID_ARGUMENT", fmt.Sprintf("%s must be a finite number", e.Field), common.ErrInvalidInput)
		}
	}
	for _, e := range edits {
		v := vitals.Float(e.Value)
		if p, ok := vitals.Precision(e.Field); ok && v != nil {
			*v = vitals.Round(*v, p)
		}
		d.m.Set(e.Field, v)

		switch e.Field {
		case vitals.HeightCm, vitals.WeightKg:
			d.state = Stale
		case vitals.BMI:
			d.state = NoDerived
			d.origin = BMINone
			if v != nil {
				d.origin = BMIEdited
			}
		}
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// settle resolves a stale bmi. With both inputs present bmi is re-derived;
// otherwise a derived bmi is dropped and a supplied or edited one kept.
func (d *Draft) settle() {
	if d.state != Stale {
		return
	}
	if d.m.HeightCm != nil && d.m.WeightKg != nil {
		probe := d.m.Clone()
		probe.BMI = nil
		if out, derived := vitals.Derive(probe); derived {
			d.m.BMI = out.BMI
			d.state, d.origin = Fresh, BMIDerived
			return
		}
	}
	if d.origin == BMIDerived {
		d.m.BMI = nil
		d.origin = BMINone
	}
	d.state = NoDerived
}

// Values returns the current measurements with bmi settled.
func (d *Draft) Values() vitals.Measurements {
	d.settle()
	return d.m.Clone()
}

// Extracted returns the draft as input for vitals.Validate.
func (d *Draft) Extracted() vitals.ExtractedReading {
	return vitals.ExtractedReading{
		Measurements: d.Values(),
		MachineNotes: append([]string{}, d.MachineNotes...),
	}
}

type draftRecord struct {
	ID             uuid.UUID           `json:"id"`
	ProfileID      uuid.UUID           `json:"profileId"`
	JobID          uuid.UUID           `json:"jobId"`
	SourceImageIDs []uuid.UUID         `json:"sourceImageIds"`
	MachineNotes   []string            `json:"machineNotes"`
	Values         vitals.Measurements `json:"values"`
	State          DerivationState     `json:"state"`
	BMIOrigin      BMIOrigin           `json:"bmiOrigin,omitempty"`
	ReadingID      *uuid.UUID          `json:"readingId,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func (d *Draft) MarshalJSON() ([]byte, error) {
	d.settle()
	return json.Marshal(draftRecord{
		ID:             d.ID,
		ProfileID:      d.ProfileID,
		JobID:          d.JobID,
		SourceImageIDs: d.SourceImageIDs,
		MachineNotes:   d.MachineNotes,
		Values:         d.m,
		State:          d.state,
		BMIOrigin:      d.origin,
		ReadingID:      d.ReadingID,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	})
}

func (d *Draft) UnmarshalJSON(b []byte) error {
	var rec draftRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	*d = Draft{
		ID:             rec.ID,
		ProfileID:      rec.ProfileID,
		JobID:          rec.JobID,
		SourceImageIDs: rec.SourceImageIDs,
		MachineNotes:   rec.MachineNotes,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		ReadingID:      rec.ReadingID,
		m:              rec.Values,
		state:          rec.State,
		origin:         rec.BMIOrigin,
	}
	if d.state == "" {
		d.state = NoDerived
	}
	return nil
}
