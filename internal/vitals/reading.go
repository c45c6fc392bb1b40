package vitals

import "encoding/json"

// Measurements holds the seven optional numeric fields. A nil pointer means the
// value was not legible or not present; it is never the same as zero.
type Measurements struct {
	HeightCm         *float64 `json:"heightCm"`
	WeightKg         *float64 `json:"weightKg"`
	BMI              *float64 `json:"bmi"`
	StandardWeightKg *float64 `json:"standardWeightKg"`
	Systolic         *float64 `json:"systolic"`
	Diastolic        *float64 `json:"diastolic"`
	Pulse            *float64 `json:"pulse"`
}

func (m *Measurements) ptr(f Field) **float64 {
	switch f {
	case HeightCm:
		return &m.HeightCm
	case WeightKg:
		return &m.WeightKg
	case BMI:
		return &m.BMI
	case StandardWeightKg:
		return &m.StandardWeightKg
	case Systolic:
		return &m.Systolic
	case Diastolic:
		return &m.Diastolic
	case Pulse:
		return &m.Pulse
	}
	return nil
}

// Get returns a copy of the field value, or nil when absent.
func (m Measurements) Get(f Field) *float64 {
	p := m.ptr(f)
	if p == nil {
		return nil
	}
	return Float(*p)
}

// Set stores a copy of v; nil clears the field.
func (m *Measurements) Set(f Field, v *float64) {
	if p := m.ptr(f); p != nil {
		*p = Float(v)
	}
}

// Clone returns a deep copy so callers never share pointers.
func (m Measurements) Clone() Measurements {
	var out Measurements
	for _, f := range Fields {
		out.Set(f, m.Get(f))
	}
	return out
}

// Present returns the fields that hold a value, in reporting order.
func (m Measurements) Present() []Field {
	var out []Field
	for _, f := range Fields {
		if m.Get(f) != nil {
			out = append(out, f)
		}
	}
	return out
}

// ExtractedReading is the permissive record parsed from recognizer output.
type ExtractedReading struct {
	Measurements
	MachineNotes []string `json:"machineNotes"`
}

// ValidatedReading is a rounded, derived and range-checked record. The zero value
// is empty; only Validate produces populated ones.
type ValidatedReading struct {
	m          Measurements
	notes      []string
	bmiDerived bool
}

// Measurements returns a copy of the validated values.
func (v ValidatedReading) Measurements() Measurements { return v.m.Clone() }

// MachineNotes returns the recognizer's apparatus annotations.
func (v ValidatedReading) MachineNotes() []string {
	return append([]string(nil), v.notes...)
}

// BMIDerived reports whether bmi was computed from height and weight rather
// than supplied.
func (v ValidatedReading) BMIDerived() bool { return v.bmiDerived }

func (v ValidatedReading) MarshalJSON() ([]byte, error) {
	notes := v.notes
	if notes == nil {
		notes = []string{}
	}
	return json.Marshal(struct {
		Measurements
		MachineNotes []string `json:"machineNotes"`
		BMIDerived   bool     `json:"bmiDerived"`
	}{v.m, notes, v.bmiDerived})
}

// Float returns a fresh pointer holding *v, or nil.
func Float(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// F is shorthand for a pointer to a literal value.
func F(v float64) *float64 { return &v }
