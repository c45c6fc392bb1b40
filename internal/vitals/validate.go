package vitals

import (
	"github.com/joseph-ayodele/vitals-tracker/internal/common"
)

// Validate rounds and derives the extracted record, then checks every present
// field against its range. Any violation fails the whole record; values are
// never clamped. Violations are reported in field order.
func Validate(in ExtractedReading) (ValidatedReading, error) {
	m, derived := Derive(in.Measurements)

	var violations []common.RangeViolation
	for _, f := range Fields {
		v := m.Get(f)
		if v == nil {
			continue
		}
		r := Ranges[f]
		switch {
		case !finite(*v):
			violations = append(violations, common.RangeViolation{
				Field: string(f), Value: *v, Min: r.Min, Max: r.Max, Reason: "not a finite number",
			})
		case !r.Contains(*v):
			violations = append(violations, common.RangeViolation{
				Field: string(f), Value: *v, Min: r.Min, Max: r.Max,
			})
		}
	}
	if len(violations) > 0 {
		return ValidatedReading{}, &common.RangeValidationError{Violations: violations}
	}

	notes := in.MachineNotes
	if notes == nil {
		notes = []string{}
	}
	return ValidatedReading{
		m:          m,
		notes:      append([]string{}, notes...),
		bmiDerived: derived,
	}, nil
}
