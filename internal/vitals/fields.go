package vitals

// Field names one numeric measurement. The string value is the JSON key used by
// the recognizer, drafts and the API.
type Field string

const (
	HeightCm         Field = "heightCm"
	WeightKg         Field = "weightKg"
	BMI              Field = "bmi"
	StandardWeightKg Field = "standardWeightKg"
	Systolic         Field = "systolic"
	Diastolic        Field = "diastolic"
	Pulse            Field = "pulse"
)

// Fields lists every measurement in reporting order.
var Fields = []Field{HeightCm, WeightKg, BMI, StandardWeightKg, Systolic, Diastolic, Pulse}

// Range is a closed interval [Min, Max].
type Range struct {
	Min  float64
	Max  float64
	Unit string
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Ranges holds the plausible adult bounds for each field.
var Ranges = map[Field]Range{
	HeightCm:         {Min: 120, Max: 210, Unit: "cm"},
	WeightKg:         {Min: 30, Max: 200, Unit: "kg"},
	BMI:              {Min: 12, Max: 45},
	StandardWeightKg: {Min: 30, Max: 150, Unit: "kg"},
	Systolic:         {Min: 80, Max: 200, Unit: "mmHg"},
	Diastolic:        {Min: 40, Max: 130, Unit: "mmHg"},
	Pulse:            {Min: 30, Max: 200, Unit: "bpm"},
}

// precision is the number of decimal places kept per field. Fields not listed
// are stored as recognized.
var precision = map[Field]int{
	HeightCm:         1,
	WeightKg:         1,
	StandardWeightKg: 1,
	BMI:              2,
}

// ParseField resolves a JSON key to a Field.
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Precision returns the decimal places kept for f, if it is rounded at all.
func Precision(f Field) (int, bool) {
	p, ok := precision[f]
	return p, ok
}
