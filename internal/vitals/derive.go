package vitals

import "math"

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// ComputeBMI returns weight / (height in metres)^2 rounded to 2 decimal places.
func ComputeBMI(heightCm, weightKg float64) float64 {
	m := heightCm / 100
	return Round(weightKg/(m*m), precision[BMI])
}

// Derive rounds every present field to its precision and fills in bmi from
// height and weight when it was not supplied. Height and weight are rounded
// before bmi is derived so the stored bmi matches the stored inputs. The
// returned flag reports whether bmi was derived.
func Derive(in Measurements) (Measurements, bool) {
	out := in.Clone()
	for _, f := range []Field{HeightCm, WeightKg, StandardWeightKg} {
		if v := out.Get(f); v != nil {
			out.Set(f, F(Round(*v, precision[f])))
		}
	}

	derived := false
	if out.BMI == nil && out.HeightCm != nil && out.WeightKg != nil && canDeriveFrom(*out.HeightCm, *out.WeightKg) {
		out.BMI = F(ComputeBMI(*out.HeightCm, *out.WeightKg))
		derived = true
	}
	if out.BMI != nil {
		out.BMI = F(Round(*out.BMI, precision[BMI]))
	}
	return out, derived
}

func canDeriveFrom(h, w float64) bool {
	return h > 0 && finite(h) && finite(w)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Delta returns current - previous rounded to 2 places, or nil when either side
// is absent.
func Delta(current, previous *float64) *float64 {
	if current == nil || previous == nil {
		return nil
	}
	return F(Round(*current-*previous, 2))
}
