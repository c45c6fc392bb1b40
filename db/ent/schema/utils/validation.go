package utils

import (
	"fmt"
	"math"
)

func EnumValidator(allowed ...string) func(string) error {
	set := map[string]struct{}{}
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(s string) error {
		if _, ok := set[s]; ok {
			return nil
		}
		return fmt.Errorf("value %q not in %v", s, allowed)
	}
}

// RangeValidator rejects values outside [min, max] and non-finite values.
func RangeValidator(min, max float64) func(float64) error {
	return func(v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < min || v > max {
			return fmt.Errorf("value %v outside [%v, %v]", v, min, max)
		}
		return nil
	}
}
