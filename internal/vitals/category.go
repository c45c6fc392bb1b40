package vitals

import "github.com/joseph-ayodele/vitals-tracker/constants"

// BMICategory classifies a bmi value using the WHO adult cut-offs.
func BMICategory(bmi *float64) constants.BMICategory {
	if bmi == nil {
		return constants.BMIUnknown
	}
	switch v := *bmi; {
	case v < 18.5:
		return constants.BMIUnderweight
	case v < 25:
		return constants.BMINormal
	case v < 30:
		return constants.BMIOverweight
	default:
		return constants.BMIObese
	}
}

// BPCategory classifies a blood pressure pair using the AHA adult table. The
// higher of the two classes wins.
func BPCategory(systolic, diastolic *float64) constants.BPCategory {
	if systolic == nil || diastolic == nil {
		return constants.BPUnknown
	}
	sys, dia := *systolic, *diastolic
	switch {
	case sys >= 140 || dia >= 90:
		return constants.BPStage2
	case sys >= 130 || dia >= 80:
		return constants.BPStage1
	case sys >= 120:
		return constants.BPElevated
	default:
		return constants.BPNormal
	}
}
