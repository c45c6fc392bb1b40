package constants

import (
	"strings"
)

// BMICategory is the weight class shown next to a reading.
type BMICategory string

const (
	BMIUnknown     BMICategory = "Unknown"
	BMIUnderweight BMICategory = "Underweight"
	BMINormal      BMICategory = "Normal"
	BMIOverweight  BMICategory = "Overweight"
	BMIObese       BMICategory = "Obese"
)

// BPCategory is the blood pressure class shown next to a reading.
type BPCategory string

const (
	BPUnknown  BPCategory = "Unknown"
	BPNormal   BPCategory = "Normal"
	BPElevated BPCategory = "Elevated"
	BPStage1   BPCategory = "Stage 1 Hypertension"
	BPStage2   BPCategory = "Stage 2 Hypertension"
)

var allBPCategories = []BPCategory{
	BPNormal,
	BPElevated,
	BPStage1,
	BPStage2,
}

func BPCategoriesAsStringSlice() []string {
	result := make([]string, len(allBPCategories))
	for i, cat := range allBPCategories {
		result[i] = string(cat)
	}
	return result
}

// CanonicalizeBP maps loose labels ("stage 1", "htn2") onto a category.
func CanonicalizeBP(input string) (BPCategory, bool) {
	if input == "" {
		return BPUnknown, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]BPCategory{
		"stage 1": BPStage1,
		"stage1":  BPStage1,
		"htn1":    BPStage1,
		"stage 2": BPStage2,
		"stage2":  BPStage2,
		"htn2":    BPStage2,
		"high":    BPStage2,
		"ok":      BPNormal,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allBPCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return BPUnknown, false
}
