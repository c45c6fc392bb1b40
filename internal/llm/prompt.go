package llm

import "strings"

// SystemPrompt frames the recognizer as a transcriber, not an interpreter.
const SystemPrompt = "You convert health kiosk photos into clean, verified numbers."

var userRules = []string{
	"You will see one or more photos from health kiosks. Extract every numeric vital sign.",
	"Rules:",
	"- Return ONLY JSON in the shape below.",
	"- If a value is missing or unreadable, set it to null. Never use 0 for a missing value.",
	"- Read red LED seven-segment displays carefully. Ignore background posters.",
	"- Values may contain decimals; keep them.",
	"- If height and weight are shown but BMI is not, leave bmi null. It is computed later.",
	"- Prefer the largest, most centered instrument reading. Ignore reflections and duplicate readings.",
	"- Kiosks commonly present:",
	"  (A) Height/weight/BMI scale showing HEIGHT (cm), WEIGHT (kg), BMI, STANDARD WEIGHT (kg).",
	"  (B) Omron HBP-9020 blood pressure monitor showing systolic (upper, mmHg), diastolic (lower, mmHg), pulse (bpm).",
	"- Tolerate minor OCR quirks (164.6 vs 164.8) and pick the most likely reading.",
	"",
	"Return JSON:",
	`{`,
	`  "heightCm": number|null,`,
	`  "weightKg": number|null,`,
	`  "bmi": number|null,`,
	`  "standardWeightKg": number|null,`,
	`  "systolic": number|null,`,
	`  "diastolic": number|null,`,
	`  "pulse": number|null,`,
	`  "machineNotes": string[]`,
	`}`,
	`machineNotes lists the apparatus you saw, e.g. ["height/weight machine present", "omron hbp-9020 present"].`,
}

// UserPrompt is the fixed task instruction sent with the photos.
var UserPrompt = strings.Join(userRules, "\n")
