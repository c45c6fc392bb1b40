package llm

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"leading commentary", `Sure, here is the JSON: {"a":{"b":2}} hope it helps`, `{"a":{"b":2}}`, true},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"brace in string", `{"note":"closing } brace","x":1}`, `{"note":"closing } brace","x":1}`, true},
		{"escaped quote", `{"note":"say \"}\" ok"}`, `{"note":"say \"}\" ok"}`, true},
		{"stray closer first", `} oops {"a":1}`, `{"a":1}`, true},
		{"first of two", `{"a":1} and {"a":2}`, `{"a":1}`, true},
		{"none", `no json here`, "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExtractionWithCommentary(t *testing.T) {
	text := `Sure, here is the JSON: {"heightCm": 164.63, "weightKg": 63.21, "bmi": null,
		"standardWeightKg": null, "systolic": 120, "diastolic": 80, "pulse": 72,
		"machineNotes": ["height/weight machine present", "omron hbp-9020 present"]}`

	res, err := ParseExtraction(text, quietLogger())
	require.NoError(t, err)

	r := res.Reading
	assert.Equal(t, 164.63, *r.HeightCm)
	assert.Equal(t, 63.21, *r.WeightKg)
	assert.Nil(t, r.BMI)
	assert.Nil(t, r.StandardWeightKg)
	assert.Equal(t, 120.0, *r.Systolic)
	assert.Equal(t, []string{"height/weight machine present", "omron hbp-9020 present"}, r.MachineNotes)
	assert.Equal(t, 1, res.Candidates)
}

func TestParseExtractionOmittedFieldsAreAbsent(t *testing.T) {
	res, err := ParseExtraction(`{"pulse": 0, "extra": "ignored"}`, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, res.Reading.HeightCm)
	require.NotNil(t, res.Reading.Pulse, "zero is a value, not absence")
	assert.Equal(t, 0.0, *res.Reading.Pulse)
	assert.NotNil(t, res.Reading.MachineNotes)
	assert.Empty(t, res.Reading.MachineNotes)
}

func TestParseExtractionErrors(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantParse  bool
		wantFields []string
	}{
		{name: "no object", text: "I could not read the display.", wantParse: true},
		{name: "invalid syntax", text: `{heightCm: 170}`, wantParse: true},
		{name: "trailing comma", text: `{"heightCm": 170,}`, wantParse: true},
		{name: "string number", text: `{"heightCm": "170"}`, wantFields: []string{"heightCm"}},
		{name: "two bad fields", text: `{"pulse": "72", "weightKg": true}`, wantFields: []string{"weightKg", "pulse"}},
		{name: "notes not array", text: `{"machineNotes": "scale"}`, wantFields: []string{"machineNotes"}},
		{name: "note not string", text: `{"machineNotes": ["scale", 3]}`, wantFields: []string{"machineNotes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExtraction(tt.text, quietLogger())
			require.Error(t, err)
			if tt.wantParse {
				var pe *common.ResponseParseError
				assert.ErrorAs(t, err, &pe)
				return
			}
			var sv *common.SchemaViolationError
			require.ErrorAs(t, err, &sv)
			assert.Equal(t, tt.wantFields, sv.Fields)
		})
	}
}

func TestParseExtractionMatchesKeysExactly(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "upper-cased keys", text: `{"HEIGHTCM": 170, "Weightkg": 70, "machineNotes": []}`},
		{name: "mis-cased key with a string", text: `{"HeightCm": "tall"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseExtraction(tt.text, quietLogger())
			require.NoError(t, err)
			assert.Empty(t, res.Reading.Present())
			assert.Equal(t, []string{}, res.Reading.MachineNotes)
		})
	}

	res, err := ParseExtraction(`{"heightCm": 170, "HeightCm": 999, "machineNotes": ["scale"]}`, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, res.Reading.HeightCm)
	assert.Equal(t, 170.0, *res.Reading.HeightCm)
	assert.Equal(t, []string{"scale"}, res.Reading.MachineNotes)
}

func TestParseExtractionMultipleObjectsWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	text := `Example: {"pulse": 60} Actual answer: {"pulse": 72}`
	res, err := ParseExtraction(text, logger)
	require.NoError(t, err)
	assert.Equal(t, 60.0, *res.Reading.Pulse)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, `{"pulse": 60}`, res.JSON)
	assert.Contains(t, buf.String(), "llm.parse.multiple_objects")
}

func TestExtractionSchemaCoversEveryField(t *testing.T) {
	props := BuildExtractionJSONSchema()["properties"].(map[string]any)
	for _, f := range []string{"heightCm", "weightKg", "bmi", "standardWeightKg", "systolic", "diastolic", "pulse", "machineNotes"} {
		assert.Contains(t, props, f)
	}
	assert.NotContains(t, BuildExtractionJSONSchema(), "required")
}

func TestUserPromptIsFixed(t *testing.T) {
	assert.Contains(t, UserPrompt, "set it to null")
	assert.Contains(t, UserPrompt, "Omron HBP-9020")
	assert.Contains(t, UserPrompt, `"machineNotes": string[]`)
}

func TestDataURL(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AQI=", DataURL(Image{Data: []byte{1, 2}, MediaType: "image/png"}))
	assert.Equal(t, "data:image/jpeg;base64,", DataURL(Image{}))
}
