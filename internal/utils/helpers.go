package utils

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
	"github.com/joseph-ayodele/vitals-tracker/internal/readings"
	"github.com/joseph-ayodele/vitals-tracker/internal/review"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

func ToPBProfile(p *entity.Profile) map[string]any {
	return map[string]any{
		"id":         p.ID.String(),
		"name":       p.Name,
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ToPBReading(r *entity.Reading) map[string]any {
	out := map[string]any{
		"id":            r.ID.String(),
		"profile_id":    r.ProfileID.String(),
		"measured_at":   r.MeasuredAt.UTC().Format(time.RFC3339),
		"values":        measurementsMap(r.Measurements),
		"machine_notes": stringsToAny(r.MachineNotes),
		"bmi_category":  string(vitals.BMICategory(r.BMI)),
		"bp_category":   string(vitals.BPCategory(r.Systolic, r.Diastolic)),
		"created_at":    r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.Notes != nil {
		out["notes"] = *r.Notes
	}
	if r.ExtractionJobID != nil {
		out["extraction_job_id"] = r.ExtractionJobID.String()
	}
	imgs := make([]any, 0, len(r.SourceImages))
	for i := range r.SourceImages {
		imgs = append(imgs, ToPBSourceImage(&r.SourceImages[i]))
	}
	out["source_images"] = imgs
	return out
}

func ToPBDraft(d *review.Draft) map[string]any {
	ids := make([]any, 0, len(d.SourceImageIDs))
	for _, id := range d.SourceImageIDs {
		ids = append(ids, id.String())
	}
	values := measurementsMap(d.Values()) // settles bmi before State is read
	out := map[string]any{
		"id":                d.ID.String(),
		"profile_id":        d.ProfileID.String(),
		"extraction_job_id": d.JobID.String(),
		"source_image_ids":  ids,
		"values":            values,
		"machine_notes":     stringsToAny(d.MachineNotes),
		"derivation_state":  string(d.State()),
		"bmi_origin":        string(d.BMIOrigin()),
		"confirmed":         d.Confirmed(),
		"updated_at":        d.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if d.ReadingID != nil {
		out["reading_id"] = d.ReadingID.String()
	}
	return out
}

func ToPBSourceImage(img *entity.SourceImage) map[string]any {
	out := map[string]any{
		"id":            img.ID.String(),
		"original_name": img.OriginalName,
		"media_type":    img.MediaType,
		"size_bytes":    float64(img.SizeBytes),
		"position":      float64(img.Position),
		"created_at":    img.CreatedAt.UTC().Format(time.RFC3339),
	}
	if img.ReadingID != nil {
		out["reading_id"] = img.ReadingID.String()
	}
	return out
}

func ToPBSummary(s *readings.Summary) map[string]any {
	out := map[string]any{
		"bmi_category": string(s.BMICategory),
		"bp_category":  string(s.BPCategory),
	}
	if s.Latest != nil {
		out["latest"] = ToPBReading(s.Latest)
	}
	if s.Previous != nil {
		out["previous"] = ToPBReading(s.Previous)
	}
	deltas := map[string]any{}
	for f, d := range s.Deltas {
		if d != nil {
			deltas[string(f)] = *d
		}
	}
	out["deltas"] = deltas
	return out
}

// measurementsMap keeps absent fields as explicit nulls.
func measurementsMap(m vitals.Measurements) map[string]any {
	out := make(map[string]any, len(vitals.Fields))
	for _, f := range vitals.Fields {
		if v := m.Get(f); v != nil {
			out[string(f)] = *v
		} else {
			out[string(f)] = nil
		}
	}
	return out
}

func stringsToAny(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	// strip time to midnight UTC to match DATE semantics
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// String returns the trimmed string value at key, or "".
func String(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

// OptionalString returns nil when key is absent or null.
func OptionalString(s *structpb.Struct, key string) *string {
	v, ok := s.GetFields()[key]
	if !ok || isNull(v) {
		return nil
	}
	str := v.GetStringValue()
	return &str
}

// UUID parses the required id at key.
func UUID(s *structpb.Struct, key string) (uuid.UUID, error) {
	raw := String(s, key)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID", key)
	}
	return id, nil
}

// Int returns the integral number at key, or 0.
func Int(s *structpb.Struct, key string) int {
	return int(s.GetFields()[key].GetNumberValue())
}

// Time parses an RFC 3339 timestamp or a YYYY-MM-DD date at key. Absent keys
// yield nil.
func Time(s *structpb.Struct, key string) (*time.Time, error) {
	raw := String(s, key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := ParseYMD(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", key)
	}
	return &t, nil
}

// Bytes decodes the standard base64 string v.
func Bytes(v *structpb.Value) ([]byte, error) {
	return base64.StdEncoding.DecodeString(v.GetStringValue())
}

func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// ValueEdit is one requested change to a measurement.
type ValueEdit struct {
	Field vitals.Field
	Value *float64
}

// Values reads the measurement object at key. Null entries clear a field;
// unknown keys and non-numeric values are rejected.
func Values(s *structpb.Struct, key string) ([]ValueEdit, error) {
	obj := s.GetFields()[key].GetStructValue()
	if obj == nil {
		return nil, nil
	}
	var out []ValueEdit
	for _, f := range vitals.Fields {
		v, ok := obj.GetFields()[string(f)]
		if !ok {
			continue
		}
		if isNull(v) {
			out = append(out, ValueEdit{Field: f})
			continue
		}
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok || math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
			return nil, fmt.Errorf("%s.%s must be a number or null", key, f)
		}
		out = append(out, ValueEdit{Field: f, Value: vitals.F(n.NumberValue)})
	}
	for k := range obj.GetFields() {
		if _, ok := vitals.ParseField(k); !ok {
			return nil, fmt.Errorf("%s.%s is not a measurement", key, k)
		}
	}
	return out, nil
}

func isNull(v *structpb.Value) bool {
	_, null := v.GetKind().(*structpb.Value_NullValue)
	return v == nil || null
}
