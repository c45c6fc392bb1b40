package llm

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

// ParseResult is a decoded extraction plus what was taken from the raw text.
type ParseResult struct {
	Reading vitals.ExtractedReading
	// JSON is the object substring that was decoded.
	JSON string
	// Candidates counts top-level balanced objects in the text. Only the first
	// is used; more than one means the choice may be wrong.
	Candidates int
}

// ExtractJSONObject returns the first balanced {...} substring of text. Braces
// inside JSON strings are ignored.
func ExtractJSONObject(text string) (string, bool) {
	objs := scanObjects(text, 1)
	if len(objs) == 0 {
		return "", false
	}
	return objs[0], true
}

// scanObjects returns up to limit top-level balanced objects; limit <= 0 means all.
func scanObjects(text string, limit int) []string {
	var (
		out      []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if depth > 0 && inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, text[start:i+1])
				if limit > 0 && len(out) >= limit {
					return out
				}
			}
		}
	}
	return out
}

// ParseExtraction turns raw recognizer text into an ExtractedReading. It
// fails with ResponseParseError when no valid JSON object is present and with
// SchemaViolationError when the object has the wrong shape.
func ParseExtraction(text string, logger *slog.Logger) (ParseResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return ParseResult{}, &common.ResponseParseError{Reason: "no JSON object found"}
	}
	candidates := len(scanObjects(text, 0))
	if candidates > 1 {
		logger.Warn("llm.parse.multiple_objects", "candidates", candidates, "using", truncate(obj, 200))
	}

	var doc any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return ParseResult{}, &common.ResponseParseError{Reason: "invalid JSON", Cause: err}
	}

	schema, err := extractionSchema()
	if err != nil {
		return ParseResult{}, err
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return ParseResult{}, &common.SchemaViolationError{Fields: violatedFields(ve), Cause: err}
		}
		return ParseResult{}, &common.SchemaViolationError{Fields: []string{"(root)"}, Cause: err}
	}

	fields, ok := doc.(map[string]any)
	if !ok {
		return ParseResult{}, &common.SchemaViolationError{Fields: []string{"(root)"}}
	}
	return ParseResult{Reading: readingFromDoc(fields), JSON: obj, Candidates: candidates}, nil
}

// readingFromDoc copies the schema-checked keys, matched exactly. Keys that
// only differ in case are unknown and ignored.
func readingFromDoc(doc map[string]any) vitals.ExtractedReading {
	reading := vitals.ExtractedReading{MachineNotes: []string{}}
	for _, f := range vitals.Fields {
		if v, ok := doc[string(f)].(float64); ok {
			reading.Set(f, &v)
		}
	}
	if notes, ok := doc["machineNotes"].([]any); ok {
		for _, n := range notes {
			if s, ok := n.(string); ok {
				reading.MachineNotes = append(reading.MachineNotes, s)
			}
		}
	}
	return reading
}

// violatedFields names the top-level properties of every leaf error, in
// schema field order.
func violatedFields(ve *jsonschema.ValidationError) []string {
	seen := map[string]bool{}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			seen[topLevel(e.InstanceLocation)] = true
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	var out []string
	for _, f := range vitals.Fields {
		if seen[string(f)] {
			out = append(out, string(f))
			delete(seen, string(f))
		}
	}
	if seen["machineNotes"] {
		out = append(out, "machineNotes")
		delete(seen, "machineNotes")
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func topLevel(loc string) string {
	loc = strings.TrimPrefix(loc, "/")
	if loc == "" {
		return "(root)"
	}
	if i := strings.IndexByte(loc, '/'); i >= 0 {
		loc = loc[:i]
	}
	return loc
}
