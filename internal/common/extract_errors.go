package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// GenericExtractMessage is the only text shown to end users when extraction fails
// for reasons they cannot act on field by field.
const GenericExtractMessage = "could not extract readings from this image"

// ImageDecodeError reports an input image that could not be decoded in any
// supported format. It aborts the whole extraction request.
type ImageDecodeError struct {
	Filename string
	Cause    error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode image %q: %v", e.Filename, e.Cause)
}

func (e *ImageDecodeError) Unwrap() error { return e.Cause }

// RecognitionUnavailableError is a transport or service failure of the
// recognition backend. It is the only retryable extraction failure.
type RecognitionUnavailableError struct {
	Provider   string
	StatusCode int
	Cause      error
}

func (e *RecognitionUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("recognition unavailable (%s, status %d): %v", e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("recognition unavailable (%s): %v", e.Provider, e.Cause)
}

func (e *RecognitionUnavailableError) Unwrap() error { return e.Cause }

// ResponseParseError means no syntactically valid JSON object was found in the
// recognizer output.
type ResponseParseError struct {
	Reason string
	Cause  error
}

func (e *ResponseParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse recognition response: %s: %v", e.Reason, e.Cause)
	}
	return "parse recognition response: " + e.Reason
}

func (e *ResponseParseError) Unwrap() error { return e.Cause }

// SchemaViolationError means a JSON object was found but its shape is wrong.
// Fields names every offending top-level field.
type SchemaViolationError struct {
	Fields []string
	Cause  error
}

func (e *SchemaViolationError) Error() string {
	return "response does not match extraction schema: " + strings.Join(e.Fields, ", ")
}

func (e *SchemaViolationError) Unwrap() error { return e.Cause }

// RangeViolation is one field outside its plausible range.
type RangeViolation struct {
	Field  string
	Value  float64
	Min    float64
	Max    float64
	Reason string
}

func (v RangeViolation) String() string {
	if v.Reason != "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Reason)
	}
	return fmt.Sprintf("%s=%g outside [%g, %g]", v.Field, v.Value, v.Min, v.Max)
}

// RangeValidationError carries every implausible field of a shape-correct record.
type RangeValidationError struct {
	Violations []RangeViolation
}

func (e *RangeValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "implausible values: " + strings.Join(parts, "; ")
}

// Fields returns the offending field names in order.
func (e *RangeValidationError) Fields() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Field)
	}
	return out
}

// IsRetryable reports whether resubmitting a fresh request may succeed.
func IsRetryable(err error) bool {
	var ru *RecognitionUnavailableError
	return errors.As(err, &ru)
}

// UserMessage returns the text that may be shown to the person who submitted the
// photos. Schema and range failures keep their field detail for the reviewer.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		sv *SchemaViolationError
		rv *RangeValidationError
	)
	switch {
	case errors.As(err, &rv):
		return GenericExtractMessage + ": " + strings.TrimPrefix(rv.Error(), "implausible values: ")
	case errors.As(err, &sv):
		return GenericExtractMessage + ": unexpected value for " + strings.Join(sv.Fields, ", ")
	case errors.Is(err, context.Canceled):
		return "extraction canceled"
	default:
		return GenericExtractMessage
	}
}

// ErrorCode is the stable code stored on failed extraction jobs.
func ErrorCode(err error) string {
	var (
		id *ImageDecodeError
		ru *RecognitionUnavailableError
		rp *ResponseParseError
		sv *SchemaViolationError
		rv *RangeValidationError
	)
	switch {
	case errors.As(err, &id):
		return "IMAGE_DECODE"
	case errors.As(err, &ru):
		return "RECOGNITION_UNAVAILABLE"
	case errors.As(err, &rp):
		return "RESPONSE_PARSE"
	case errors.As(err, &sv):
		return "SCHEMA_VIOLATION"
	case errors.As(err, &rv):
		return "RANGE_VALIDATION"
	case errors.Is(err, context.Canceled):
		return "CANCELED"
	default:
		return "INTERNAL"
	}
}
