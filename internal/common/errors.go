package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
	ErrDraftClosed  = errors.New("draft already confirmed or discarded")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

// ToStatus converts a service-layer error into a gRPC status error. Errors that
// already carry a status pass through untouched.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		id  *ImageDecodeError
		ru  *RecognitionUnavailableError
		rp  *ResponseParseError
		sv  *SchemaViolationError
		rv  *RangeValidationError
		app *AppError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, UserMessage(err))
	case errors.As(err, &ru):
		return status.Error(codes.Unavailable, GenericExtractMessage)
	case errors.As(err, &rp):
		return status.Error(codes.FailedPrecondition, GenericExtractMessage)
	case errors.As(err, &sv), errors.As(err, &rv):
		return status.Error(codes.InvalidArgument, UserMessage(err))
	case errors.As(err, &id):
		return status.Error(codes.InvalidArgument, GenericExtractMessage+": unsupported or corrupt image "+id.Filename)
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, ErrDraftClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &app) && errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, app.Message)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
