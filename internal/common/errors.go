package common

import (
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

// Error taxonomy. NotFound and InvalidState are surfaced to the caller and
// never retried; TransientStore means the whole operation may be safely
// replayed because status writes are idempotent; Enrichment errors are
// swallowed inside the enrichment chain and only ever logged.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrTransientStore = errors.New("transient store error")
	ErrEnrichment     = errors.New("enrichment failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NotFoundf builds a NotFound error for an unknown job or file id.
func NotFoundf(format string, args ...interface{}) error {
	return NewAppError("NOT_FOUND", fmt.Sprintf(format, args...), ErrNotFound)
}

// InvalidStatef builds an InvalidState error for a violated precondition.
func InvalidStatef(format string, args ...interface{}) error {
	return NewAppError("INVALID_STATE", fmt.Sprintf(format, args...), ErrInvalidState)
}

// StoreError wraps a store failure as transient so callers know the
// operation is safe to replay.
func StoreError(op string, cause error) error {
	return NewAppError("STORE_ERROR", op, fmt.Errorf("%w: %w", ErrTransientStore, cause))
}

// ToStatus maps the taxonomy onto gRPC status codes for the service boundary.
func ToStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrTransientStore):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
