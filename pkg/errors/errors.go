package errors

import (
	"errors"
	"fmt"
)

// Generic error kinds

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a dependency is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Conversation errors

var (
	// ErrInvalidSize indicates a size string that does not match <int><KB|MB|MiB>
	ErrInvalidSize = errors.New("invalid size format")

	// ErrInvalidQuality indicates a quality value that is not an integer in [1,95]
	ErrInvalidQuality = errors.New("invalid quality")

	// ErrMissingSessionData indicates the session lacks data required by the current state
	ErrMissingSessionData = errors.New("missing session data")
)

// Compression errors

var (
	// ErrRetrieval indicates the source photo could not be fetched from the transport
	ErrRetrieval = errors.New("photo retrieval failed")

	// ErrSourceTooLarge indicates the source photo exceeds the configured download limit
	ErrSourceTooLarge = errors.New("source image too large")

	// ErrCodec indicates the image could not be decoded or encoded
	ErrCodec = errors.New("codec failure")
)

// DomainError wraps an error with a stable code and a user-facing message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError is a user input rejection whose Message is safe to show verbatim
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
	Kind    error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap exposes the error kind for errors.Is
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// NewValidationError creates a new validation error of the given kind
func NewValidationError(kind error, field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Kind:    kind,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// kindError tags an error chain with a sentinel kind while keeping the original message
type kindError struct {
	err  error
	kind error
}

func (e *kindError) Error() string {
	return e.err.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.err, e.kind}
}

// WithKind marks err as being of kind so that Is(err, kind) holds; the message is unchanged
func WithKind(err error, kind error) error {
	if err == nil {
		return nil
	}
	return &kindError{err: err, kind: kind}
}
