package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a request rejected before any provider was called.
	ErrValidation = errors.New("validation error")
	// ErrProvider marks a failed or unusable language-model turn.
	ErrProvider = errors.New("provider error")
	// ErrSynthesis marks a speech provider that produced no usable waveform.
	ErrSynthesis = errors.New("synthesis error")
	// ErrEncoding marks a waveform that could not be serialized.
	ErrEncoding = errors.New("encoding error")
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewValidationError returns an ErrValidation carrying a client-facing message.
func NewValidationError(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

// ProviderErrorf wraps cause as an ErrProvider.
func ProviderErrorf(cause error, format string, args ...any) error {
	return wrapKind(ErrProvider, cause, format, args...)
}

// SynthesisErrorf wraps cause as an ErrSynthesis.
func SynthesisErrorf(cause error, format string, args ...any) error {
	return wrapKind(ErrSynthesis, cause, format, args...)
}

// EncodingErrorf wraps cause as an ErrEncoding.
func EncodingErrorf(cause error, format string, args ...any) error {
	return wrapKind(ErrEncoding, cause, format, args...)
}

func wrapKind(kind, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", kind, msg)
	}
	return fmt.Errorf("%w: %s: %w", kind, msg, cause)
}
