package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Construction errors (fatal)
	ErrAlignment     = errors.New("sample alignment mismatch")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownMethod = errors.New("unknown method identifier")

	// Per-unit errors (recovered by the batch runner)
	ErrInsufficientData = errors.New("insufficient data for reduction")
	ErrEmptyUnit        = errors.New("no omic produced covariates for unit")
	ErrModelFit         = errors.New("association model fit failed")

	// Storage errors
	ErrNotFound  = errors.New("resource not found")
	ErrCacheMiss = fmt.Errorf("%w: cache entry", ErrNotFound)
)

// Error constructors with context
func NewAlignmentError(what string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrAlignment, what, fmt.Sprintf(format, args...))
}

func NewInvalidInputError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

func NewUnknownMethodError(kind, name string) error {
	return fmt.Errorf("%w: %s %q", ErrUnknownMethod, kind, name)
}

func NewInsufficientDataError(omic string, reason string) error {
	return fmt.Errorf("%w: omic %s: %s", ErrInsufficientData, omic, reason)
}

func NewEmptyUnitError(unit string) error {
	return fmt.Errorf("%w: %s", ErrEmptyUnit, unit)
}

func NewModelFitError(model string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrModelFit, model, reason)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers

// IsUnitFailure reports whether err is a per-unit failure that a batch absorbs.
func IsUnitFailure(err error) bool {
	return errors.Is(err, ErrEmptyUnit) || errors.Is(err, ErrModelFit)
}

// IsFatal reports whether err must propagate to the caller.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAlignment) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnknownMethod)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsModelFitError(err error) bool {
	return errors.Is(err, ErrModelFit)
}
