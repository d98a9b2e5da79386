package engine

import (
	"errors"
	"fmt"
)

// ConfigError represents an invalid manager configuration.
//
// The tick path itself has no error conditions: never starting, a forced
// partial start and clock regressions are policy outcomes or collaborator
// contract breaches. Errors only surface when a manager is constructed.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending setting, if any.
	Field string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeNilMaster indicates the manager was constructed without a master clock.
	ErrCodeNilMaster ConfigErrorCode = "NIL_MASTER"

	// ErrCodeNegativeThreshold indicates a threshold below zero.
	ErrCodeNegativeThreshold ConfigErrorCode = "NEGATIVE_THRESHOLD"

	// ErrCodeNonFiniteThreshold indicates a NaN or infinite threshold.
	ErrCodeNonFiniteThreshold ConfigErrorCode = "NON_FINITE_THRESHOLD"

	// ErrCodeInvertedBand indicates MaxSyncOffset is smaller than SyncTarget,
	// which would invert the hysteresis band.
	ErrCodeInvertedBand ConfigErrorCode = "INVERTED_BAND"

	// ErrCodeNilDependency indicates a nil logger, time source or observer.
	ErrCodeNilDependency ConfigErrorCode = "NIL_DEPENDENCY"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError returns true if the error is a ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigErrorCodeOf returns the code of a wrapped ConfigError, or "".
func ConfigErrorCodeOf(err error) ConfigErrorCode {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
