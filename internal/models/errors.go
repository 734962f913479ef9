package models

import (
	"errors"
	"fmt"
)

// ConfigurationError reports invalid grid, physical or profile parameters.
// It is always raised before the first iteration runs.
type ConfigurationError struct {
	Code    string // Error code for programmatic handling
	Field   string // Offending parameter, if known
	Message string // Human-readable description
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error (%s): %s", e.Field, e.Message)
	}
	return "configuration error: " + e.Message
}

// Error codes for configuration errors
const (
	ErrCodeInvalidGrid    = "INVALID_GRID"
	ErrCodeInvalidValue   = "INVALID_VALUE"
	ErrCodeInvalidProfile = "INVALID_PROFILE"
	ErrCodeEmptyProfile   = "EMPTY_PROFILE"
	ErrCodeNoCoverage     = "NO_COVERAGE"
)

// ErrNumericalInstability is returned when instability warnings recur
// beyond the configured budget within a single run.
var ErrNumericalInstability = errors.New("numerical instability exceeded tolerance")

// NumericalInstabilityWarning records a non-fatal anomaly, such as a
// non-negligible imaginary residue after the inverse transform.
type NumericalInstabilityWarning struct {
	Iteration int
	ImagRatio float64
	Tolerance float64
}

func (w NumericalInstabilityWarning) Error() string {
	return fmt.Sprintf("iteration %d: imaginary residue ratio %.3g exceeds %.3g", w.Iteration, w.ImagRatio, w.Tolerance)
}

// DivergedReconstructionError is returned when the support repeatedly
// collapses to empty or grows to the entire grid and every retry is used up.
// The caller may retry independently with another seed.
type DivergedReconstructionError struct {
	// Attempts is the number of initialisations tried
	Attempts int

	// BadMasks is the number of consecutive bad masks that ended the last attempt
	BadMasks int

	// History holds the residual history of each attempt, in order
	History [][]float64
}

func (e *DivergedReconstructionError) Error() string {
	return fmt.Sprintf("reconstruction diverged after %d attempt(s): %d consecutive bad support masks", e.Attempts, e.BadMasks)
}
