package model

import (
	"errors"
	"fmt"
)

// Load phases reported by LoadError.
const (
	PhaseOpen   = "open"
	PhaseParse  = "parse"
	PhaseSchema = "schema"
)

var (
	// ErrSourceNotFound means no dataset could be located.
	ErrSourceNotFound = errors.New("dataset source not found")
	// ErrSchemaMismatch means the source does not carry exactly the ID, node
	// and value columns.
	ErrSchemaMismatch = errors.New("dataset schema mismatch")
)

// LoadError is returned when a dataset source is unreachable, malformed or
// has the wrong shape. It is fatal to readiness.
type LoadError struct {
	Source string
	Phase  string
	Cause  error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load %s failed: %v", e.Phase, e.Cause)
	}
	return fmt.Sprintf("load %s failed for %s: %v", e.Phase, e.Source, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// NewLoadError wraps cause unless it already is a *LoadError.
func NewLoadError(source, phase string, cause error) error {
	if cause == nil {
		return nil
	}
	var le *LoadError
	if errors.As(cause, &le) {
		return le
	}
	return &LoadError{Source: source, Phase: phase, Cause: cause}
}
