package models

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrDependency           = errors.New("dependency error")
	ErrNotFound             = errors.New("not found")
	ErrGeneratorUnavailable = errors.New("generator unavailable")
	ErrCollectionMismatch   = errors.New("collection mismatch")
)

// ValidationError reports an invalid parameter supplied by the caller.
type ValidationError struct {
	Param  string
	Reason string
}

// NewValidationError returns a ValidationError for param.
func NewValidationError(param, format string, args ...any) *ValidationError {
	return &ValidationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DependencyError wraps a failure of an external collaborator (embedder,
// index storage, vector index, generator). It is never retried here.
type DependencyError struct {
	Dependency string
	Err        error
}

// NewDependencyError wraps err as a failure of dependency. A nil err yields nil.
func NewDependencyError(dependency string, err error) error {
	if err == nil {
		return nil
	}
	var de *DependencyError
	if errors.As(err, &de) {
		return err
	}
	return &DependencyError{Dependency: dependency, Err: err}
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDependency.
func (e *DependencyError) Is(target error) bool {
	return target == ErrDependency
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDependency reports whether err is a dependency failure.
func IsDependency(err error) bool {
	return errors.Is(err, ErrDependency)
}
