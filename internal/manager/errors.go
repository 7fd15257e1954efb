package manager

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned when a closed Session is used.
var ErrSessionClosed = errors.New("registry session closed")

// ErrClosed is returned once the Manager has been closed.
var ErrClosed = errors.New("model registry closed")

// ModelLoadError reports that a model could not be constructed. The slot for
// Kind is empty afterwards.
type ModelLoadError struct {
	Kind    Kind
	Variant string
	Err     error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load %s model %q: %v", e.Kind, e.Variant, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// IsModelLoad reports whether err is a ModelLoadError.
func IsModelLoad(err error) bool {
	var e *ModelLoadError
	return errors.As(err, &e)
}

// InferenceError reports a failed inference call for one input.
type InferenceError struct {
	Kind    Kind
	Variant string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s %q inference: %v", e.Kind, e.Variant, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// IsInference reports whether err is an InferenceError.
func IsInference(err error) bool {
	var e *InferenceError
	return errors.As(err, &e)
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (a model
// server binary, a runtime built without its tag) so the HTTP layer can
// return 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}
