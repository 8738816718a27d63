package assembler

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/research"
)

// ErrPreconditionFailed matches any ContextError of kind
// KindPreconditionFailed via errors.Is.
var ErrPreconditionFailed = errors.New("assembler: precondition failed")

// ErrorKind classifies a ContextError.
type ErrorKind string

const (
	// KindPreconditionFailed means the request itself is invalid. It is
	// detected before any stage runs.
	KindPreconditionFailed ErrorKind = "precondition-failed"

	// KindInconsistentSelection means the selection does not match the
	// research data for one stage.
	KindInconsistentSelection ErrorKind = "inconsistent-selection"

	// KindSourceUnavailable means a research source could not be read.
	KindSourceUnavailable ErrorKind = "source-unavailable"
)

// ContextError reports why a stage context could not be assembled.
type ContextError struct {
	Kind     ErrorKind
	Stage    creative.StageID  // empty for request-level checks
	Category research.Category // empty unless a source failed
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *ContextError) Error() string {
	msg := "assembler: " + string(e.Kind)
	if e.Stage != "" {
		msg += " (" + string(e.Stage) + ")"
	}
	if e.Category != "" {
		msg += fmt.Sprintf(" [%s]", e.Category)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ContextError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPreconditionFailed) hold for precondition
// failures.
func (e *ContextError) Is(target error) bool {
	return target == ErrPreconditionFailed && e.Kind == KindPreconditionFailed
}
