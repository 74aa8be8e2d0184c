package tool

import (
	"errors"
	"fmt"
)

// ErrAlreadyRegistered indicates a duplicate tool name.
type ErrAlreadyRegistered struct {
	Name string
}

func (e *ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("tool: %q is already registered", e.Name)
}

// ErrNotFound indicates a tool use named a tool with no registered handler.
type ErrNotFound struct {
	Name string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("tool: no handler registered for %q", e.Name)
}

// FailureKind classifies handler failures so hosts and tests can branch on
// them without string matching.
type FailureKind string

const (
	FailureFileNotFound     FailureKind = "file_not_found"
	FailurePermissionDenied FailureKind = "permission_denied"
	FailureNonZeroExit      FailureKind = "non_zero_exit"
	FailureTimeout          FailureKind = "timeout"
	FailureCancelled        FailureKind = "cancelled"
	FailureInvalidInput     FailureKind = "invalid_input"
)

// Failure is a typed tool execution failure. Handlers return it (or any
// other error, which is treated as untyped); the executor records it in the
// tool result and the task continues.
type Failure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Failf builds a Failure with a formatted detail message.
func Failf(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the FailureKind from an error chain, or "" for untyped
// errors.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
