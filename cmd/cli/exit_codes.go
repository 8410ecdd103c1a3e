package cli

import (
	"errors"

	"github.com/tyemirov/fti/internal/environment"
)

const (
	// ExitCodeSuccess is returned when the requested task completed.
	ExitCodeSuccess = 0
	// ExitCodeFailure is returned for failures that carry no specific exit code.
	// It stays clear of the guard codes so scripts can tell them apart.
	ExitCodeFailure = 70
	// ExitCodeUsage is returned for malformed invocations such as unknown flags.
	ExitCodeUsage = 64
)

type exitCoder interface {
	ExitCode() int
}

// UsageError reports a malformed command line.
type UsageError struct {
	Cause error
}

// Error implements the error interface.
func (usageError UsageError) Error() string {
	return usageError.Cause.Error()
}

// Unwrap exposes the underlying cause.
func (usageError UsageError) Unwrap() error {
	return usageError.Cause
}

// ExitCode returns ExitCodeUsage.
func (UsageError) ExitCode() int {
	return ExitCodeUsage
}

// reportedError marks failures whose user-facing explanation has already been printed.
type reportedError struct {
	cause error
}

func (reported reportedError) Error() string {
	return reported.cause.Error()
}

func (reported reportedError) Unwrap() error {
	return reported.cause
}

// ExitCodeFor maps an execution error to the process exit status.
func ExitCodeFor(executionError error) int {
	if executionError == nil {
		return ExitCodeSuccess
	}
	var coded exitCoder
	if errors.As(executionError, &coded) {
		return coded.ExitCode()
	}
	return ExitCodeFailure
}

// ShouldReport reports whether the caller still needs to print executionError.
func ShouldReport(executionError error) bool {
	if executionError == nil {
		return false
	}
	var reported reportedError
	if errors.As(executionError, &reported) {
		return false
	}
	var remediation environment.RemediationError
	return !errors.As(executionError, &remediation)
}
