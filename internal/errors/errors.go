// Package errors provides a lightweight structured error type (HostError)
// for category-based classification across the pipeline and the serving path.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a HostError for classification.
type ErrorCategory string

const (
	// Pipeline-stage failures
	CategoryUpstream  ErrorCategory = "upstream"  // remote fetch failed (network or non-2xx)
	CategoryArchive   ErrorCategory = "archive"   // tarball could not be parsed
	CategoryBuildTool ErrorCategory = "buildtool" // generator subprocess exited non-zero
	CategoryStorage   ErrorCategory = "storage"   // object store read/write failure

	// Serving-path failures
	CategoryPermission ErrorCategory = "permission" // permission engine deny
	CategoryNotFound   ErrorCategory = "notfound"   // missing tenant/project/artifact

	// Configuration and runtime errors
	CategoryConfig   ErrorCategory = "config"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// HostError is a structured error with category, retryability, and context.
type HostError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for HostError.
type ContextFields map[string]any

// Error implements the error interface.
func (e *HostError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HostError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *HostError) WithContext(key string, value any) *HostError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new HostError.
func New(category ErrorCategory, severity ErrorSeverity, message string) *HostError {
	return &HostError{Category: category, Severity: severity, Message: message}
}

// Wrap creates a new HostError that wraps an existing error.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *HostError {
	return &HostError{Category: category, Severity: severity, Message: message, Cause: err}
}

// WrapRetryable creates a new retryable HostError that wraps an existing error.
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *HostError {
	return &HostError{Category: category, Severity: severity, Message: message, Cause: err, Retryable: true}
}

// IsCategory checks if an error belongs to a specific category anywhere in its chain.
func IsCategory(err error, category ErrorCategory) bool {
	var he *HostError
	if errors.As(err, &he) {
		return he.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var he *HostError
	if errors.As(err, &he) {
		return he.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if no HostError is present in the chain.
func GetCategory(err error) ErrorCategory {
	var he *HostError
	if errors.As(err, &he) {
		return he.Category
	}
	return CategoryInternal
}
