// Package errors provides structured error types for the Driftline system.
// All errors include a category, code, and message for consistent error
// handling across pipeline stages and supporting services.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryParse    ErrorCategory = "PARSE"
	ErrCategoryDiff     ErrorCategory = "DIFF"
	ErrCategoryGraph    ErrorCategory = "GRAPH"
	ErrCategoryPlan     ErrorCategory = "PLAN"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryHistory  ErrorCategory = "HISTORY"
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Parse codes
	CodeLexFailed        = "LEX_FAILED"
	CodeEmptyInput       = "EMPTY_INPUT"
	CodeUnterminatedText = "UNTERMINATED_TEXT"

	// Graph codes
	CodeCircularDependency = "CIRCULAR_DEPENDENCY"
	CodeUnknownNode        = "UNKNOWN_NODE"

	// Plan codes
	CodeNotValidated    = "NOT_VALIDATED"
	CodeInvalidState    = "INVALID_STATE"
	CodePlanInvalid     = "PLAN_INVALID"
	CodeRollbackBlocked = "ROLLBACK_BLOCKED"

	// Storage codes
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodePutFailed      = "PUT_FAILED"
	CodeGetFailed      = "GET_FAILED"
	CodeBadEnvelope    = "BAD_ENVELOPE"

	// History codes
	CodeBuildNotFound = "BUILD_NOT_FOUND"
	CodeRegisterFail  = "REGISTER_FAILED"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// DriftlineError is the structured error type used throughout the system.
type DriftlineError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *DriftlineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *DriftlineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *DriftlineError) Is(target error) bool {
	var t *DriftlineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new DriftlineError.
func New(category ErrorCategory, code, message string) *DriftlineError {
	return &DriftlineError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new DriftlineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *DriftlineError {
	return &DriftlineError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DriftlineError) WithDetails(details map[string]interface{}) *DriftlineError {
	cp := *e
	cp.Details = details
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a DriftlineError.
func GetCategory(err error) ErrorCategory {
	var de *DriftlineError
	if errors.As(err, &de) {
		return de.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a DriftlineError.
func GetCode(err error) string {
	var de *DriftlineError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Convenience constructors for common errors.

func NewParseError(code, message string, cause error) *DriftlineError {
	return Wrap(ErrCategoryParse, code, message, cause)
}

func NewGraphError(code, message string) *DriftlineError {
	return New(ErrCategoryGraph, code, message)
}

func NewPlanError(code, message string) *DriftlineError {
	return New(ErrCategoryPlan, code, message)
}

func NewStorageError(code, message string, cause error) *DriftlineError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewHistoryError(code, message string, cause error) *DriftlineError {
	return Wrap(ErrCategoryHistory, code, message, cause)
}

func NewConfigError(message string) *DriftlineError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

func NewInternalError(message string, cause error) *DriftlineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
