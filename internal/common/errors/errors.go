// Package errors provides the closed error taxonomy of the execution
// pipeline. Each flow step maps to exactly one code; codes double as metric
// labels and API error payloads.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTemplateNotFound    ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTriggerTypeMismatch ErrorCode = "TRIGGER_TYPE_MISMATCH"
	ErrCodeCompletionFailed    ErrorCode = "COMPLETION_FAILED"
	ErrCodeCompletionEmpty     ErrorCode = "COMPLETION_EMPTY"
	ErrCodeDispatchFailed      ErrorCode = "DISPATCH_FAILED"
	ErrCodeTemplateListFailed  ErrorCode = "TEMPLATE_LIST_FAILED"
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnknown             ErrorCode = "UNKNOWN_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewTemplateNotFoundError creates a non-retryable lookup error.
func NewTemplateNotFoundError(templateID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Prompt template not found",
		Details:   fmt.Sprintf("templateId: %d", templateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTriggerTypeMismatchError creates a non-retryable trigger-type error.
func NewTriggerTypeMismatchError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTriggerTypeMismatch,
		Message:   "Template is not configured for webhook triggers",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompletionFailedError wraps an upstream completion failure. A full
// restart by the caller is the only retry path, so it is marked retryable.
func NewCompletionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionFailed,
		Message:   "Completion request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompletionEmptyError creates an error for a successful completion call
// that produced no content.
func NewCompletionEmptyError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionEmpty,
		Message:   "No response generated from OpenAI",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDispatchFailedError wraps a destination delivery failure.
func NewDispatchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDispatchFailed,
		Message:   "Destination webhook delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateListFailedError wraps a repository listing failure that aborts a
// whole batch run.
func NewTemplateListFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateListFailed,
		Message:   "Failed to fetch scheduled templates",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable request validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
