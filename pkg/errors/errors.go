package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures at the boundaries defined by the gateway
type ErrorType string

const (
	// ErrorTypeDecode indicates a malformed task or verdict payload
	ErrorTypeDecode ErrorType = "DECODE"

	// ErrorTypePolicyEvaluation indicates an external-call failure inside a check
	ErrorTypePolicyEvaluation ErrorType = "POLICY_EVALUATION"

	// ErrorTypeTimeout indicates no verdict arrived within the deadline
	ErrorTypeTimeout ErrorType = "TIMEOUT"

	// ErrorTypeTransport indicates a connect/publish/subscribe failure
	ErrorTypeTransport ErrorType = "TRANSPORT"

	// ErrorTypeValidation indicates a malformed caller request
	ErrorTypeValidation ErrorType = "VALIDATION"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// NewDecodeError creates a new decode error
func NewDecodeError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeDecode,
		Message: message,
		Err:     err,
	}
}

// NewPolicyEvaluationError creates a new policy evaluation error
func NewPolicyEvaluationError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypePolicyEvaluation,
		Message: message,
		Err:     err,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeTimeout,
		Message: message,
	}
}

// NewTransportError creates a new transport error
func NewTransportError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}
