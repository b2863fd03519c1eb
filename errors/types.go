package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Settings errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigIncomplete ErrorCode = "CONFIG_INCOMPLETE"

	// Sync cycle errors
	ErrCodeNodeResolution     ErrorCode = "NODE_RESOLUTION"
	ErrCodeNodeNotFound       ErrorCode = "NODE_NOT_FOUND"
	ErrCodeTransmissionFailed ErrorCode = "TRANSMISSION_FAILED"

	// Durable state errors
	ErrCodeStoreAccess ErrorCode = "STORE_ACCESS"

	// Daemon errors
	ErrCodeDaemonUnavailable ErrorCode = "DAEMON_UNAVAILABLE"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// MarksyncError represents a structured error with context
type MarksyncError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *MarksyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *MarksyncError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *MarksyncError) WithDetail(key string, value interface{}) *MarksyncError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *MarksyncError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new MarksyncError
func New(code ErrorCode, message string) *MarksyncError {
	return &MarksyncError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a MarksyncError
func Wrap(err error, code ErrorCode, message string) *MarksyncError {
	return &MarksyncError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific MarksyncError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	msErr, ok := err.(*MarksyncError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if msErr.Code == code {
		return true
	}
	if msErr.Cause != nil {
		return Is(msErr.Cause, code)
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	msErr, ok := err.(*MarksyncError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return msErr.Code
}
