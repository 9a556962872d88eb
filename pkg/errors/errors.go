// Package errors defines common error types for the application.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown       = "UNKNOWN_ERROR"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeDatasetParse  = "DATASET_PARSE"
	CodeEmptyDataset  = "EMPTY_DATASET"
	CodeMiningFailed  = "MINING_FAILED"
	CodeNotFound      = "NOT_FOUND"
	CodeStorageError  = "STORAGE_ERROR"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeTimeout       = "TIMEOUT"
	CodeCancelled     = "CANCELLED"
	CodeConfigError   = "CONFIG_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrInvalidInput  = New(CodeInvalidInput, "invalid input")
	ErrDatasetParse  = New(CodeDatasetParse, "dataset parse error")
	ErrEmptyDataset  = New(CodeEmptyDataset, "empty dataset")
	ErrMiningFailed  = New(CodeMiningFailed, "mining failed")
	ErrNotFound      = New(CodeNotFound, "resource not found")
	ErrStorageError  = New(CodeStorageError, "storage error")
	ErrDatabaseError = New(CodeDatabaseError, "database error")
	ErrTimeout       = New(CodeTimeout, "operation timeout")
	ErrCancelled     = New(CodeCancelled, "operation cancelled")
	ErrConfigError   = New(CodeConfigError, "configuration error")
)

// IsInvalidInput checks if the error is an input validation error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsDatasetParse checks if the error is a dataset parse error.
func IsDatasetParse(err error) bool {
	return errors.Is(err, ErrDatasetParse)
}

// IsEmptyDataset checks if the error is an empty dataset error.
func IsEmptyDataset(err error) bool {
	return errors.Is(err, ErrEmptyDataset)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDatabaseError checks if the error is a database error.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabaseError)
}

// IsStorageError checks if the error is a storage error.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageError)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
