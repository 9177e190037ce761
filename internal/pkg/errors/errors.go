package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for each error type
type ErrorCode string

const (
	// General errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeConflict ErrorCode = "CONFLICT"

	// Input file errors
	ErrCodeInvalidFile         ErrorCode = "INVALID_FILE"
	ErrCodeFileTooLarge        ErrorCode = "FILE_TOO_LARGE"
	ErrCodeUnsupportedFileType ErrorCode = "UNSUPPORTED_FILE_TYPE"

	// Record shape errors
	ErrCodeMalformedRecord ErrorCode = "MALFORMED_RECORD"
	ErrCodeSchemaMismatch  ErrorCode = "SCHEMA_MISMATCH"

	// Store errors
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// Queue errors
	ErrCodeQueueError ErrorCode = "QUEUE_ERROR"
)

// Sentinels for errors.Is matching. Any AppError with the same code matches.
var (
	ErrUnsupportedFileType = &AppError{Code: ErrCodeUnsupportedFileType}
	ErrMalformedRecord     = &AppError{Code: ErrCodeMalformedRecord}
	ErrSchemaMismatch      = &AppError{Code: ErrCodeSchemaMismatch}
	ErrStoreUnavailable    = &AppError{Code: ErrCodeStoreUnavailable}
	ErrConflict            = &AppError{Code: ErrCodeConflict}
	ErrFileTooLarge        = &AppError{Code: ErrCodeFileTooLarge}
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds additional context to the error
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with AppError context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func InternalWrap(err error, message string) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

// Input file errors

func InvalidFile(err error, path string) *AppError {
	return Wrap(err, ErrCodeInvalidFile, fmt.Sprintf("cannot read input file %s", path))
}

func FileTooLarge(size, maxSize int64) *AppError {
	return New(ErrCodeFileTooLarge,
		fmt.Sprintf("file size %d exceeds maximum %d", size, maxSize))
}

func UnsupportedFileType(ext string) *AppError {
	if ext == "" {
		ext = "(none)"
	}
	return New(ErrCodeUnsupportedFileType,
		fmt.Sprintf("unsupported file type: %s", ext)).WithDetails("extension", ext)
}

// Record shape errors

func MalformedRecord(message string) *AppError {
	return New(ErrCodeMalformedRecord, message)
}

func SchemaMismatch(path string) *AppError {
	return New(ErrCodeSchemaMismatch,
		fmt.Sprintf("required key %s not found", path)).WithDetails("path", path)
}

// Store errors

func StoreUnavailable(err error, operation string) *AppError {
	return Wrap(err, ErrCodeStoreUnavailable, fmt.Sprintf("store %s failed", operation)).
		WithDetails("operation", operation)
}

func QueueError(err error, message string) *AppError {
	return Wrap(err, ErrCodeQueueError, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether any AppError in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &AppError{Code: code})
}
