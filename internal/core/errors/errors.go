package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeDuplicateName        ErrorCode = "DUPLICATE_NAME"
	CodeDuplicateRelease     ErrorCode = "DUPLICATE_RELEASE"
	CodeDuplicateRename      ErrorCode = "DUPLICATE_RENAME"
	CodeForeignScopeMismatch ErrorCode = "FOREIGN_SCOPE_MISMATCH"
	CodeUnknownVersion       ErrorCode = "UNKNOWN_VERSION"
	CodeUnknownRelease       ErrorCode = "UNKNOWN_RELEASE"
	CodeAmbiguousMapping     ErrorCode = "AMBIGUOUS_MAPPING"
	CodeValidationError      ErrorCode = "VALIDATION_ERROR"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxOperation = "operation"
	CtxVersion   = "version"
	CtxRelease   = "release"
	CtxSystem    = "system"
	CtxSymbol    = "symbol"
	CtxTable     = "table"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Newf(code ErrorCode, format string, args ...interface{}) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a context value to err, promoting plain errors to CodeInternal.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or "" when err is not a DomainError.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
