package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeNotFound         Code = "NOT_FOUND"
	CodeIntegrity        Code = "INTEGRITY_VIOLATION"
	CodeStateConflict    Code = "STATE_CONFLICT"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeNotImplemented   Code = "NOT_IMPLEMENTED"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Severity tells the presentation layer how to surface an error.
type Severity string

const (
	SeverityError         Severity = "error"
	SeverityInformational Severity = "informational"
)

type Metadata struct {
	Severity      Severity
	Fatal         bool
	ExitCode      int
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Severity:      SeverityError,
		ExitCode:      2,
		PublicMessage: "validation failed",
	},
	CodeNotFound: {
		Severity:      SeverityError,
		ExitCode:      1,
		PublicMessage: "record not found",
	},
	CodeIntegrity: {
		Severity:      SeverityError,
		ExitCode:      1,
		PublicMessage: "integrity violation",
	},
	CodeStateConflict: {
		Severity:      SeverityError,
		ExitCode:      1,
		PublicMessage: "state transition disallowed",
	},
	CodeStoreUnavailable: {
		Severity:      SeverityError,
		Fatal:         true,
		ExitCode:      1,
		PublicMessage: "data store unavailable",
	},
	CodeNotImplemented: {
		Severity:      SeverityInformational,
		ExitCode:      0,
		PublicMessage: "not implemented yet",
	},
	CodeInternal: {
		Severity:      SeverityError,
		Fatal:         true,
		ExitCode:      1,
		PublicMessage: "internal error",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// NotImplemented builds the informational error returned by stubbed actions.
func NotImplemented(name string) *Error {
	return New(CodeNotImplemented, fmt.Sprintf("'%s' is not implemented yet.", name))
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the outermost typed error, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	for err != nil {
		var typed *Error
		if !stdErrors.As(err, &typed) {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}

// IsInformational reports whether err should be shown as a notice instead of a failure.
func IsInformational(err error) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return MetadataFor(typed.Code()).Severity == SeverityInformational
}
