package core

import (
	"errors"
	"fmt"
)

// Error codes shared by the tool router, guardrails and control loop.
const (
	CodeInvalidArg             = "INVALID_ARG"
	CodeUnknownTool            = "UNKNOWN_TOOL"
	CodeIndexNotConfigured     = "INDEX_NOT_CONFIGURED"
	CodeDocsNotConfigured      = "DOCS_NOT_CONFIGURED"
	CodeMissingProfile         = "MISSING_PROFILE"
	CodeGuardCitationRequired  = "GUARD_CITATION_REQUIRED"
	CodeGuardCitationUnknownID = "GUARD_CITATION_UNKNOWN_ID"
	CodeParseError             = "PARSE_ERROR"
	CodeMaxStepsExceeded       = "MAX_STEPS_EXCEEDED"
	CodeExecution              = "EXECUTION_ERROR"
)

// Sentinels for errors.Is matching. Two *Error values match when their codes
// are equal, regardless of message.
var (
	ErrInvalidArg             = &Error{Code: CodeInvalidArg}
	ErrUnknownTool            = &Error{Code: CodeUnknownTool}
	ErrIndexNotConfigured     = &Error{Code: CodeIndexNotConfigured}
	ErrDocsNotConfigured      = &Error{Code: CodeDocsNotConfigured}
	ErrMissingProfile         = &Error{Code: CodeMissingProfile}
	ErrGuardCitationRequired  = &Error{Code: CodeGuardCitationRequired}
	ErrGuardCitationUnknownID = &Error{Code: CodeGuardCitationUnknownID}
	ErrParse                  = &Error{Code: CodeParseError}
	ErrMaxStepsExceeded       = &Error{Code: CodeMaxStepsExceeded}
)

// Error is a tagged error carrying one of the codes above.
type Error struct {
	Code    string `json:"code"`              // Error code for categorization
	Source  string `json:"source,omitempty"`  // Tool or component that failed
	Message string `json:"message"`           // Error message
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Source != "" {
		return fmt.Sprintf("%s in %s: %s", e.Code, e.Source, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates an Error with a formatted message.
func NewError(code, source, format string, args ...any) *Error {
	return &Error{Code: code, Source: source, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error around a cause.
func WrapError(code, source string, err error) *Error {
	return &Error{Code: code, Source: source, Message: err.Error(), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
