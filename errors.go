package rawhidhub

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a structured Error, mirroring the taxonomy this
// hub's error-handling design settled on: most failures here are
// non-fatal (skip-and-continue), with only transport initialization
// treated as fatal.
type ErrorCode string

const (
	ErrCodeTransportInit     ErrorCode = "transport init failure"
	ErrCodeEnumeration       ErrorCode = "enumeration failure"
	ErrCodeOpen              ErrorCode = "open failure"
	ErrCodeRead              ErrorCode = "read failure"
	ErrCodeWrite             ErrorCode = "write failure"
	ErrCodeAllocatorFull     ErrorCode = "allocator full"
	ErrCodeInvalidReport     ErrorCode = "invalid report"
	ErrCodeAlreadyRunning    ErrorCode = "hub already running"
	ErrCodeNotRunning        ErrorCode = "hub not running"
)

// Error is a structured hub error with enough context to log or compare
// programmatically via errors.Is/errors.As.
type Error struct {
	Op    string    // operation that failed, e.g. "Serve", "discovery.Open"
	Path  string    // device path, if applicable
	Code  ErrorCode // high-level category
	Msg   string    // human-readable message
	Inner error     // wrapped error, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Op != "" && e.Path != "":
		return fmt.Sprintf("rawhidhub: %s (op=%s path=%s)", msg, e.Op, e.Path)
	case e.Op != "":
		return fmt.Sprintf("rawhidhub: %s (op=%s)", msg, e.Op)
	default:
		return fmt.Sprintf("rawhidhub: %s", msg)
	}
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison by ErrorCode, including against the
// legacy sentinel HubError values below.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if he, ok := target.(HubError); ok {
		return e.Code == ErrorCode(he)
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// HubError is a legacy sentinel error type, kept so call sites that
// compare against a bare string error (rather than unwrapping a
// structured *Error) still work.
type HubError string

func (e HubError) Error() string { return string(e) }

const (
	ErrTransportInit  HubError = HubError(ErrCodeTransportInit)
	ErrAllocatorFull  HubError = HubError(ErrCodeAllocatorFull)
	ErrAlreadyRunning HubError = HubError(ErrCodeAlreadyRunning)
	ErrNotRunning     HubError = HubError(ErrCodeNotRunning)
)

// NewError constructs a structured Error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps inner with hub context, preserving its code if it is
// already a structured *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var existing *Error
	if errors.As(inner, &existing) {
		return &Error{Op: op, Path: existing.Path, Code: existing.Code, Msg: existing.Msg, Inner: existing.Inner}
	}
	return &Error{Op: op, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a structured Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Code == code
	}
	return false
}
