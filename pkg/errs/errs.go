package errs

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the HTTP layer can map them to status codes
// without inspecting message text.
type Kind int

const (
	KindNotFound Kind = iota
	KindInvalidState
	KindValidationFailed
	KindAdapterFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindValidationFailed:
		return "validation_failed"
	case KindAdapterFailure:
		return "adapter_failure"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func ValidationFailed(format string, args ...interface{}) error {
	return &Error{Kind: KindValidationFailed, Msg: fmt.Sprintf(format, args...)}
}

func AdapterFailure(msg string, err error) error {
	return &Error{Kind: KindAdapterFailure, Msg: msg, Err: err}
}

func kindOf(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func IsNotFound(err error) bool         { return kindOf(err, KindNotFound) }
func IsInvalidState(err error) bool     { return kindOf(err, KindInvalidState) }
func IsValidationFailed(err error) bool { return kindOf(err, KindValidationFailed) }
func IsAdapterFailure(err error) bool   { return kindOf(err, KindAdapterFailure) }
