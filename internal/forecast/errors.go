package forecast

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInput           ErrorKind = "input_error"
	KindDataUnavailable ErrorKind = "data_unavailable"
	KindInternal        ErrorKind = "internal_error"
)

// WarningPartialData prefixes non-fatal warnings on successful results.
const WarningPartialData = "partial_data"

var (
	ErrInput           = errors.New("invalid forecast request")
	ErrDataUnavailable = errors.New("forecast data unavailable")
	ErrInternal        = errors.New("internal forecast error")
)

// Error is the typed failure the engine converts into a failed result.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrInput:
		return e.Kind == KindInput
	case ErrDataUnavailable:
		return e.Kind == KindDataUnavailable
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

func inputError(format string, args ...any) *Error {
	return &Error{Kind: KindInput, Message: fmt.Sprintf(format, args...)}
}

func internalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf classifies any error; unknown errors are internal.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

func partialData(format string, args ...any) string {
	return WarningPartialData + ": " + fmt.Sprintf(format, args...)
}
