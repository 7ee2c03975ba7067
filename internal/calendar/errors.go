package calendar

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeConflict ErrorCode = "conflict"
	CodeNotFound ErrorCode = "not_found"
	CodeGone     ErrorCode = "gone"
	CodeOther    ErrorCode = "other"
)

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("calendar %s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func codeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeOther
}

func IsConflict(err error) bool {
	return codeOf(err) == CodeConflict
}

// IsMissing reports whether the provider says the event no longer exists.
// "gone" (deleted) and "not found" are treated the same way by the engine.
func IsMissing(err error) bool {
	c := codeOf(err)
	return c == CodeNotFound || c == CodeGone
}
