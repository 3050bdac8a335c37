package service

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ValidationError ErrorKind = "validation"
	StateError      ErrorKind = "state"
	IntegrityError  ErrorKind = "integrity"
	DownstreamError ErrorKind = "downstream"
)

// Коды причин для состояний и целостности. Коды правил - RuleCode.
const (
	CodeInvalidStatus    = "invalid_status"
	CodeNotFound         = "not_found"
	CodeNotPending       = "not_pending"
	CodeMissingParameter = "missing_parameter"
	CodeForbidden        = "forbidden"
	CodeMalformedDate    = "malformed_date"
	CodeCalendarFailed   = "calendar_failed"
	CodeNotifyFailed     = "notification_failed"
)

// Error - ошибка с видом и стабильным кодом, сообщение показывается пользователю
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func wrapError(kind ErrorKind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf возвращает вид ошибки или пустую строку для чужих ошибок
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// CodeOf возвращает стабильный код причины
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
