package apperr

import (
	"errors"
	"fmt"
)

// Code — стабильный код ошибки. Клиенты ветвятся по коду, текст локализуется.
type Code string

const (
	CodeAccessDenied    Code = "ACCESS_DENIED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeDuplicateName   Code = "DUPLICATE_NAME"
	CodeInvalidOwner    Code = "INVALID_OWNER"
	CodeInvalidMove     Code = "INVALID_MOVE"
	CodeNothingToUpdate Code = "NOTHING_TO_UPDATE"
	CodeConflict        Code = "CONFLICT"
)

// Error — ошибка прикладного уровня с кодом и идентификатором локализации
type Error struct {
	Code    Code
	ErrorID string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Code, e.ErrorID, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Code, e.ErrorID)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, errorID string) *Error {
	return &Error{Code: code, ErrorID: errorID}
}

func Wrap(code Code, errorID string, err error) *Error {
	return &Error{Code: code, ErrorID: errorID, Err: err}
}

func AccessDenied(errorID string) *Error {
	return New(CodeAccessDenied, errorID)
}

func NotFound(what string) *Error {
	return New(CodeNotFound, "notfound."+what)
}

// CodeOf возвращает код ошибки, либо пустую строку для неприкладных ошибок
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
