package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for the failure classes the API distinguishes.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrUnprocessable  = errors.New("unprocessable")
	ErrServiceUnavail = errors.New("service unavailable")
)

// kind describes how a sentinel is reported to clients. A kind with an empty
// message echoes the error text; the others hide it behind a fixed message.
type kind struct {
	sentinel error
	code     string
	status   int
	message  string
}

var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found"},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict, "resource already exists"},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, ""},
	{ErrConflict, "CONFLICT", http.StatusConflict, "resource was modified concurrently"},
	{ErrUnprocessable, "UNPROCESSABLE", http.StatusUnprocessableEntity, ""},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "a dependency is unavailable"},
}

const (
	internalCode    = "INTERNAL_ERROR"
	internalMessage = "an internal error occurred"
)

// AppError is an error with a client-facing code, message and HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
		}
	}
	return &AppError{Code: internalCode, Message: message, Status: http.StatusInternalServerError, Err: sentinel}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return newAppError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// AlreadyExists reports a uniqueness violation on field.
func AlreadyExists(resource, field, value string) *AppError {
	return newAppError(ErrAlreadyExists, fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// InvalidInput reports a malformed request.
func InvalidInput(message string) *AppError {
	return newAppError(ErrInvalidInput, message)
}

// Conflict reports a lost optimistic-concurrency race.
func Conflict(message string) *AppError {
	return newAppError(ErrConflict, message)
}

// Unprocessable reports well-formed input the domain rejects.
func Unprocessable(message string) *AppError {
	return newAppError(ErrUnprocessable, message)
}

// Unavailable reports a failing downstream dependency; cause stays reachable
// through errors.Is.
func Unavailable(message string, cause error) *AppError {
	e := newAppError(ErrServiceUnavail, message)
	e.Err = errors.Join(ErrServiceUnavail, cause)
	return e
}

// Classify returns the status, code and client message for err. AppErrors
// report their own fields, wrapped sentinels map through the kind table and
// anything else is an internal error.
func Classify(err error) (status int, code, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Code, appErr.Message
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			msg := k.message
			if msg == "" {
				msg = err.Error()
			}
			return k.status, k.code, msg
		}
	}
	return http.StatusInternalServerError, internalCode, internalMessage
}

// HTTPStatus returns the HTTP status for err.
func HTTPStatus(err error) int {
	status, _, _ := Classify(err)
	return status
}
