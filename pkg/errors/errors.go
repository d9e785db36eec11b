package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on the error kind so callers can test against the sentinels
// below with errors.Is regardless of message or wrapped cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// StatusCode maps the error kind to an HTTP status.
func (e *AppError) StatusCode() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Booking error codes
const (
	ErrCodeInvalidTimeRange ErrorCode = iota + 2000
	ErrCodeDuplicateKey
	ErrCodePastDateRejected
	ErrCodeSlotAlreadyBooked
	ErrCodeInvalidStateTransition
	ErrCodeMissingReason
	ErrCodeDoctorOrSlotNotFound
)

var statusByCode = map[ErrorCode]int{
	ErrNotFound:                   http.StatusNotFound,
	ErrBadRequest:                 http.StatusBadRequest,
	ErrUnauthorized:               http.StatusUnauthorized,
	ErrForbidden:                  http.StatusForbidden,
	ErrInternal:                   http.StatusInternalServerError,
	ErrCodeInvalidTimeRange:       http.StatusUnprocessableEntity,
	ErrCodeDuplicateKey:           http.StatusConflict,
	ErrCodePastDateRejected:       http.StatusUnprocessableEntity,
	ErrCodeSlotAlreadyBooked:      http.StatusConflict,
	ErrCodeInvalidStateTransition: http.StatusConflict,
	ErrCodeMissingReason:          http.StatusBadRequest,
	ErrCodeDoctorOrSlotNotFound:   http.StatusNotFound,
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidTimeRange       = &AppError{Code: ErrCodeInvalidTimeRange, Message: "invalid time range"}
	ErrDuplicateKey           = &AppError{Code: ErrCodeDuplicateKey, Message: "duplicate key"}
	ErrPastDateRejected       = &AppError{Code: ErrCodePastDateRejected, Message: "date is in the past"}
	ErrSlotAlreadyBooked      = &AppError{Code: ErrCodeSlotAlreadyBooked, Message: "slot already booked"}
	ErrInvalidStateTransition = &AppError{Code: ErrCodeInvalidStateTransition, Message: "invalid state transition"}
	ErrMissingReason          = &AppError{Code: ErrCodeMissingReason, Message: "cancellation reason is required"}
	ErrDoctorOrSlotNotFound   = &AppError{Code: ErrCodeDoctorOrSlotNotFound, Message: "doctor or slot not found"}
	ErrNotFoundKind           = &AppError{Code: ErrNotFound, Message: "not found"}
	ErrBadRequestKind         = &AppError{Code: ErrBadRequest, Message: "bad request"}
	ErrForbiddenKind          = &AppError{Code: ErrForbidden, Message: "forbidden"}
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func InvalidTimeRange(message string, err error) *AppError {
	return &AppError{Code: ErrCodeInvalidTimeRange, Message: message, Err: err}
}

func DuplicateKey(message string, err error) *AppError {
	return &AppError{Code: ErrCodeDuplicateKey, Message: message, Err: err}
}

func PastDateRejected(message string) *AppError {
	return &AppError{Code: ErrCodePastDateRejected, Message: message}
}

func SlotAlreadyBooked(message string, err error) *AppError {
	return &AppError{Code: ErrCodeSlotAlreadyBooked, Message: message, Err: err}
}

func InvalidStateTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidStateTransition,
		Message: fmt.Sprintf("cannot move booking from %s to %s", from, to),
	}
}

func MissingReason() *AppError {
	return &AppError{Code: ErrCodeMissingReason, Message: "cancellation reason is required"}
}

func DoctorOrSlotNotFound(message string) *AppError {
	return &AppError{Code: ErrCodeDoctorOrSlotNotFound, Message: message}
}
