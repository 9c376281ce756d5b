package response

import (
	"errors"
	"fmt"
	"net/http"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST     ErrCode = "REQUEST_FAILED"
	BAD_REQUEST        ErrCode = "FAILED_TO_DECODE"
	INVALID_ARGUMENT   ErrCode = "BAD_REQUEST"
	NOT_FOUND          ErrCode = "NOT_FOUND"
	PROVIDER_NOT_FOUND ErrCode = "PROVIDER_NOT_FOUND"
	BOOKING_NOT_FOUND  ErrCode = "BOOKING_NOT_FOUND"
	INVALID_DURATION   ErrCode = "INVALID_DURATION"
	LOCKED             ErrCode = "LOCKED"
	CONFLICT           ErrCode = "CONFLICT"
	SLOT_NOT_AVAILABLE ErrCode = "SLOT_NOT_AVAILABLE"
	ALREADY_TERMINAL   ErrCode = "ALREADY_TERMINAL"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("resource not found")
	ErrLocked           = errors.New("resource is locked")
	ErrConflict         = errors.New("conflict")
	ErrSlotNotAvailable = errors.New("slot is not available")
	ErrInvalidDuration  = errors.New("duration must be positive")

	ErrProviderNotFound  = fmt.Errorf("provider: %w", ErrNotFound)
	ErrBookingNotFound   = fmt.Errorf("booking: %w", ErrNotFound)
	ErrAlreadyTerminal   = fmt.Errorf("booking is completed or canceled: %w", ErrConflict)
	ErrAlreadyNotified   = fmt.Errorf("notification already sent: %w", ErrConflict)
	ErrInvalidSchedule   = fmt.Errorf("invalid schedule: %w", ErrBadRequest)
	ErrInvalidAuthorRole = fmt.Errorf("invalid author role: %w", ErrBadRequest)
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

// FromError maps a service error to its HTTP status and error body. Errors
// outside the sentinel set become 500 with fallback as the message.
func FromError(err error, fallback string) (int, Response) {
	switch {
	case errors.Is(err, ErrLocked):
		return http.StatusLocked, Error(string(LOCKED), "provider is busy, try again")
	case errors.Is(err, ErrProviderNotFound):
		return http.StatusNotFound, Error(string(PROVIDER_NOT_FOUND), "provider not found")
	case errors.Is(err, ErrBookingNotFound):
		return http.StatusNotFound, Error(string(BOOKING_NOT_FOUND), "booking not found")
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, Error(string(NOT_FOUND), "resource not found")
	case errors.Is(err, ErrSlotNotAvailable):
		return http.StatusConflict, Error(string(SLOT_NOT_AVAILABLE), "slot is not available")
	case errors.Is(err, ErrAlreadyTerminal):
		return http.StatusConflict, Error(string(ALREADY_TERMINAL), "booking is already completed or canceled")
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, Error(string(CONFLICT), "conflict")
	case errors.Is(err, ErrInvalidDuration):
		return http.StatusBadRequest, Error(string(INVALID_DURATION), "duration must be positive")
	case errors.Is(err, ErrInvalidSchedule):
		return http.StatusBadRequest, Error(string(INVALID_ARGUMENT), "invalid schedule")
	case errors.Is(err, ErrInvalidAuthorRole):
		return http.StatusBadRequest, Error(string(INVALID_ARGUMENT), "role must be provider or patient")
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, Error(string(INVALID_ARGUMENT), "bad request")
	}

	return http.StatusInternalServerError, Error(string(FAILED_REQUEST), fallback)
}
