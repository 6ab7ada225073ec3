package utils

import "net/http"

const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeInternal    = "INTERNAL_ERROR"
	ErrCodeConflict    = "CONFLICT"
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

var statusByCode = map[string]int{
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeNotFound:    http.StatusNotFound,
	ErrCodeConflict:    http.StatusConflict,
	ErrCodeUnavailable: http.StatusServiceUnavailable,
}

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Status is the HTTP status for the error code; unknown codes are 500.
func (e *AppError) Status() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func NewAppError(code, message string, details ...string) *AppError {
	err := &AppError{Code: code, Message: message}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}
