package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrConfiguration  ErrorType = "CONFIGURATION_ERROR"
	ErrInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrUpstreamTool   ErrorType = "UPSTREAM_TOOL_ERROR"
	ErrModelStream    ErrorType = "MODEL_STREAM_ERROR"
	ErrRiskReject     ErrorType = "RISK_REJECT"
	ErrAuthFailed     ErrorType = "AUTH_FAILED"
	ErrRateLimited    ErrorType = "RATE_LIMITED"
	ErrInternal       ErrorType = "INTERNAL_ERROR"
)

// GenericMessage is the only failure text the chat endpoint ever returns.
const GenericMessage = "Internal server error"

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
	}
}

func NewConfiguration(msg string) *AppError {
	return New(ErrConfiguration, msg, nil)
}

func NewInvalidRequest(msg string, cause error) *AppError {
	return New(ErrInvalidRequest, msg, cause)
}

func NewUpstreamTool(msg string, cause error) *AppError {
	return New(ErrUpstreamTool, msg, cause)
}

func NewModelStream(msg string, cause error) *AppError {
	return New(ErrModelStream, msg, cause)
}

func NewRiskReject(msg string) *AppError {
	return New(ErrRiskReject, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// Is reports whether err carries an AppError of the given type.
func Is(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrRiskReject:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
