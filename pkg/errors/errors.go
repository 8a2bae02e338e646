package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeRateLimit            ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCodeCredential           ErrorCode = "CREDENTIAL_ERROR"
	ErrCodeNoDevice             ErrorCode = "NO_DEVICE"
	ErrCodeMediaAcquisition     ErrorCode = "MEDIA_ACQUISITION_FAILED"
	ErrCodeJoinTokenInvalid     ErrorCode = "JOIN_TOKEN_INVALID"
	ErrCodeJoinNetwork          ErrorCode = "JOIN_NETWORK_FAILED"
	ErrCodeJoinGeneric          ErrorCode = "JOIN_FAILED"
	ErrCodeSubscribe            ErrorCode = "SUBSCRIBE_FAILED"
	ErrCodeUnexpectedDisconnect ErrorCode = "UNEXPECTED_DISCONNECT"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// NewCredentialError marks a failed token/session setup. Terminal: no
// retry without user action.
func NewCredentialError(detail string, cause error) *AppError {
	return WrapError(cause, ErrCodeCredential, fmt.Sprintf("session credential unavailable: %s", detail), http.StatusBadGateway)
}

// NewNoDeviceError marks the absence of any capture device.
func NewNoDeviceError() *AppError {
	return NewAppError(ErrCodeNoDevice, "no camera or microphone detected", http.StatusPreconditionFailed)
}

// NewMediaAcquisitionError marks a permission-denied or hardware-busy
// failure. The message names the likely cause for the user.
func NewMediaAcquisitionError(message string, cause error) *AppError {
	return WrapError(cause, ErrCodeMediaAcquisition, message, http.StatusPreconditionFailed)
}

// NewJoinError classifies a failed join attempt.
func NewJoinError(code ErrorCode, cause error) *AppError {
	switch code {
	case ErrCodeJoinTokenInvalid:
		return WrapError(cause, code, "call token was rejected, request a new one", http.StatusUnauthorized)
	case ErrCodeJoinNetwork:
		return WrapError(cause, code, "could not reach the call service, check your connection", http.StatusGatewayTimeout)
	default:
		return WrapError(cause, ErrCodeJoinGeneric, "could not join the call", http.StatusBadGateway)
	}
}

// NewSubscribeError marks a per-remote-track subscribe failure. Logged,
// non-fatal: that one track stays unavailable.
func NewSubscribeError(participant string, cause error) *AppError {
	return WrapError(cause, ErrCodeSubscribe, "could not receive a participant's media", http.StatusBadGateway).
		WithContext("participant", participant)
}

// NewUnexpectedDisconnectError marks a provider disconnect with no
// automatic reconnection.
func NewUnexpectedDisconnectError(cause error) *AppError {
	return WrapError(cause, ErrCodeUnexpectedDisconnect, "the call was disconnected", http.StatusBadGateway)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	// Try to unwrap
	type unwrapper interface {
		Unwrap() error
	}

	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}

	return nil
}

// UserMessage returns the single human-readable line shown to the user
// for a terminal error. It distinguishes connectivity, permission and
// server-side causes and never exposes a stack trace.
func UserMessage(err error) string {
	appErr := GetAppError(err)
	if appErr == nil {
		return "something went wrong with the call, please try again"
	}
	switch appErr.Code {
	case ErrCodeNoDevice:
		return "no camera or microphone was found on this device"
	case ErrCodeMediaAcquisition:
		return appErr.Message
	case ErrCodeCredential:
		return "the call could not be set up, please try again from the appointment page"
	case ErrCodeJoinTokenInvalid:
		return "your call session expired, please rejoin from the appointment page"
	case ErrCodeJoinNetwork, ErrCodeUnexpectedDisconnect:
		return "connection to the call service was lost, check your network and retry"
	default:
		return appErr.Message
	}
}
