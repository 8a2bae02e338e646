package errors

import (
	"errors"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	if err.Cause != originalErr {
		t.Errorf("Cause = %v, want %v", err.Cause, originalErr)
	}

	errorMsg := err.Error()
	if !contains(errorMsg, "original error") {
		t.Errorf("Error() should contain cause, got: %v", errorMsg)
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestNewJoinError_Classification(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name       string
		code       ErrorCode
		wantCode   ErrorCode
		wantStatus int
	}{
		{"token invalid", ErrCodeJoinTokenInvalid, ErrCodeJoinTokenInvalid, 401},
		{"network", ErrCodeJoinNetwork, ErrCodeJoinNetwork, 504},
		{"anything else collapses to generic", ErrCodeInternal, ErrCodeJoinGeneric, 502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewJoinError(tt.code, cause)
			if err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", err.Code, tt.wantCode)
			}
			if err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %v, want %v", err.HTTPStatus, tt.wantStatus)
			}
			if !errors.Is(err, cause) {
				t.Error("join error should wrap its cause")
			}
		})
	}
}

func TestNewCredentialError(t *testing.T) {
	err := NewCredentialError("missing token", errors.New("backend said no"))
	if err.Code != ErrCodeCredential {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeCredential)
	}
	if !contains(err.Error(), "missing token") {
		t.Errorf("Error() should carry detail, got %v", err.Error())
	}
}

func TestNewSubscribeError_CarriesParticipant(t *testing.T) {
	err := NewSubscribeError("remote-7", errors.New("ice failed"))
	if err.Context["participant"] != "remote-7" {
		t.Errorf("Context[participant] = %v, want remote-7", err.Context["participant"])
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInvalidInput, "test", 400)
	regularErr := errors.New("regular error")

	if !IsAppError(appErr) {
		t.Error("IsAppError() should return true for AppError")
	}
	if IsAppError(regularErr) {
		t.Error("IsAppError() should return false for regular error")
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInvalidInput, "test", 400)

	result := GetAppError(appErr)
	if result != appErr {
		t.Errorf("GetAppError() = %v, want %v", result, appErr)
	}

	if GetAppError(nil) != nil {
		t.Error("GetAppError(nil) should be nil")
	}
	if GetAppError(errors.New("plain")) != nil {
		t.Error("GetAppError(plain) should be nil")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no device", NewNoDeviceError(), "no camera or microphone was found on this device"},
		{"acquisition keeps its own message", NewMediaAcquisitionError("camera is busy, close other apps using it", nil), "camera is busy, close other apps using it"},
		{"network", NewJoinError(ErrCodeJoinNetwork, errors.New("timeout")), "connection to the call service was lost, check your network and retry"},
		{"token", NewJoinError(ErrCodeJoinTokenInvalid, nil), "your call session expired, please rejoin from the appointment page"},
		{"plain error gets generic line", errors.New("panic: stack"), "something went wrong with the call, please try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchSubstring(s, substr)
}

func searchSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
