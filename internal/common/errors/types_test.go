package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name: "basic error",
			appError: &AppError{
				Type:    ErrTypeConfig,
				Message: "configuration is invalid",
			},
			want: "config: configuration is invalid",
		},
		{
			name: "error with code",
			appError: &AppError{
				Type:    ErrTypeFormat,
				Message: "bad routing table",
				Code:    "FMT001",
			},
			want: "format: bad routing table: code=FMT001",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeCommunication,
				Message: "send failed",
				Cause:   errors.New("connection refused"),
			},
			want: "communication: send failed: cause=connection refused",
		},
		{
			name: "context keys are sorted",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "entry rejected",
				Context: map[string]interface{}{
					"source": "C1",
					"cost":   0,
				},
			},
			want: "validation: entry rejected: context={cost=0, source=C1}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			if got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	appError := CommunicationError("send failed", cause)

	if got := appError.Unwrap(); got != cause {
		t.Errorf("AppError.Unwrap() = %v, want %v", got, cause)
	}
	if !errors.Is(appError, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		err     *AppError
		errType ErrorType
		message string
	}{
		{"no route", NoRouteError("C9"), ErrTypeNoRoute, "no route to community C9"},
		{"no endpoint", NoEndpointError("M001"), ErrTypeNoEndpoint, "no usable endpoint for member M001"},
		{"communication", CommunicationError("send failed", nil), ErrTypeCommunication, "send failed"},
		{"timeout", TimeoutError("table fetch"), ErrTypeTimeout, "timeout during table fetch"},
		{"format", FormatError("bad tuple", nil), ErrTypeFormat, "bad tuple"},
		{"connection", ConnectionError("dial", nil), ErrTypeConnection, "dial"},
		{"not found", NotFoundError("transport http"), ErrTypeNotFound, "transport http not found"},
		{"internal", InternalError("boom", nil), ErrTypeInternal, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.errType {
				t.Errorf("Type = %v, want %v", tt.err.Type, tt.errType)
			}
			if tt.err.Message != tt.message {
				t.Errorf("Message = %v, want %v", tt.err.Message, tt.message)
			}
		})
	}
}

func TestAppError_WithContextAndCode(t *testing.T) {
	err := FormatError("bad tuple", nil).WithContext("index", 3).WithCode("FMT002")

	if err.Context["index"] != 3 {
		t.Errorf("context index = %v, want 3", err.Context["index"])
	}
	if err.Code != "FMT002" {
		t.Errorf("code = %v, want FMT002", err.Code)
	}
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("gossip round: %w", TimeoutError("table fetch"))

	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"nil error", nil, ErrTypeTimeout, false},
		{"plain error", errors.New("plain"), ErrTypeTimeout, false},
		{"matching type", NoRouteError("C2"), ErrTypeNoRoute, true},
		{"other type", NoRouteError("C2"), ErrTypeNoEndpoint, false},
		{"wrapped", wrapped, ErrTypeTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsType(tt.err, tt.errType); got != tt.want {
				t.Errorf("IsType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetType(t *testing.T) {
	if got := GetType(nil); got != "" {
		t.Errorf("GetType(nil) = %v, want empty", got)
	}
	if got := GetType(errors.New("plain")); got != ErrTypeInternal {
		t.Errorf("GetType(plain) = %v, want %v", got, ErrTypeInternal)
	}
	if got := GetType(fmt.Errorf("x: %w", FormatError("bad", nil))); got != ErrTypeFormat {
		t.Errorf("GetType(wrapped) = %v, want %v", got, ErrTypeFormat)
	}
}
