package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestNewEntity(t *testing.T) {
	err := NewEntity(ErrCodeInvalidDuration, "measure-1", "durations sum to %d, want %d", 1440, 1920)

	if err.EntityID != "measure-1" {
		t.Errorf("EntityID = %v, want measure-1", err.EntityID)
	}
	if Entity(err) != "measure-1" {
		t.Errorf("Entity() = %v, want measure-1", Entity(err))
	}

	// Entity of a plain error is empty
	if Entity(errors.New("plain")) != "" {
		t.Error("Entity(plain error) should be empty")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, cause, "layout pass failed")

	if err.Code != ErrCodeInternal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInternal)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeInvalidInput,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodePageOverflow,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeStructuralIntegrity, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeStructuralIntegrity,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if code := GetCode(New(ErrCodeInvalidDuration, "bad bar")); code != ErrCodeInvalidDuration {
		t.Errorf("GetCode = %v, want %v", code, ErrCodeInvalidDuration)
	}
	if code := GetCode(errors.New("plain")); code != "" {
		t.Errorf("GetCode(plain) = %v, want empty", code)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodePageOverflow, "system taller than page")
	if msg := UserMessage(err); msg != "system taller than page" {
		t.Errorf("UserMessage = %q", msg)
	}

	plain := errors.New("plain error")
	if msg := UserMessage(plain); msg != "plain error" {
		t.Errorf("UserMessage(plain) = %q", msg)
	}
}
