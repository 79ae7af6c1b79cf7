package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrNotFound is not found", ErrNotFound, true},
		{"ErrDefinitionNotFound is not found", ErrDefinitionNotFound, true},
		{"wrapped not found error is detected", fmt.Errorf("failed to locate: %w", ErrNotFound), true},
		{"ErrInvalidConfiguration is not a not-found error", ErrInvalidConfiguration, false},
		{"custom error is not a not-found error", errors.New("something else"), false},
		{"nil error is not a not-found error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.expected {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsConfigurationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrInvalidConfiguration is configuration error", ErrInvalidConfiguration, true},
		{"ErrMissingConfiguration is configuration error", ErrMissingConfiguration, true},
		{"wrapped configuration error is detected", fmt.Errorf("config validation failed: %w", ErrInvalidConfiguration), true},
		{"ErrNotFound is not configuration error", ErrNotFound, false},
		{"custom error is not configuration error", errors.New("random error"), false},
		{"nil error is not configuration error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigurationError(tt.err); got != tt.expected {
				t.Errorf("IsConfigurationError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := ErrNotFound
	wrappedOnce := fmt.Errorf("failed to find workflow 'test': %w", baseErr)
	wrappedTwice := fmt.Errorf("operation failed: %w", wrappedOnce)

	if !IsNotFound(baseErr) {
		t.Error("base error should be detected as not-found")
	}
	if !IsNotFound(wrappedOnce) {
		t.Error("once-wrapped error should be detected as not-found")
	}
	if !IsNotFound(wrappedTwice) {
		t.Error("twice-wrapped error should be detected as not-found")
	}
	if !errors.Is(wrappedTwice, ErrNotFound) {
		t.Error("errors.Is should work through multiple wrapping layers")
	}
}

func TestFrameworkErrorMessage(t *testing.T) {
	err := &FrameworkError{Op: "Config.Validate", Kind: "config", Message: "invalid port: 0"}
	if err.Error() != "Config.Validate: invalid port: 0" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	wrapped := &FrameworkError{Op: "State.Get", Kind: "state", ID: "abc", Err: ErrNotFound}
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("FrameworkError should unwrap to the underlying sentinel")
	}
}
