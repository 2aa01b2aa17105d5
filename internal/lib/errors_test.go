package lib

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "home", Message: "must not be empty"}
	if err.Error() != "invalid home: must not be empty" {
		t.Fatalf("Error() = %q", err.Error())
	}

	bare := &ValidationError{Message: "bad input"}
	if bare.Error() != "bad input" {
		t.Fatalf("Error() = %q", bare.Error())
	}
}

func TestIsValidationErrorWrapped(t *testing.T) {
	inner := &ValidationError{Field: "label", Message: "required"}
	wrapped := fmt.Errorf("register service: %w", inner)
	if !IsValidationError(wrapped) {
		t.Fatal("IsValidationError(wrapped) = false, want true")
	}
	if IsValidationError(errors.New("other")) {
		t.Fatal("IsValidationError(other) = true, want false")
	}
}

func TestCommandErrorMessages(t *testing.T) {
	withCause := &CommandError{Command: "brew", Err: errors.New("exec not found")}
	if !strings.Contains(withCause.Error(), "brew") {
		t.Fatalf("Error() = %q", withCause.Error())
	}

	exitOnly := &CommandError{Command: "systemsetup", ExitCode: 2}
	if !strings.Contains(exitOnly.Error(), "exit=2") {
		t.Fatalf("Error() = %q", exitOnly.Error())
	}
}
