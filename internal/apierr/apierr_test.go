package apierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewHasNoWrappedCause(t *testing.T) {
	err := New(InvalidBrief, "missing title")
	if err.Kind != InvalidBrief {
		t.Errorf("expected kind InvalidBrief, got %s", err.Kind)
	}
	if err.Unwrap() != nil {
		t.Errorf("expected no wrapped cause, got %v", err.Unwrap())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(IoFailure, "write workspace file", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestErrorMessageIncludesKindAndCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(NotFound, "mission x", cause)
	got := err.Error()
	want := "NotFound: mission x: boom"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := New(AlreadyCancelled, "mission already cancelled")
	if !Is(err, AlreadyCancelled) {
		t.Error("expected Is to match AlreadyCancelled")
	}
	if Is(err, NotFound) {
		t.Error("expected Is to reject a different kind")
	}
}

func TestIsRejectsNonAPIError(t *testing.T) {
	if Is(fmt.Errorf("plain error"), NotFound) {
		t.Error("expected Is to return false for a non-*Error")
	}
}

func TestErrorsAsUnwrapsThroughStandardWrapping(t *testing.T) {
	inner := New(SlotBusy, "slot 2 occupied")
	wrapped := fmt.Errorf("spawn agent: %w", inner)

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatal("expected errors.As to find the *Error through fmt.Errorf wrapping")
	}
	if target.Kind != SlotBusy {
		t.Errorf("expected kind SlotBusy, got %s", target.Kind)
	}
}
