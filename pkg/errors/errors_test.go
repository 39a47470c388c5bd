package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeInvalidBox, "box %q has zero width", "Name")
	want := `INVALID_BOX: box "Name" has zero width`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrCodeExport, cause, "failed to write archive")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
	if got := err.Error(); got != "EXPORT_ERROR: failed to write archive: disk full" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestIsMatchesCode(t *testing.T) {
	err := New(ErrCodeTerminated, "pool terminated")

	if !Is(err, ErrCodeTerminated) {
		t.Error("Is should match the error's own code")
	}
	if Is(err, ErrCodeCancelled) {
		t.Error("Is should not match a different code")
	}
	if Is(stderrors.New("plain"), ErrCodeTerminated) {
		t.Error("Is should not match a plain error")
	}
}

func TestIsMatchesWrappedCode(t *testing.T) {
	inner := New(ErrCodeFontNotFound, "no such font")
	outer := fmt.Errorf("loading renderer: %w", inner)

	if !Is(outer, ErrCodeFontNotFound) {
		t.Error("Is should unwrap to find the coded error")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeProbe, "probe failed")); got != ErrCodeProbe {
		t.Errorf("GetCode = %q, want %q", got, ErrCodeProbe)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode for plain error = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeInvalidColor, "bad hex color")
	if got := UserMessage(err); got != "bad hex color" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(stderrors.New("plain")); got != "plain" {
		t.Errorf("UserMessage for plain error = %q", got)
	}
}
