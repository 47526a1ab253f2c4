package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestHasCodeThroughWrapping(t *testing.T) {
	base := NewWindowNotFoundError("window did not appear", 3*time.Second, nil)
	wrapped := fmt.Errorf("lookup: %w", base)

	if !HasCode(wrapped, ErrorWindowNotFound) {
		t.Fatal("expected wrapped error to carry WINDOW_NOT_FOUND")
	}
	if HasCode(wrapped, ErrorLaunchFailed) {
		t.Fatal("did not expect LAUNCH_FAILED")
	}
	if HasCode(nil, ErrorWindowNotFound) {
		t.Fatal("nil error must not carry a code")
	}
	if got := Message(wrapped); got != "window did not appear" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestUnwrapCause(t *testing.T) {
	cause := stderrors.New("access denied")
	err := NewLaunchFailedError("viber://chat?number=1", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	m := err.ToMap()
	if m["error_code"] != "LAUNCH_FAILED" {
		t.Errorf("unexpected error_code: %v", m["error_code"])
	}
	if m["cause"] != "access denied" {
		t.Errorf("unexpected cause: %v", m["cause"])
	}
}

func TestMessageForPlainError(t *testing.T) {
	if got := Message(stderrors.New("boom")); got != "boom" {
		t.Errorf("unexpected message: %q", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("expected empty message for nil, got %q", got)
	}
}
