package window_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	agenterrors "viber-agent/src/errors"
	"viber-agent/src/timing"
	"viber-agent/src/window"
	"viber-agent/src/window/windowtest"
)

func newLocator(sys window.System, clock timing.Clock) *window.Locator {
	return window.NewLocator(sys, clock, window.Options{
		TitlePattern: regexp.MustCompile(".*Viber.*"),
		ExePath:      `C:\Users\u\AppData\Local\Viber\Viber.exe`,
		PollInterval: 250 * time.Millisecond,
		FocusSettle:  300 * time.Millisecond,
	})
}

func TestLocateFindsWindowImmediately(t *testing.T) {
	sys := windowtest.NewSystem(0x1234, window.Rect{Left: 0, Top: 0, Width: 800, Height: 600})
	clock := timing.NewFake()

	h, rect, err := newLocator(sys, clock).Locate(14 * time.Second)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if h != 0x1234 {
		t.Errorf("unexpected handle %#x", h)
	}
	if rect != (window.Rect{Width: 800, Height: 600}) {
		t.Errorf("unexpected rect %v", rect)
	}
	if sys.RestoreCalls != 1 || sys.ForegroundCalls != 1 {
		t.Errorf("expected one restore and one foreground, got %d/%d", sys.RestoreCalls, sys.ForegroundCalls)
	}
	if sys.ProcessCalls != 0 {
		t.Errorf("title hit must skip the process lookup, got %d process calls", sys.ProcessCalls)
	}
	if got := clock.Slept(); got != 300*time.Millisecond {
		t.Errorf("expected only the focus settle, slept %v", got)
	}
}

func TestLocateWaitsForWindowToAppear(t *testing.T) {
	sys := windowtest.NewSystem(0x1, window.Rect{Width: 800, Height: 600})
	sys.AppearAfter = 3
	clock := timing.NewFake()

	if _, _, err := newLocator(sys, clock).Locate(14 * time.Second); err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if sys.TitleCalls != 4 {
		t.Errorf("expected 4 title rounds, got %d", sys.TitleCalls)
	}
	if got := clock.Slept(); got != 3*250*time.Millisecond+300*time.Millisecond {
		t.Errorf("unexpected total sleep %v", got)
	}
}

func TestLocateTreatsEmptyRectAsNotReady(t *testing.T) {
	tests := []struct {
		name string
		rect window.Rect
	}{
		{"zero", window.Rect{}},
		{"zero width", window.Rect{Left: 10, Top: 10, Width: 0, Height: 600}},
		{"zero height", window.Rect{Left: 10, Top: 10, Width: 800, Height: 0}},
		{"negative", window.Rect{Left: 10, Top: 10, Width: -32000, Height: -32000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := windowtest.NewSystem(0x1, tt.rect)
			clock := timing.NewFake()

			h, _, err := newLocator(sys, clock).Locate(2 * time.Second)
			if err == nil {
				t.Fatalf("expected timeout, got handle %#x", h)
			}
			if !agenterrors.HasCode(err, agenterrors.ErrorWindowNotFound) {
				t.Fatalf("expected WINDOW_NOT_FOUND, got %v", err)
			}
			if sys.RectCalls < 2 {
				t.Errorf("expected polling to continue, got %d rect reads", sys.RectCalls)
			}
		})
	}
}

func TestLocateSucceedsOnceRectBecomesValid(t *testing.T) {
	sys := windowtest.NewSystem(0x1, window.Rect{})
	sys.Rects = []window.Rect{{}, {Width: 0, Height: 10}, {Left: 5, Top: 5, Width: 640, Height: 480}}
	clock := timing.NewFake()

	_, rect, err := newLocator(sys, clock).Locate(14 * time.Second)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if rect.Width != 640 || sys.RectCalls != 3 {
		t.Errorf("expected success on third read, got rect %v after %d reads", rect, sys.RectCalls)
	}
}

func TestLocateFallsBackToProcessLookup(t *testing.T) {
	sys := windowtest.NewSystem(0x99, window.Rect{Width: 800, Height: 600})
	sys.ProcessOnly = true

	h, _, err := newLocator(sys, timing.NewFake()).Locate(time.Second)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if h != 0x99 || sys.ProcessCalls != 1 {
		t.Errorf("expected process lookup hit, handle %#x calls %d", h, sys.ProcessCalls)
	}
}

func TestLocateIgnoresRestoreAndFocusErrors(t *testing.T) {
	sys := windowtest.NewSystem(0x1, window.Rect{Width: 800, Height: 600})
	sys.RestoreErr = errors.New("access denied")
	sys.ForegroundErr = errors.New("foreground lock")

	if _, _, err := newLocator(sys, timing.NewFake()).Locate(time.Second); err != nil {
		t.Fatalf("restore/focus failures must not fail the locate: %v", err)
	}
}

func TestLocateTimeoutCarriesElapsed(t *testing.T) {
	clock := timing.NewFake()
	_, _, err := newLocator(windowtest.Missing(), clock).Locate(3 * time.Second)
	if err == nil {
		t.Fatal("expected timeout")
	}
	var ae *agenterrors.AgentError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AgentError, got %T", err)
	}
	if ae.Elapsed < 3*time.Second {
		t.Errorf("expected elapsed >= 3s, got %v", ae.Elapsed)
	}
}
