package window

import (
	"fmt"
	"log"
	"regexp"
	"time"

	agenterrors "viber-agent/src/errors"
	"viber-agent/src/timing"
)

// Options configures a Locator.
type Options struct {
	TitlePattern *regexp.Regexp
	ExePath      string
	PollInterval time.Duration
	// FocusSettle is slept after restore/foreground so the window can come
	// to the front before its rectangle is read.
	FocusSettle time.Duration
}

// Locator finds the target application's top-level window, tolerating the
// window not existing yet, being minimized, or not being rendered yet.
type Locator struct {
	sys   System
	clock timing.Clock
	opts  Options
}

func NewLocator(sys System, clock timing.Clock, opts Options) *Locator {
	if clock == nil {
		clock = timing.Real()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	return &Locator{sys: sys, clock: clock, opts: opts}
}

// Locate polls until a usable window is found or timeout elapses.
func (l *Locator) Locate(timeout time.Duration) (Handle, Rect, error) {
	start := l.clock.Now()
	deadline := start.Add(timeout)
	attempts := 0
	var lastErr error

	for l.clock.Now().Before(deadline) {
		attempts++
		h, source, ok := l.find()
		if !ok {
			l.clock.Sleep(l.opts.PollInterval)
			continue
		}

		// A window that cannot be restored or focused is still capturable.
		if err := l.sys.Restore(h); err != nil {
			log.Printf("window: restore %#x failed (ignored): %v", uintptr(h), err)
		}
		if err := l.sys.Foreground(h); err != nil {
			log.Printf("window: foreground %#x failed (ignored): %v", uintptr(h), err)
		}
		if l.opts.FocusSettle > 0 {
			l.clock.Sleep(l.opts.FocusSettle)
		}

		rect, err := l.sys.Rect(h)
		if err != nil {
			lastErr = err
			l.clock.Sleep(l.opts.PollInterval)
			continue
		}
		if !rect.Valid() {
			lastErr = fmt.Errorf("window %#x not rendered yet: %s", uintptr(h), rect)
			l.clock.Sleep(l.opts.PollInterval)
			continue
		}

		log.Printf("window: found %#x via %s rect=%s after %d attempt(s)", uintptr(h), source, rect, attempts)
		return h, rect, nil
	}

	elapsed := timing.Since(l.clock, start)
	return 0, Rect{}, agenterrors.NewWindowNotFoundError(
		fmt.Sprintf("window did not appear within %.1fs", elapsed.Seconds()), elapsed, lastErr)
}

func (l *Locator) find() (Handle, string, bool) {
	if l.opts.TitlePattern != nil {
		if h, ok := l.sys.FindByTitle(l.opts.TitlePattern); ok {
			return h, "title", true
		}
	}
	if l.opts.ExePath != "" {
		if h, ok := l.sys.FindByProcess(l.opts.ExePath); ok {
			return h, "process", true
		}
	}
	return 0, "", false
}
