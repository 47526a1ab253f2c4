// Package inject types and sends a message into the open conversation,
// through UI Automation when the controls can be found and through
// synthesized keystrokes otherwise.
package inject

import (
	"errors"
	"fmt"
	"log"
	"time"

	agenterrors "viber-agent/src/errors"
	"viber-agent/src/timing"
	"viber-agent/src/window"
)

// ErrUnsupported is returned off Windows.
var ErrUnsupported = errors.New("input injection is only supported on Windows")

// errInputNotCleared means the text is still in the input box after a
// failed invoke; typing it again would send it twice.
var errInputNotCleared = errors.New("input still holds the message")

// Keyboard synthesizes keystrokes into the foreground window.
type Keyboard interface {
	// TypeText returns how many characters were delivered.
	TypeText(text string) (int, error)
	PressEnter() error
}

type Options struct {
	Selectors
	// FocusSettle is slept after bringing the window forward, before typing.
	FocusSettle time.Duration
	Clock       timing.Clock
}

type Injector struct {
	tree  Tree
	kb    Keyboard
	sys   window.System
	opts  Options
	clock timing.Clock
}

// New returns an Injector. A nil tree skips UI Automation; a nil keyboard
// disables the keystroke fallback.
func New(tree Tree, kb Keyboard, sys window.System, opts Options) *Injector {
	if opts.Clock == nil {
		opts.Clock = timing.Real()
	}
	return &Injector{tree: tree, kb: kb, sys: sys, opts: opts, clock: opts.Clock}
}

// Send delivers text to the conversation shown in window h.
func (in *Injector) Send(h window.Handle, text string) error {
	start := in.clock.Now()
	if text == "" {
		return agenterrors.NewInvalidRequestError("message is empty")
	}

	uiaErr := in.sendUIA(h, text)
	if uiaErr == nil {
		log.Printf("inject: sent via UI Automation in %.2fs", timing.Since(in.clock, start).Seconds())
		return nil
	}
	if errors.Is(uiaErr, errInputNotCleared) {
		return agenterrors.NewInjectionFailedError(timing.Since(in.clock, start), uiaErr)
	}
	log.Printf("inject: UI Automation path failed, falling back to keystrokes: %v", uiaErr)

	kbErr := in.sendKeys(h, text)
	if kbErr == nil {
		log.Printf("inject: sent via keystrokes in %.2fs", timing.Since(in.clock, start).Seconds())
		return nil
	}
	return agenterrors.NewInjectionFailedError(timing.Since(in.clock, start), errors.Join(uiaErr, kbErr))
}

func (in *Injector) sendUIA(h window.Handle, text string) error {
	if in.tree == nil {
		return fmt.Errorf("ui automation unavailable")
	}
	snap, err := in.tree.Snapshot(h)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer snap.Release()

	els := snap.Elements()
	input := in.opts.FindInput(els)
	if input < 0 {
		return fmt.Errorf("message input not found among %d elements", len(els))
	}
	// Both controls are resolved before touching the input so a failure
	// here leaves nothing typed for the keystroke path to duplicate.
	send := in.opts.FindSend(els)
	if send < 0 {
		return fmt.Errorf("send button not found among %d elements", len(els))
	}

	if err := snap.SetValue(input, text); err != nil {
		return fmt.Errorf("set value on %s: %w", els[input].ControlType, err)
	}
	if err := snap.Invoke(send); err != nil {
		if clearErr := snap.SetValue(input, ""); clearErr != nil {
			return fmt.Errorf("invoke %q: %v; clear: %v: %w", els[send].Name, err, clearErr, errInputNotCleared)
		}
		return fmt.Errorf("invoke %q: %w", els[send].Name, err)
	}
	return nil
}

func (in *Injector) sendKeys(h window.Handle, text string) error {
	if in.kb == nil {
		return fmt.Errorf("keyboard unavailable")
	}

	n, err := in.typeFocused(h, text)
	if n == 0 {
		log.Printf("inject: no characters delivered (err=%v), refocusing once", err)
		n, err = in.typeFocused(h, text)
	}
	if n == 0 {
		if err == nil {
			err = fmt.Errorf("no characters delivered")
		}
		return fmt.Errorf("type: %w", err)
	}
	if err != nil {
		return fmt.Errorf("type: %d of %d characters delivered: %w", n, len([]rune(text)), err)
	}
	if err := in.kb.PressEnter(); err != nil {
		return fmt.Errorf("enter: %w", err)
	}
	return nil
}

func (in *Injector) typeFocused(h window.Handle, text string) (int, error) {
	if in.sys != nil {
		if err := in.sys.Foreground(h); err != nil {
			log.Printf("inject: foreground failed (ignored): %v", err)
		}
	}
	if in.opts.FocusSettle > 0 {
		in.clock.Sleep(in.opts.FocusSettle)
	}
	return in.kb.TypeText(text)
}
