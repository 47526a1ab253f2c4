//go:build !windows

package inject

// NewTree returns nil off Windows: there is no UI Automation tree.
func NewTree() Tree { return nil }

type unsupportedKeyboard struct{}

// NewKeyboard returns a keyboard that always fails off Windows.
func NewKeyboard() Keyboard { return unsupportedKeyboard{} }

func (unsupportedKeyboard) TypeText(string) (int, error) { return 0, ErrUnsupported }
func (unsupportedKeyboard) PressEnter() error            { return ErrUnsupported }
