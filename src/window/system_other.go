//go:build !windows

package window

import "regexp"

type unsupportedSystem struct{}

// NewSystem returns a window system that never finds a window on
// platforms other than Windows.
func NewSystem() System { return unsupportedSystem{} }

func (unsupportedSystem) FindByTitle(*regexp.Regexp) (Handle, bool) { return 0, false }
func (unsupportedSystem) FindByProcess(string) (Handle, bool)       { return 0, false }
func (unsupportedSystem) Restore(Handle) error                      { return ErrUnsupported }
func (unsupportedSystem) Foreground(Handle) error                   { return ErrUnsupported }
func (unsupportedSystem) Rect(Handle) (Rect, error)                 { return Rect{}, ErrUnsupported }
func (unsupportedSystem) Close(Handle) error                        { return ErrUnsupported }
