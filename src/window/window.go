package window

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrUnsupported is returned by the window system on platforms without a
// desktop window manager we can drive.
var ErrUnsupported = errors.New("window automation is only supported on Windows")

// Handle is an opaque OS window reference, valid until the window closes.
type Handle uintptr

// Rect is a window's bounding rectangle in screen coordinates.
type Rect struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Valid reports whether the window has been rendered with a real size.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Rect) String() string {
	return fmt.Sprintf("{%d,%d %dx%d}", r.Left, r.Top, r.Width, r.Height)
}

// System is the OS window API surface the agent needs.
type System interface {
	// FindByTitle returns the first visible top-level window whose title
	// matches pattern.
	FindByTitle(pattern *regexp.Regexp) (Handle, bool)
	// FindByProcess returns the first visible top-level window owned by a
	// process whose executable path equals exePath. Slower than
	// FindByTitle.
	FindByProcess(exePath string) (Handle, bool)
	// Restore un-minimizes the window.
	Restore(h Handle) error
	// Foreground brings the window to the front and gives it focus.
	Foreground(h Handle) error
	// Rect reads the window's bounding rectangle.
	Rect(h Handle) (Rect, error)
	// Close asks the window to close; the owning process keeps running.
	Close(h Handle) error
}
