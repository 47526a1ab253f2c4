//go:build !windows

package capture

// NewRenderer returns nil: there is no window print primitive off Windows,
// so only the screen-grab backend is used.
func NewRenderer() Renderer { return nil }
