package capture

import (
	"viber-agent/src/window"
)

// Anchor selects which edge of the window the region hugs horizontally.
type Anchor string

const (
	AnchorRight Anchor = "right"
	AnchorLeft  Anchor = "left"
	AnchorFull  Anchor = "full"
)

// RegionSpec describes the contact-panel crop relative to a window.
type RegionSpec struct {
	Anchor    Anchor
	TopOffset int
	Width     int
	Height    int
}

// Resolve maps the spec onto rect. The result never leaves rect; a
// non-positive width or height means there is nothing to crop.
func (s RegionSpec) Resolve(rect window.Rect) window.Rect {
	left := rect.Left
	width := rect.Width
	switch s.Anchor {
	case AnchorFull:
	case AnchorLeft:
		width = min(s.Width, rect.Width)
	default:
		width = min(s.Width, rect.Width)
		left = rect.Left + rect.Width - width
	}

	top := rect.Top + s.TopOffset
	top = max(rect.Top, min(top, rect.Top+rect.Height))
	height := min(s.Height, rect.Top+rect.Height-top)

	return window.Rect{Left: left, Top: top, Width: width, Height: height}
}

// ResolveLocal resolves the spec against a (0,0)-origin buffer of the
// given size.
func (s RegionSpec) ResolveLocal(width, height int) window.Rect {
	return s.Resolve(window.Rect{Width: width, Height: height})
}
