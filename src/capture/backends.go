package capture

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"viber-agent/src/screenshot"
	"viber-agent/src/window"
)

// PrintWindow flags, tried in order. Chromium-based windows only paint
// their content under PW_RENDERFULLCONTENT.
const (
	FlagDefault           uint32 = 0
	FlagRenderFullContent uint32 = 2
)

// Renderer renders a window's contents into an off-screen image of the
// given size.
type Renderer interface {
	Render(h window.Handle, width, height int, flag uint32) (image.Image, error)
}

// ScreenGrabber copies a screen-coordinate rectangle.
type ScreenGrabber interface {
	Grab(r window.Rect) (image.Image, error)
}

type screenGrabber struct{}

// NewScreenGrabber returns a grabber backed by kbinani/screenshot.
func NewScreenGrabber() ScreenGrabber { return screenGrabber{} }

func (screenGrabber) Grab(r window.Rect) (image.Image, error) {
	region := screenshot.Region{X: r.Left, Y: r.Top, Width: r.Width, Height: r.Height}
	if !screenshot.OnScreen(region) {
		return nil, fmt.Errorf("%v is not on any display", r)
	}
	return screenshot.Grab(region)
}

type bufferBackend struct {
	renderer Renderer
	minBytes int
	flags    []uint32
}

// NewBufferBackend returns the window-buffer backend. Each render flag is
// tried until one yields a plausible image.
func NewBufferBackend(r Renderer, minBytes int) Backend {
	return &bufferBackend{renderer: r, minBytes: minBytes, flags: []uint32{FlagDefault, FlagRenderFullContent}}
}

func (b *bufferBackend) Name() string { return BackendWindowBuffer }

func (b *bufferBackend) Capture(h window.Handle, rect window.Rect, spec RegionSpec, wantWindow bool) (Result, error) {
	var (
		best    Result
		haveOne bool
		lastErr error
	)
	for _, flag := range b.flags {
		img, err := b.renderer.Render(h, rect.Width, rect.Height, flag)
		if err != nil {
			lastErr = fmt.Errorf("render flag %d: %w", flag, err)
			continue
		}
		res, err := encodeBuffer(img, spec, wantWindow)
		if err != nil {
			lastErr = err
			continue
		}
		best, haveOne = res, true
		if Plausible(res, b.minBytes) {
			return res, nil
		}
	}
	if haveOne {
		return best, nil
	}
	return Result{}, lastErr
}

// encodeBuffer crops the region out of a rendered window buffer. The
// region is resolved against the buffer's own size, which can differ
// from the window rect under DPI scaling.
func encodeBuffer(img image.Image, spec RegionSpec, wantWindow bool) (Result, error) {
	b := img.Bounds()
	local := spec.ResolveLocal(b.Dx(), b.Dy())

	var res Result
	if local.Valid() {
		crop := imaging.Crop(img, image.Rect(
			b.Min.X+local.Left, b.Min.Y+local.Top,
			b.Min.X+local.Left+local.Width, b.Min.Y+local.Top+local.Height))
		data, err := screenshot.EncodePNG(crop)
		if err != nil {
			return Result{}, err
		}
		res.RegionImage = data
	}
	if wantWindow || !local.Valid() {
		data, err := screenshot.EncodePNG(img)
		if err != nil {
			return Result{}, err
		}
		res.WindowImage = data
	}
	return res, nil
}

type screenBackend struct {
	grabber ScreenGrabber
}

// NewScreenBackend returns the screen-grab backend.
func NewScreenBackend(g ScreenGrabber) Backend {
	return &screenBackend{grabber: g}
}

func (s *screenBackend) Name() string { return BackendScreenGrab }

func (s *screenBackend) Capture(_ window.Handle, rect window.Rect, spec RegionSpec, wantWindow bool) (Result, error) {
	var res Result
	if wantWindow {
		data, err := s.grabPNG(rect)
		if err != nil {
			return Result{}, fmt.Errorf("window grab: %w", err)
		}
		res.WindowImage = data
	}
	if region := spec.Resolve(rect); region.Valid() {
		data, err := s.grabPNG(region)
		if err != nil {
			return Result{}, fmt.Errorf("region grab: %w", err)
		}
		res.RegionImage = data
	}
	if res.WindowImage == nil && res.RegionImage == nil {
		return Result{}, fmt.Errorf("nothing to grab for window %s", rect)
	}
	return res, nil
}

func (s *screenBackend) grabPNG(r window.Rect) ([]byte, error) {
	img, err := s.grabber.Grab(r)
	if err != nil {
		return nil, err
	}
	return screenshot.EncodePNG(img)
}
