// Package capture produces the full-window and contact-panel images of a
// located window. Two backends are tried in order behind a byte-size
// quality gate: the window-buffer backend renders the window off screen,
// the screen-grab backend copies whatever is composited on the display.
package capture

import (
	"fmt"
	"log"
	"os"

	agenterrors "viber-agent/src/errors"
	"viber-agent/src/timing"
	"viber-agent/src/window"
)

const (
	BackendWindowBuffer = "window-buffer"
	BackendScreenGrab   = "screen-grab"

	// DefaultMinBytes is the smallest encoded image accepted from the
	// window-buffer backend. Blank or black renders compress far below it.
	DefaultMinBytes = 20000
)

// Result holds the encoded PNG images of one capture. RegionImage is nil
// when the resolved region has no area; WindowImage is nil unless the
// caller asked for it.
type Result struct {
	WindowImage []byte
	RegionImage []byte
	Backend     string
}

// Backend is one capture strategy.
type Backend interface {
	Name() string
	Capture(h window.Handle, rect window.Rect, spec RegionSpec, wantWindow bool) (Result, error)
}

// Plausible reports whether res passes the byte-size floor. The region
// image is judged when present, the window image otherwise.
func Plausible(res Result, minBytes int) bool {
	if res.RegionImage != nil {
		return len(res.RegionImage) >= minBytes
	}
	return res.WindowImage != nil && len(res.WindowImage) >= minBytes
}

// Options configures a Capturer.
type Options struct {
	// Renderer enables the window-buffer backend. Nil disables it.
	Renderer Renderer
	Screen   ScreenGrabber
	// ScreenOnly skips the window-buffer backend even when a Renderer is set.
	ScreenOnly bool
	MinBytes   int
	// DebugPath receives the last captured image. Empty disables it.
	DebugPath string
	Clock     timing.Clock
}

// Capturer coordinates the backends.
type Capturer struct {
	backends  []Backend
	minBytes  int
	debugPath string
	clock     timing.Clock
}

func New(opts Options) *Capturer {
	if opts.MinBytes <= 0 {
		opts.MinBytes = DefaultMinBytes
	}
	if opts.Clock == nil {
		opts.Clock = timing.Real()
	}
	if opts.Screen == nil {
		opts.Screen = NewScreenGrabber()
	}

	var backends []Backend
	if opts.Renderer != nil && !opts.ScreenOnly {
		backends = append(backends, NewBufferBackend(opts.Renderer, opts.MinBytes))
	}
	backends = append(backends, NewScreenBackend(opts.Screen))

	return &Capturer{
		backends:  backends,
		minBytes:  opts.MinBytes,
		debugPath: opts.DebugPath,
		clock:     opts.Clock,
	}
}

// NewWithBackends builds a Capturer over an explicit backend order. The
// last backend's output is accepted without the quality gate.
func NewWithBackends(minBytes int, clock timing.Clock, backends ...Backend) *Capturer {
	if clock == nil {
		clock = timing.Real()
	}
	return &Capturer{backends: backends, minBytes: minBytes, clock: clock}
}

// Backends returns the backend names in the order they are tried.
func (c *Capturer) Backends() []string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return names
}

// Capture runs the backends in order and returns the first acceptable
// result. An invalid region is only an error when the region is all the
// caller wanted.
func (c *Capturer) Capture(h window.Handle, rect window.Rect, spec RegionSpec, wantWindow bool) (Result, error) {
	start := c.clock.Now()

	region := spec.Resolve(rect)
	if !region.Valid() {
		log.Printf("capture: region invalid for window %s: %s", rect, region)
		if !wantWindow {
			return Result{}, agenterrors.NewRegionInvalidError(region.Width, region.Height)
		}
	}

	var lastErr error
	for i, b := range c.backends {
		last := i == len(c.backends)-1
		res, err := b.Capture(h, rect, spec, wantWindow)
		if err != nil {
			lastErr = err
			log.Printf("capture: %s backend failed after %.2fs: %v", b.Name(), timing.Since(c.clock, start).Seconds(), err)
			continue
		}
		if !last && !Plausible(res, c.minBytes) {
			lastErr = fmt.Errorf("%s output below %d bytes (region=%d window=%d)",
				b.Name(), c.minBytes, len(res.RegionImage), len(res.WindowImage))
			log.Printf("capture: %v, falling back", lastErr)
			continue
		}
		res.Backend = b.Name()
		log.Printf("capture: %s backend ok in %.2fs (region=%d bytes, window=%d bytes)",
			b.Name(), timing.Since(c.clock, start).Seconds(), len(res.RegionImage), len(res.WindowImage))
		c.saveDebug(res)
		return res, nil
	}

	elapsed := timing.Since(c.clock, start)
	return Result{}, agenterrors.NewCaptureBackendError("every", elapsed, lastErr)
}

func (c *Capturer) saveDebug(res Result) {
	if c.debugPath == "" {
		return
	}
	if err := SaveDebug(c.debugPath, res); err != nil {
		log.Printf("capture: could not write %s: %v", c.debugPath, err)
	}
}

// SaveDebug overwrites path with the region image, or the window image
// when there is no region.
func SaveDebug(path string, res Result) error {
	data := res.RegionImage
	if data == nil {
		data = res.WindowImage
	}
	if data == nil {
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}
