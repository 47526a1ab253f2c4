//go:build windows

package capture

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"

	"viber-agent/src/window"
)

var (
	user32DLL       = windows.NewLazySystemDLL("user32.dll")
	procPrintWindow = user32DLL.NewProc("PrintWindow")
)

type printWindowRenderer struct{}

// NewRenderer returns the PrintWindow renderer.
func NewRenderer() Renderer { return printWindowRenderer{} }

func (printWindowRenderer) Render(h window.Handle, width, height int, flag uint32) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer size %dx%d", width, height)
	}
	hwnd := win.HWND(h)

	screenDC := win.GetDC(hwnd)
	if screenDC == 0 {
		return nil, fmt.Errorf("GetDC failed for %#x", uintptr(h))
	}
	defer win.ReleaseDC(hwnd, screenDC)

	memDC := win.CreateCompatibleDC(screenDC)
	if memDC == 0 {
		return nil, fmt.Errorf("CreateCompatibleDC failed")
	}
	defer win.DeleteDC(memDC)

	bmi := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // top-down
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}
	var bits unsafe.Pointer
	hBitmap := win.CreateDIBSection(memDC, &bmi.BmiHeader, win.DIB_RGB_COLORS, &bits, 0, 0)
	if hBitmap == 0 || bits == nil {
		return nil, fmt.Errorf("CreateDIBSection failed for %dx%d", width, height)
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))

	old := win.SelectObject(memDC, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(memDC, old)

	ok, _, callErr := procPrintWindow.Call(uintptr(hwnd), uintptr(memDC), uintptr(flag))
	if ok == 0 {
		return nil, fmt.Errorf("PrintWindow(flag=%d) failed: %v", flag, callErr)
	}

	// The DIB is BGRA with a DWORD-aligned stride, which for 32bpp is
	// exactly width*4.
	stride := width * 4
	src := unsafe.Slice((*byte)(bits), stride*height)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(src); i += 4 {
		img.Pix[i] = src[i+2]
		img.Pix[i+1] = src[i+1]
		img.Pix[i+2] = src[i]
		img.Pix[i+3] = 255
	}
	return img, nil
}
