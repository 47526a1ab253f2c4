//go:build windows

package window

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	user32DLL                    = windows.NewLazySystemDLL("user32.dll")
	procIsIconic                 = user32DLL.NewProc("IsIconic")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")
	procGetWindowTextW           = user32DLL.NewProc("GetWindowTextW")
)

// EnumWindows callbacks are a scarce runtime resource, so one callback is
// created for the process and guarded by enumMu.
var (
	enumMu       sync.Mutex
	enumVisit    func(hwnd windows.HWND) bool
	enumCallback = syscall.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		if enumVisit != nil && !enumVisit(hwnd) {
			return 0
		}
		return 1
	})
)

type win32System struct{}

// NewSystem returns the Win32 window system.
func NewSystem() System { return win32System{} }

func enumTopLevel(visit func(hwnd windows.HWND) bool) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumVisit = visit
	// EnumWindows reports an error when the callback stops early; that is
	// our "found" signal, not a failure.
	_ = windows.EnumWindows(enumCallback, nil)
	enumVisit = nil
}

func windowTitle(hwnd windows.HWND) string {
	buf := make([]uint16, 512)
	r, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	n := int(r)
	if n <= 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func processImagePath(hwnd windows.HWND) (string, error) {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return "", err
	}
	proc, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(proc)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(proc, 0, &buf[0], &size); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:size]), nil
}

func (win32System) FindByTitle(pattern *regexp.Regexp) (Handle, bool) {
	var found windows.HWND
	enumTopLevel(func(hwnd windows.HWND) bool {
		if !windows.IsWindowVisible(hwnd) {
			return true
		}
		title := windowTitle(hwnd)
		if title != "" && pattern.MatchString(title) {
			found = hwnd
			return false
		}
		return true
	})
	return Handle(found), found != 0
}

func (win32System) FindByProcess(exePath string) (Handle, bool) {
	want := filepath.Clean(exePath)
	var found windows.HWND
	enumTopLevel(func(hwnd windows.HWND) bool {
		if !windows.IsWindowVisible(hwnd) || windowTitle(hwnd) == "" {
			return true
		}
		path, err := processImagePath(hwnd)
		if err != nil {
			return true
		}
		if strings.EqualFold(filepath.Clean(path), want) {
			found = hwnd
			return false
		}
		return true
	})
	return Handle(found), found != 0
}

func (win32System) Restore(h Handle) error {
	hwnd := win.HWND(h)
	if !windows.IsWindow(windows.HWND(h)) {
		return fmt.Errorf("restore: %#x is not a window", uintptr(h))
	}
	if iconic, _, _ := procIsIconic.Call(uintptr(hwnd)); iconic == 0 {
		return nil
	}
	win.ShowWindow(hwnd, win.SW_RESTORE)
	return nil
}

func (win32System) Foreground(h Handle) error {
	hwnd := win.HWND(h)
	// ASFW_ANY lets whichever process owns the foreground hand it over.
	const asfwAny = ^uintptr(0)
	procAllowSetForegroundWindow.Call(asfwAny)
	win.BringWindowToTop(hwnd)
	if !win.SetForegroundWindow(hwnd) {
		return fmt.Errorf("SetForegroundWindow refused for %#x", uintptr(h))
	}
	return nil
}

func (win32System) Rect(h Handle) (Rect, error) {
	var r win.RECT
	if !win.GetWindowRect(win.HWND(h), &r) {
		return Rect{}, fmt.Errorf("GetWindowRect failed for %#x", uintptr(h))
	}
	return Rect{
		Left:   int(r.Left),
		Top:    int(r.Top),
		Width:  int(r.Right - r.Left),
		Height: int(r.Bottom - r.Top),
	}, nil
}

func (win32System) Close(h Handle) error {
	// PostMessage returns immediately; a blocking close can stall for
	// seconds while Viber tears the chat down.
	if win.PostMessage(win.HWND(h), win.WM_CLOSE, 0, 0) == 0 {
		return fmt.Errorf("WM_CLOSE could not be posted to %#x", uintptr(h))
	}
	return nil
}
