//go:build windows

package inject

import (
	"fmt"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32DLL     = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32DLL.NewProc("SendInput")
)

const (
	inputKeyboard = 1

	keyeventfKeyUp   = 0x0002
	keyeventfUnicode = 0x0004

	vkReturn = 0x0D
	vkShift  = 0x10
)

type keybdInput struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

// input mirrors INPUT; the padding covers the larger MOUSEINPUT member of
// the union.
type input struct {
	Type uint32
	Ki   keybdInput
	_    [8]byte
}

type sendInputKeyboard struct{}

// NewKeyboard returns a keyboard backed by SendInput.
func NewKeyboard() Keyboard { return sendInputKeyboard{} }

func sendInputs(inputs []input) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	n, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(n) != len(inputs) {
		return int(n), fmt.Errorf("SendInput inserted %d of %d events: %v", n, len(inputs), err)
	}
	return int(n), nil
}

func key(vk uint16, up bool) input {
	in := input{Type: inputKeyboard, Ki: keybdInput{WVk: vk}}
	if up {
		in.Ki.DwFlags = keyeventfKeyUp
	}
	return in
}

func unicodeKey(unit uint16, up bool) input {
	in := input{Type: inputKeyboard, Ki: keybdInput{WScan: unit, DwFlags: keyeventfUnicode}}
	if up {
		in.Ki.DwFlags |= keyeventfKeyUp
	}
	return in
}

// TypeText sends text one character at a time. Newlines become
// Shift+Enter so they do not send the message early.
func (sendInputKeyboard) TypeText(text string) (int, error) {
	delivered := 0
	for _, r := range text {
		var batch []input
		switch r {
		case '\r':
			continue
		case '\n':
			batch = []input{key(vkShift, false), key(vkReturn, false), key(vkReturn, true), key(vkShift, true)}
		default:
			for _, unit := range utf16.Encode([]rune{r}) {
				batch = append(batch, unicodeKey(unit, false), unicodeKey(unit, true))
			}
		}
		if _, err := sendInputs(batch); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

func (sendInputKeyboard) PressEnter() error {
	_, err := sendInputs([]input{key(vkReturn, false), key(vkReturn, true)})
	return err
}
