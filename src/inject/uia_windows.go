//go:build windows

package inject

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"

	"viber-agent/src/window"
)

var (
	clsidCUIAutomation = ole.NewGUID("{FF48DBA4-60EF-4201-AA87-54103EEF594E}")
	iidIUIAutomation   = ole.NewGUID("{30CBE57D-D9D0-452A-AB13-7AC5AC4825EE}")
)

// vtable slots
const (
	slotRelease = 2

	// IUIAutomation
	slotElementFromHandle   = 6
	slotCreateTrueCondition = 21

	// IUIAutomationElement
	slotSetFocus            = 3
	slotFindAll             = 6
	slotGetCurrentPattern   = 16
	slotCurrentControlType  = 21
	slotCurrentName         = 23
	slotCurrentAutomationID = 29
	slotCurrentClassName    = 30

	// IUIAutomationElementArray
	slotLength     = 3
	slotGetElement = 4

	// IUIAutomationValuePattern / IUIAutomationInvokePattern
	slotSetValue = 3
	slotInvoke   = 3
)

const (
	treeScopeDescendants = 4
	patternInvoke        = 10000
	patternValue         = 10002

	sFalse          = 0x00000001
	rpcEChangedMode = 0x80010106
)

func comCall(obj uintptr, slot int, args ...uintptr) error {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	method := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(slot)*unsafe.Sizeof(uintptr(0))))
	hr, _, _ := syscall.SyscallN(method, append([]uintptr{obj}, args...)...)
	if int32(hr) < 0 {
		return ole.NewError(hr)
	}
	return nil
}

func release(obj uintptr) {
	if obj != 0 {
		_ = comCall(obj, slotRelease)
	}
}

func bstrProperty(el uintptr, slot int) string {
	var bstr *uint16
	if err := comCall(el, slot, uintptr(unsafe.Pointer(&bstr))); err != nil || bstr == nil {
		return ""
	}
	defer ole.SysFreeString((*int16)(unsafe.Pointer(bstr)))
	return ole.BstrToString(bstr)
}

type uiaTree struct{}

// NewTree returns the UI Automation tree backed by the COM CUIAutomation
// object.
func NewTree() Tree { return uiaTree{} }

type uiaSnapshot struct {
	automation uintptr
	root       uintptr
	condition  uintptr
	array      uintptr
	elements   []Element
	comInit    bool
}

func (uiaTree) Snapshot(h window.Handle) (Snapshot, error) {
	runtime.LockOSThread()
	s := &uiaSnapshot{}

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		oleErr, ok := err.(*ole.OleError)
		if !ok || (oleErr.Code() != sFalse && oleErr.Code() != rpcEChangedMode) {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("CoInitializeEx: %w", err)
		}
		s.comInit = oleErr.Code() == sFalse
	} else {
		s.comInit = true
	}

	unk, err := ole.CreateInstance(clsidCUIAutomation, iidIUIAutomation)
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("create CUIAutomation: %w", err)
	}
	s.automation = uintptr(unsafe.Pointer(unk))

	if err := comCall(s.automation, slotElementFromHandle, uintptr(h), uintptr(unsafe.Pointer(&s.root))); err != nil || s.root == 0 {
		s.Release()
		return nil, fmt.Errorf("ElementFromHandle(%#x): %v", uintptr(h), err)
	}
	if err := comCall(s.automation, slotCreateTrueCondition, uintptr(unsafe.Pointer(&s.condition))); err != nil {
		s.Release()
		return nil, fmt.Errorf("CreateTrueCondition: %w", err)
	}
	if err := comCall(s.root, slotFindAll, treeScopeDescendants, s.condition, uintptr(unsafe.Pointer(&s.array))); err != nil || s.array == 0 {
		s.Release()
		return nil, fmt.Errorf("FindAll: %v", err)
	}

	var length int32
	if err := comCall(s.array, slotLength, uintptr(unsafe.Pointer(&length))); err != nil {
		s.Release()
		return nil, fmt.Errorf("element count: %w", err)
	}
	s.elements = make([]Element, 0, length)
	for i := int32(0); i < length; i++ {
		el, err := s.element(int(i))
		if err != nil {
			s.elements = append(s.elements, Element{})
			continue
		}
		var ct int32
		_ = comCall(el, slotCurrentControlType, uintptr(unsafe.Pointer(&ct)))
		s.elements = append(s.elements, Element{
			Name:         bstrProperty(el, slotCurrentName),
			AutomationID: bstrProperty(el, slotCurrentAutomationID),
			ClassName:    bstrProperty(el, slotCurrentClassName),
			ControlType:  ControlType(ct),
		})
		release(el)
	}
	return s, nil
}

func (s *uiaSnapshot) element(i int) (uintptr, error) {
	var el uintptr
	if err := comCall(s.array, slotGetElement, uintptr(i), uintptr(unsafe.Pointer(&el))); err != nil {
		return 0, err
	}
	if el == 0 {
		return 0, fmt.Errorf("element %d is gone", i)
	}
	return el, nil
}

func (s *uiaSnapshot) pattern(i int, id uintptr) (uintptr, error) {
	el, err := s.element(i)
	if err != nil {
		return 0, err
	}
	defer release(el)
	_ = comCall(el, slotSetFocus)

	var p uintptr
	if err := comCall(el, slotGetCurrentPattern, id, uintptr(unsafe.Pointer(&p))); err != nil {
		return 0, err
	}
	if p == 0 {
		return 0, fmt.Errorf("element %d does not support pattern %d", i, id)
	}
	return p, nil
}

func (s *uiaSnapshot) Elements() []Element { return s.elements }

func (s *uiaSnapshot) SetValue(i int, text string) error {
	p, err := s.pattern(i, patternValue)
	if err != nil {
		return err
	}
	defer release(p)
	bstr := ole.SysAllocString(text)
	defer ole.SysFreeString(bstr)
	return comCall(p, slotSetValue, uintptr(unsafe.Pointer(bstr)))
}

func (s *uiaSnapshot) Invoke(i int) error {
	p, err := s.pattern(i, patternInvoke)
	if err != nil {
		return err
	}
	defer release(p)
	return comCall(p, slotInvoke)
}

func (s *uiaSnapshot) Release() {
	release(s.array)
	release(s.condition)
	release(s.root)
	release(s.automation)
	s.array, s.condition, s.root, s.automation = 0, 0, 0, 0
	if s.comInit {
		ole.CoUninitialize()
		s.comInit = false
	}
	runtime.UnlockOSThread()
}
