package inject

import (
	"fmt"
	"io"
	"strings"

	"viber-agent/src/window"
)

// ControlType is a UI Automation control type id.
type ControlType int

const (
	ControlButton   ControlType = 50000
	ControlEdit     ControlType = 50004
	ControlDocument ControlType = 50030
)

var controlTypeNames = map[ControlType]string{
	50000: "Button", 50001: "Calendar", 50002: "CheckBox", 50003: "ComboBox",
	50004: "Edit", 50005: "Hyperlink", 50006: "Image", 50007: "ListItem",
	50008: "List", 50009: "Menu", 50010: "MenuBar", 50011: "MenuItem",
	50012: "ProgressBar", 50013: "RadioButton", 50014: "ScrollBar", 50015: "Slider",
	50016: "Spinner", 50017: "StatusBar", 50018: "Tab", 50019: "TabItem",
	50020: "Text", 50021: "ToolBar", 50022: "ToolTip", 50023: "Tree",
	50024: "TreeItem", 50025: "Custom", 50026: "Group", 50027: "Thumb",
	50028: "DataGrid", 50029: "DataItem", 50030: "Document", 50031: "SplitButton",
	50032: "Window", 50033: "Pane", 50034: "Header", 50035: "HeaderItem",
	50036: "Table", 50037: "TitleBar", 50038: "Separator",
}

func (c ControlType) String() string {
	if name, ok := controlTypeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ControlType(%d)", int(c))
}

// Element describes one descendant of the window in tree order.
type Element struct {
	Name         string
	AutomationID string
	ClassName    string
	ControlType  ControlType
}

// Snapshot is a live view of a window's descendants. Indexes refer to
// Elements(). Release must be called on the goroutine that took it.
type Snapshot interface {
	Elements() []Element
	SetValue(i int, text string) error
	Invoke(i int) error
	Release()
}

// Tree takes snapshots of a window's UI Automation tree.
type Tree interface {
	Snapshot(h window.Handle) (Snapshot, error)
}

// Selectors identify the input and send controls.
type Selectors struct {
	InputAutomationID string
	SendAutomationID  string
	SendButtonName    string
}

// FindInput returns the index of the message input: the element with the
// configured AutomationId, else the last Edit, else the last Document.
func (s Selectors) FindInput(els []Element) int {
	if s.InputAutomationID != "" {
		for i, e := range els {
			if e.AutomationID == s.InputAutomationID {
				return i
			}
		}
	}
	if i := lastOfType(els, ControlEdit); i >= 0 {
		return i
	}
	return lastOfType(els, ControlDocument)
}

// FindSend returns the index of the send button: the element with the
// configured AutomationId, else a Button named SendButtonName.
func (s Selectors) FindSend(els []Element) int {
	if s.SendAutomationID != "" {
		for i, e := range els {
			if e.AutomationID == s.SendAutomationID {
				return i
			}
		}
	}
	if s.SendButtonName == "" {
		return -1
	}
	for i := len(els) - 1; i >= 0; i-- {
		e := els[i]
		if e.ControlType == ControlButton && strings.EqualFold(strings.TrimSpace(e.Name), s.SendButtonName) {
			return i
		}
	}
	return -1
}

func lastOfType(els []Element, ct ControlType) int {
	for i := len(els) - 1; i >= 0; i-- {
		if els[i].ControlType == ct {
			return i
		}
	}
	return -1
}

// Dump writes one line per element, for finding selectors by hand.
func Dump(w io.Writer, els []Element) error {
	for i, e := range els {
		if _, err := fmt.Fprintf(w, "%4d %-12s name=%q automation_id=%q class=%q\n",
			i, e.ControlType, e.Name, e.AutomationID, e.ClassName); err != nil {
			return err
		}
	}
	return nil
}
