package inject

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	agenterrors "viber-agent/src/errors"
	"viber-agent/src/timing"
	"viber-agent/src/window"
	"viber-agent/src/window/windowtest"
)

var chatElements = []Element{
	{Name: "Chats", ControlType: ControlButton},
	{Name: "Search", ControlType: ControlEdit, AutomationID: "searchField"},
	{Name: "", ControlType: ControlDocument},
	{Name: "Type a message...", ControlType: ControlEdit, AutomationID: "messageInput"},
	{Name: "Send", ControlType: ControlButton, AutomationID: "sendButton"},
}

type fakeSnapshot struct {
	elements  []Element
	setErr    error
	invokeErr error
	values    map[int]string
	invoked   []int
	released  bool
}

func (s *fakeSnapshot) Elements() []Element { return s.elements }

func (s *fakeSnapshot) SetValue(i int, text string) error {
	if s.setErr != nil {
		return s.setErr
	}
	if s.values == nil {
		s.values = map[int]string{}
	}
	s.values[i] = text
	return nil
}

func (s *fakeSnapshot) Invoke(i int) error {
	if s.invokeErr != nil {
		return s.invokeErr
	}
	s.invoked = append(s.invoked, i)
	return nil
}

func (s *fakeSnapshot) Release() { s.released = true }

type fakeTree struct {
	snap *fakeSnapshot
	err  error
}

func (t *fakeTree) Snapshot(window.Handle) (Snapshot, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.snap, nil
}

type fakeKeyboard struct {
	// delivered is returned by successive TypeText calls; the last entry
	// repeats.
	delivered []int
	typeErr   error
	enterErr  error
	typed     []string
	enters    int
}

func (k *fakeKeyboard) TypeText(text string) (int, error) {
	k.typed = append(k.typed, text)
	n := len([]rune(text))
	if len(k.delivered) > 0 {
		i := min(len(k.typed)-1, len(k.delivered)-1)
		n = k.delivered[i]
	}
	return n, k.typeErr
}

func (k *fakeKeyboard) PressEnter() error {
	k.enters++
	return k.enterErr
}

func newTestInjector(tree Tree, kb Keyboard, sys window.System) *Injector {
	return New(tree, kb, sys, Options{
		Selectors: Selectors{
			InputAutomationID: "messageInput",
			SendAutomationID:  "sendButton",
			SendButtonName:    "Send",
		},
		FocusSettle: 300 * time.Millisecond,
		Clock:       timing.NewFake(),
	})
}

func TestSendViaUIA(t *testing.T) {
	snap := &fakeSnapshot{elements: chatElements}
	kb := &fakeKeyboard{}

	if err := newTestInjector(&fakeTree{snap: snap}, kb, nil).Send(1, "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if snap.values[3] != "hello" {
		t.Errorf("input not set: %v", snap.values)
	}
	if len(snap.invoked) != 1 || snap.invoked[0] != 4 {
		t.Errorf("send button not invoked: %v", snap.invoked)
	}
	if !snap.released {
		t.Error("snapshot not released")
	}
	if len(kb.typed) != 0 {
		t.Error("keyboard must not be used when UIA succeeds")
	}
}

func TestSendFallsBackToKeyboard(t *testing.T) {
	tests := []struct {
		name string
		tree Tree
	}{
		{"no tree", nil},
		{"snapshot error", &fakeTree{err: errors.New("CoCreateInstance failed")}},
		{"no controls", &fakeTree{snap: &fakeSnapshot{elements: []Element{{Name: "Chats", ControlType: ControlButton}}}}},
		{"set value fails", &fakeTree{snap: &fakeSnapshot{elements: chatElements, setErr: errors.New("read only")}}},
		{"invoke fails", &fakeTree{snap: &fakeSnapshot{elements: chatElements, invokeErr: errors.New("disabled")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := &fakeKeyboard{}
			sys := windowtest.NewSystem(1, window.Rect{Width: 800, Height: 600})

			if err := newTestInjector(tt.tree, kb, sys).Send(1, "hello"); err != nil {
				t.Fatalf("Send: %v", err)
			}
			if len(kb.typed) != 1 || kb.typed[0] != "hello" || kb.enters != 1 {
				t.Fatalf("unexpected keyboard use: typed=%v enters=%d", kb.typed, kb.enters)
			}
			if sys.ForegroundCalls != 1 {
				t.Errorf("expected one foreground, got %d", sys.ForegroundCalls)
			}
		})
	}
}

// textBox is the chat input as both delivery paths see it.
type textBox struct {
	text      string
	submitted []string
}

type boxSnapshot struct {
	fakeSnapshot
	box *textBox
	// clearErr fails SetValue calls with empty text.
	clearErr error
}

func (s *boxSnapshot) SetValue(i int, text string) error {
	if text == "" && s.clearErr != nil {
		return s.clearErr
	}
	s.box.text = text
	return nil
}

type boxTree struct{ snap *boxSnapshot }

func (t *boxTree) Snapshot(window.Handle) (Snapshot, error) { return t.snap, nil }

type boxKeyboard struct {
	box   *textBox
	typed int
}

func (k *boxKeyboard) TypeText(text string) (int, error) {
	k.typed++
	k.box.text += text
	return len([]rune(text)), nil
}

func (k *boxKeyboard) PressEnter() error {
	k.box.submitted = append(k.box.submitted, k.box.text)
	k.box.text = ""
	return nil
}

func TestSendInvokeFailureDoesNotDuplicateText(t *testing.T) {
	box := &textBox{}
	snap := &boxSnapshot{fakeSnapshot: fakeSnapshot{elements: chatElements, invokeErr: errors.New("disabled")}, box: box}
	kb := &boxKeyboard{box: box}
	sys := windowtest.NewSystem(1, window.Rect{Width: 800, Height: 600})

	if err := newTestInjector(&boxTree{snap: snap}, kb, sys).Send(1, "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(box.submitted) != 1 || box.submitted[0] != "hello" {
		t.Fatalf("submitted %q, want [hello]", box.submitted)
	}
}

func TestSendInvokeFailureWithStuckInputFails(t *testing.T) {
	box := &textBox{}
	snap := &boxSnapshot{
		fakeSnapshot: fakeSnapshot{elements: chatElements, invokeErr: errors.New("disabled")},
		box:          box,
		clearErr:     errors.New("read only"),
	}
	kb := &boxKeyboard{box: box}

	err := newTestInjector(&boxTree{snap: snap}, kb, nil).Send(1, "hello")
	if !agenterrors.HasCode(err, agenterrors.ErrorInjectionFailed) {
		t.Fatalf("expected INJECTION_FAILED, got %v", err)
	}
	if kb.typed != 0 || len(box.submitted) != 0 {
		t.Fatalf("keyboard used with text left in input: typed=%d submitted=%q", kb.typed, box.submitted)
	}
	if box.text != "hello" {
		t.Errorf("input = %q", box.text)
	}
}

func TestSendMissingSendButtonLeavesInputUntouched(t *testing.T) {
	els := []Element{{Name: "Type a message...", ControlType: ControlEdit}}
	snap := &fakeSnapshot{elements: els}
	inj := New(&fakeTree{snap: snap}, &fakeKeyboard{}, nil, Options{Clock: timing.NewFake()})

	if err := inj.Send(1, "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(snap.values) != 0 {
		t.Fatalf("input was written before the send button was found: %v", snap.values)
	}
}

func TestSendRefocusesOnceWhenNothingDelivered(t *testing.T) {
	kb := &fakeKeyboard{delivered: []int{0, 5}}
	sys := windowtest.NewSystem(1, window.Rect{Width: 800, Height: 600})

	if err := newTestInjector(nil, kb, sys).Send(1, "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(kb.typed) != 2 || sys.ForegroundCalls != 2 || kb.enters != 1 {
		t.Fatalf("typed=%d foreground=%d enters=%d", len(kb.typed), sys.ForegroundCalls, kb.enters)
	}
}

func TestSendBothPathsFail(t *testing.T) {
	kb := &fakeKeyboard{delivered: []int{0}}
	clock := timing.NewFake()
	inj := New(&fakeTree{err: errors.New("no uia")}, kb, nil, Options{FocusSettle: time.Second, Clock: clock})

	err := inj.Send(1, "hello")
	if !agenterrors.HasCode(err, agenterrors.ErrorInjectionFailed) {
		t.Fatalf("expected INJECTION_FAILED, got %v", err)
	}
	if !strings.Contains(err.Error(), "no uia") || !strings.Contains(err.Error(), "no characters delivered") {
		t.Errorf("both causes should be reported: %v", err)
	}
	if len(kb.typed) != 2 || kb.enters != 0 {
		t.Errorf("expected exactly one retry and no enter, typed=%d enters=%d", len(kb.typed), kb.enters)
	}
}

func TestSendPartialDeliveryFails(t *testing.T) {
	kb := &fakeKeyboard{delivered: []int{2}, typeErr: errors.New("blocked by UIPI")}

	err := newTestInjector(nil, kb, nil).Send(1, "hello")
	if !agenterrors.HasCode(err, agenterrors.ErrorInjectionFailed) {
		t.Fatalf("expected INJECTION_FAILED, got %v", err)
	}
	if len(kb.typed) != 1 {
		t.Errorf("partial delivery must not be retried, typed %d times", len(kb.typed))
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	kb := &fakeKeyboard{}
	err := newTestInjector(nil, kb, nil).Send(1, "")
	if !agenterrors.HasCode(err, agenterrors.ErrorInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
	if len(kb.typed) != 0 {
		t.Error("nothing should be typed")
	}
}

func TestSelectors(t *testing.T) {
	structural := Selectors{SendButtonName: "send"}
	if got := structural.FindInput(chatElements); got != 3 {
		t.Errorf("structural input = %d, want last Edit 3", got)
	}
	if got := structural.FindSend(chatElements); got != 4 {
		t.Errorf("structural send = %d, want 4", got)
	}

	docOnly := []Element{{ControlType: ControlButton, Name: "Send"}, {ControlType: ControlDocument}}
	if got := structural.FindInput(docOnly); got != 1 {
		t.Errorf("document fallback = %d, want 1", got)
	}

	byID := Selectors{InputAutomationID: "searchField", SendAutomationID: "missing"}
	if got := byID.FindInput(chatElements); got != 1 {
		t.Errorf("by id = %d, want 1", got)
	}
	if got := byID.FindSend(chatElements); got != -1 {
		t.Errorf("send without name fallback = %d, want -1", got)
	}
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	if err := Dump(&buf, chatElements[3:]); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `Edit`) || !strings.Contains(out, `automation_id="messageInput"`) {
		t.Fatalf("unexpected dump:\n%s", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected 2 lines:\n%s", out)
	}
}

func TestControlTypeString(t *testing.T) {
	if ControlEdit.String() != "Edit" || ControlType(1).String() != "ControlType(1)" {
		t.Fatal("unexpected control type names")
	}
}
