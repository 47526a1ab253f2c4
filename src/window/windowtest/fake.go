// Package windowtest provides a scriptable window.System for tests.
package windowtest

import (
	"regexp"
	"sync"

	"viber-agent/src/window"
)

// System is a fake window.System. The zero value never finds a window.
type System struct {
	mu sync.Mutex

	// Handle is returned once the window "appears".
	Handle window.Handle
	// AppearAfter is the number of failed find rounds before the window
	// appears. Negative means never.
	AppearAfter int
	// ProcessOnly makes the title lookup miss so only FindByProcess hits.
	ProcessOnly bool
	// Rects is returned by successive Rect calls; the last entry repeats.
	Rects []window.Rect

	RestoreErr    error
	ForegroundErr error
	CloseErr      error

	findRounds      int
	TitleCalls      int
	ProcessCalls    int
	RestoreCalls    int
	ForegroundCalls int
	RectCalls       int
	Closed          []window.Handle
}

// NewSystem returns a fake whose window appears immediately with rect.
func NewSystem(h window.Handle, rect window.Rect) *System {
	return &System{Handle: h, Rects: []window.Rect{rect}}
}

// Missing returns a fake whose window never appears.
func Missing() *System {
	return &System{AppearAfter: -1}
}

func (s *System) visible() bool {
	return s.AppearAfter >= 0 && s.findRounds > s.AppearAfter
}

func (s *System) FindByTitle(*regexp.Regexp) (window.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TitleCalls++
	s.findRounds++
	if s.ProcessOnly || !s.visible() {
		return 0, false
	}
	return s.Handle, true
}

func (s *System) FindByProcess(string) (window.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProcessCalls++
	if !s.visible() {
		return 0, false
	}
	return s.Handle, true
}

func (s *System) Restore(window.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RestoreCalls++
	return s.RestoreErr
}

func (s *System) Foreground(window.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ForegroundCalls++
	return s.ForegroundErr
}

func (s *System) Rect(window.Handle) (window.Rect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RectCalls++
	if len(s.Rects) == 0 {
		return window.Rect{}, nil
	}
	i := s.RectCalls - 1
	if i >= len(s.Rects) {
		i = len(s.Rects) - 1
	}
	return s.Rects[i], nil
}

func (s *System) Close(h window.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = append(s.Closed, h)
	return s.CloseErr
}

// CloseCount returns how many times Close was called.
func (s *System) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Closed)
}
