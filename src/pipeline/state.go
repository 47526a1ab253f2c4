package pipeline

import (
	"fmt"
	"time"
)

// State is a step of the lookup or send state machine.
type State int

const (
	Idle State = iota
	Launching
	AwaitingWindow
	AwaitingWindowRetry
	PanelWait
	Capturing
	InputWait
	Injecting
	Closing
	Done
	Failed
)

var stateNames = [...]string{
	Idle:                "Idle",
	Launching:           "Launching",
	AwaitingWindow:      "AwaitingWindow",
	AwaitingWindowRetry: "AwaitingWindowRetry",
	PanelWait:           "PanelWait",
	Capturing:           "Capturing",
	InputWait:           "InputWait",
	Injecting:           "Injecting",
	Closing:             "Closing",
	Done:                "Done",
	Failed:              "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// Transition reports that an operation left From after Elapsed.
type Transition struct {
	Operation string
	From      State
	To        State
	Elapsed   time.Duration
	Extra     string
}
