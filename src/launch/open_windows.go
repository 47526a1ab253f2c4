//go:build windows

package launch

import (
	"fmt"

	"golang.org/x/sys/windows"
)

type shellOpener struct{}

// NewOpener returns an opener that calls ShellExecuteW directly, so the
// deep link goes to the registered handler without a browser hop.
func NewOpener() Opener { return shellOpener{} }

func (shellOpener) Open(uri string) error {
	verb, err := windows.UTF16PtrFromString("open")
	if err != nil {
		return err
	}
	target, err := windows.UTF16PtrFromString(uri)
	if err != nil {
		return fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	return windows.ShellExecute(0, verb, target, nil, nil, windows.SW_SHOWNORMAL)
}
