//go:build !windows

package launch

import (
	"os/exec"
	"runtime"
)

type execOpener struct{}

// NewOpener returns an opener that delegates to the desktop's URL handler.
func NewOpener() Opener { return execOpener{} }

func (execOpener) Open(uri string) error {
	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}
	return exec.Command(name, uri).Start()
}
