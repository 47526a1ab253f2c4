// Package launch opens a conversation in the messaging application through
// its deep link, which also starts or foregrounds the application.
package launch

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	agenterrors "viber-agent/src/errors"
)

// ErrNoDigits is returned when a phone number has no digits at all.
var ErrNoDigits = errors.New("phone number has no digits")

// Opener hands a URI to the OS shell.
type Opener interface {
	Open(uri string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(uri string) error

func (f OpenerFunc) Open(uri string) error { return f(uri) }

// Digits keeps only the ASCII digits of number, in order. No country code
// is inferred.
func Digits(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ChatURI builds scheme://chat?number=<digits>.
func ChatURI(scheme, digits string) string {
	q := url.Values{"number": {digits}}
	return fmt.Sprintf("%s://chat?%s", scheme, q.Encode())
}

// Trigger opens chats through an Opener.
type Trigger struct {
	opener Opener
	scheme string
}

func NewTrigger(opener Opener, scheme string) *Trigger {
	if opener == nil {
		opener = NewOpener()
	}
	if scheme == "" {
		scheme = "viber"
	}
	return &Trigger{opener: opener, scheme: scheme}
}

// OpenChat opens the conversation for number and returns the URI used.
// A number without digits yields ErrNoDigits wrapped as INVALID_REQUEST;
// a refusal by the OS yields LAUNCH_FAILED.
func (t *Trigger) OpenChat(number string) (string, error) {
	digits := Digits(number)
	if digits == "" {
		e := agenterrors.NewInvalidRequestError("No valid phone number provided")
		e.Cause = ErrNoDigits
		return "", e
	}
	uri := ChatURI(t.scheme, digits)
	if err := t.opener.Open(uri); err != nil {
		return uri, agenterrors.NewLaunchFailedError(uri, err)
	}
	log.Printf("launch: opened %s", uri)
	return uri, nil
}
