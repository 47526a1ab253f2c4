package ocr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NoNameSentinel is what the recognition prompt asks for when the panel
// shows no name.
const NoNameSentinel = "No name found"

// DefaultDenylist holds UI chrome that the recognition service tends to
// return as if it were a name. Compared case-insensitively.
var DefaultDenylist = []string{
	"viber", "viber out", "rakuten viber", "viber pay",
	"online", "offline", "last seen", "last seen recently", "typing...",
	"chat", "chats", "calls", "contacts", "more", "info", "media",
	"search", "new chat", "send message", "free call", "video call",
	"add contact", "add to contacts", "block", "mute", "unknown",
	"contact info", "chat info", "notifications", "no name found",
}

// DefaultSkipLabels are lines dropped while looking for the name line.
var DefaultSkipLabels = []string{
	"viber", "rakuten viber", "viber out", "chat info", "contact info",
}

// Rules are the acceptance thresholds for a name candidate.
type Rules struct {
	Denylist   []string
	SkipLabels []string
	MinRunes   int
	MaxRunes   int
	MinLetters int
	// MinAlphaRatio is the minimum share of letters among all runes.
	MinAlphaRatio float64
	// CleanMaxRunes bounds the length of a candidate that needs no
	// correction call.
	CleanMaxRunes int
}

func DefaultRules() Rules {
	return Rules{
		Denylist:      DefaultDenylist,
		SkipLabels:    DefaultSkipLabels,
		MinRunes:      2,
		MaxRunes:      80,
		MinLetters:    2,
		MinAlphaRatio: 0.5,
		CleanMaxRunes: 50,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func contains(list []string, s string) bool {
	n := normalize(s)
	for _, item := range list {
		if normalize(item) == n {
			return true
		}
	}
	return false
}

// IsPlausiblePersonName reports whether s can be shown as a contact name.
// Accepting is idempotent: an accepted name is accepted again.
func (r Rules) IsPlausiblePersonName(s string) bool {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < r.MinRunes || n > r.MaxRunes {
		return false
	}
	if contains(r.Denylist, s) {
		return false
	}
	letters := 0
	for _, c := range s {
		if unicode.IsLetter(c) {
			letters++
		}
	}
	if letters < r.MinLetters {
		return false
	}
	return float64(letters)/float64(n) >= r.MinAlphaRatio
}

// LooksClean reports whether s is made only of letters, spaces, hyphens
// and apostrophes and is short enough to skip the correction call.
func (r Rules) LooksClean(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < r.MinRunes || n > r.CleanMaxRunes {
		return false
	}
	for _, c := range s {
		switch {
		case unicode.IsLetter(c), c == ' ', c == '-', c == '\'', c == '’':
		default:
			return false
		}
	}
	return true
}

func isSeparator(line string) bool {
	for _, c := range line {
		if c != '-' && c != '–' && c != '—' && c != '_' && !unicode.IsSpace(c) {
			return false
		}
	}
	return true
}

// ParseCandidate picks the name line out of the recognition reply: the
// first non-empty line that is not a separator or a known label. A
// sentinel on that line means no name.
func (r Rules) ParseCandidate(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "\"'*`")
		line = strings.TrimSpace(line)
		if line == "" || isSeparator(line) {
			continue
		}
		if normalize(line) == normalize(NoNameSentinel) {
			return ""
		}
		if contains(r.SkipLabels, line) {
			continue
		}
		return line
	}
	return ""
}
