package logutil

import (
	"testing"
	"time"
)

func TestFormatStep(t *testing.T) {
	got := FormatStep("find window", 1234*time.Millisecond, "")
	if got != "[viber-agent] find window: 1.23s" {
		t.Errorf("unexpected step line: %q", got)
	}
	got = FormatStep("find window (retry)", 500*time.Millisecond, "err=timeout")
	if got != "[viber-agent] find window (retry): 0.50s - err=timeout" {
		t.Errorf("unexpected step line with extra: %q", got)
	}
}

func TestRedactKey(t *testing.T) {
	if got := RedactKey("short"); got != "********" {
		t.Errorf("expected full mask for short key, got %q", got)
	}
	if got := RedactKey("sk-proj-abcdefgh1234"); got != "sk-p...1234" {
		t.Errorf("unexpected redaction: %q", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"newlines escaped", "Ivan\nPetrov", 0, "Ivan\\nPetrov"},
		{"tabs escaped", "a\tb", 0, "a\\tb"},
		{"control chars replaced", "a\x01b", 0, "a?b"},
		{"truncated by runes", "Иван Петров", 4, "Иван..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in, tt.max); got != tt.want {
				t.Errorf("Sanitize(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}
