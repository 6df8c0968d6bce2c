package terminal

import (
	"bytes"
	"strings"
	"testing"
)

func TestLinesFor(t *testing.T) {
	tests := []struct {
		n, width, want int
	}{
		{0, 80, 1},
		{80, 80, 1},
		{81, 80, 2},
		{200, 0, 3},
	}
	for _, tt := range tests {
		if got := LinesFor(tt.n, tt.width); got != tt.want {
			t.Errorf("LinesFor(%d, %d) = %d, want %d", tt.n, tt.width, got, tt.want)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"\n", false},
		{"no\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := Confirm(strings.NewReader(tt.input), &out, "Delete profile?", false); got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Delete profile? [y/N]: ") {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestConfirmClearsPrompt(t *testing.T) {
	var out bytes.Buffer
	Confirm(strings.NewReader("y\n"), &out, "Go?", true)
	if !strings.Contains(out.String(), "\x1b[2K") {
		t.Errorf("prompt not cleared: %q", out.String())
	}
}
