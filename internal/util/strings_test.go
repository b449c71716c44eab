package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"tiny budget collapses to ellipsis", "hello", 3, "..."},
		{"multibyte runes counted as one", "héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateANSIPreservesStyling(t *testing.T) {
	styled := lipgloss.NewStyle().Bold(true).Render("a long styled line of text")

	got := TruncateANSI(styled, 10)
	if w := lipgloss.Width(got); w > 10 {
		t.Errorf("visual width = %d, want <= 10", w)
	}

	if got := TruncateANSI("plain", 10); got != "plain" {
		t.Errorf("short string changed: %q", got)
	}
	if got := TruncateANSI("anything at all", 2); got != "..." {
		t.Errorf("tiny budget = %q, want ...", got)
	}
}
