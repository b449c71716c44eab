// Package util provides small shared helpers used across the codebase.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateString truncates s to maxLen runes, appending "..." when anything
// was cut. It counts runes, not columns, so it is only suitable for plain
// text; styled terminal output should go through TruncateANSI.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// TruncateANSI truncates s to maxWidth visual columns, appending "..." when
// anything was cut. Escape sequences and wide characters are measured
// correctly, so styled spans survive the cut intact.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}
