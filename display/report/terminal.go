package report

import (
	"os"
	"strconv"

	"github.com/charmbracelet/x/term"
)

// Width bounds keep the boxes readable on very narrow and very wide
// terminals.
const (
	minReportWidth     = 60
	maxReportWidth     = 120
	defaultReportWidth = 80
)

// DetectWidth returns the terminal width in columns. It tries TTY detection
// first, then the COLUMNS environment variable, then falls back to 80.
func DetectWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if w, err := strconv.Atoi(cols); err == nil && w > 0 {
			return w
		}
	}

	return defaultReportWidth
}

// clampWidth bounds a detected width to the report's renderable range.
func clampWidth(w int) int {
	if w < minReportWidth {
		return minReportWidth
	}
	if w > maxReportWidth {
		return maxReportWidth
	}
	return w
}
