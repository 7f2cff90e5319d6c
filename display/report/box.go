package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// boxStyle defines the frame characters for a section box.
type boxStyle struct {
	topLeft, topRight, bottomLeft, bottomRight rune
	horizontal, vertical                       rune
}

var roundedBox = boxStyle{
	topLeft: '╭', topRight: '╮', bottomLeft: '╰', bottomRight: '╯',
	horizontal: '─', vertical: '│',
}

var styleBoxTitle = lipgloss.NewStyle().Bold(true)

// renderBox wraps content lines in a titled frame exactly width columns
// wide. Lines longer than the interior are truncated, shorter ones padded.
func renderBox(lines []string, width int, title string) string {
	if width < 4 {
		width = 80
	}
	innerWidth := width - 2
	horiz := string(roundedBox.horizontal)

	var b strings.Builder

	b.WriteRune(roundedBox.topLeft)
	if title != "" && len([]rune(title))+3 <= innerWidth {
		b.WriteString(horiz)
		b.WriteString(" ")
		b.WriteString(styleBoxTitle.Render(title))
		b.WriteString(" ")
		remaining := innerWidth - len([]rune(title)) - 3
		b.WriteString(strings.Repeat(horiz, remaining))
	} else {
		b.WriteString(strings.Repeat(horiz, innerWidth))
	}
	b.WriteRune(roundedBox.topRight)
	b.WriteString("\n")

	for _, line := range lines {
		b.WriteRune(roundedBox.vertical)
		b.WriteString(" ")
		b.WriteString(padVisible(line, innerWidth-2))
		b.WriteString(" ")
		b.WriteRune(roundedBox.vertical)
		b.WriteString("\n")
	}

	b.WriteRune(roundedBox.bottomLeft)
	b.WriteString(strings.Repeat(horiz, innerWidth))
	b.WriteRune(roundedBox.bottomRight)

	return b.String()
}

// padVisible pads or truncates a line to exactly width visible characters.
// Escape sequences are preserved and excluded from the count so styled
// gauge bars line up with plain text.
func padVisible(s string, width int) string {
	visible := visibleLen(s)
	if visible > width {
		return truncateVisible(s, width)
	}
	return s + strings.Repeat(" ", width-visible)
}

// visibleLen counts visible characters, skipping ANSI escape sequences.
func visibleLen(s string) int {
	length := 0
	inEscape := false
	for _, r := range s {
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '~' {
				inEscape = false
			}
			continue
		}
		if r == '\x1b' {
			inEscape = true
			continue
		}
		length++
	}
	return length
}

// truncateVisible truncates a string to at most width visible characters,
// keeping escape sequences intact so styling is not cut mid-sequence.
func truncateVisible(s string, width int) string {
	if width <= 0 {
		return ""
	}

	var b strings.Builder
	count := 0
	inEscape := false

	for _, r := range s {
		if inEscape {
			b.WriteRune(r)
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '~' {
				inEscape = false
			}
			continue
		}
		if r == '\x1b' {
			inEscape = true
			b.WriteRune(r)
			continue
		}
		if count >= width {
			break
		}
		b.WriteRune(r)
		count++
	}

	return b.String()
}
