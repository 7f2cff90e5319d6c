// Package format provides shared byte, string, and time formatting utilities.
package format

import "fmt"

// byteUnits are the suffixes used for compact byte rendering (1024 base).
var byteUnits = []string{"B", "K", "M", "G", "T", "P"}

// FormatBytes renders a byte count in compact form ("912B", "1.5M", "12G").
// Values under 10 in a unit keep one decimal, larger values are whole numbers.
func FormatBytes(n uint64) string {
	v := float64(n)
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%dB", n)
	}
	if v < 10 {
		return fmt.Sprintf("%.1f%s", v, byteUnits[unit])
	}
	return fmt.Sprintf("%.0f%s", v, byteUnits[unit])
}

// FormatRate renders a bytes-per-second rate ("1.5M/s").
// Negative rates clamp to zero.
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return FormatBytes(uint64(bytesPerSec)) + "/s"
}

// FormatPercent renders a percentage with one decimal ("42.0%").
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// FormatCount renders large counts compactly ("912", "1.5k", "34M").
func FormatCount(n uint64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fG", float64(n)/1e9)
	case n >= 10_000_000:
		return fmt.Sprintf("%.0fM", float64(n)/1e6)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 10_000:
		return fmt.Sprintf("%.0fk", float64(n)/1e3)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}
