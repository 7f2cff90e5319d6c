package tui

import "github.com/charmbracelet/lipgloss"

// Colors for the active theme. ApplyTheme rewrites these, so tabs and
// widgets that read them pick up a theme switch on the next render.
var (
	colorPrimary   lipgloss.Color
	colorSecondary lipgloss.Color
	colorSuccess   lipgloss.Color
	colorWarning   lipgloss.Color
	colorDanger    lipgloss.Color
	colorMuted     lipgloss.Color
	colorFg        lipgloss.Color
	colorBg        lipgloss.Color
	colorSelection lipgloss.Color
)

// Styles used throughout the TUI.
var (
	styleActiveTab   lipgloss.Style
	styleInactiveTab lipgloss.Style
	styleHeader      lipgloss.Style
	styleFooter      lipgloss.Style
	styleContent     lipgloss.Style
	styleTitle       lipgloss.Style
	styleSelected    lipgloss.Style
	styleDialog      lipgloss.Style
	styleFilter      lipgloss.Style
	styleToast       lipgloss.Style
	styleToastError  lipgloss.Style
)

func init() {
	ApplyTheme(DefaultTheme)
}
