package tui

import "github.com/charmbracelet/lipgloss"

// ThemePreset is a complete color scheme that can be applied at runtime
// to change the TUI appearance.
type ThemePreset struct {
	Name        string
	Description string

	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Danger     lipgloss.Color
	Muted      lipgloss.Color
	Foreground lipgloss.Color
	Background lipgloss.Color
	// Selection is the row highlight behind the cursor in tables.
	Selection lipgloss.Color
}

// Predefined theme presets.
var (
	// DefaultTheme is the cyan and purple house palette.
	DefaultTheme = ThemePreset{
		Name:        "default",
		Description: "Cyan and purple dark palette",
		Primary:     lipgloss.Color("#06B6D4"),
		Secondary:   lipgloss.Color("#7C3AED"),
		Success:     lipgloss.Color("#22C55E"),
		Warning:     lipgloss.Color("#EAB308"),
		Danger:      lipgloss.Color("#EF4444"),
		Muted:       lipgloss.Color("#6B7280"),
		Foreground:  lipgloss.Color("#E2E8F0"),
		Background:  lipgloss.Color("#1E1B2E"),
		Selection:   lipgloss.Color("#35304D"),
	}

	// DarkTheme is a muted palette in the One Dark tradition.
	DarkTheme = ThemePreset{
		Name:        "dark",
		Description: "Muted One Dark palette",
		Primary:     lipgloss.Color("#61AFEF"),
		Secondary:   lipgloss.Color("#D19A66"),
		Success:     lipgloss.Color("#98C379"),
		Warning:     lipgloss.Color("#E5C07B"),
		Danger:      lipgloss.Color("#E06C75"),
		Muted:       lipgloss.Color("#5C6370"),
		Foreground:  lipgloss.Color("#ABB2BF"),
		Background:  lipgloss.Color("#282C34"),
		Selection:   lipgloss.Color("#3D424D"),
	}

	// GruvboxTheme follows the gruvbox dark palette.
	GruvboxTheme = ThemePreset{
		Name:        "gruvbox",
		Description: "Warm gruvbox dark palette",
		Primary:     lipgloss.Color("#83A598"),
		Secondary:   lipgloss.Color("#D3869B"),
		Success:     lipgloss.Color("#8EC07C"),
		Warning:     lipgloss.Color("#FABD2F"),
		Danger:      lipgloss.Color("#FB4934"),
		Muted:       lipgloss.Color("#A89984"),
		Foreground:  lipgloss.Color("#EBDBB2"),
		Background:  lipgloss.Color("#282828"),
		Selection:   lipgloss.Color("#3C3836"),
	}

	// DraculaTheme follows the dracula palette.
	DraculaTheme = ThemePreset{
		Name:        "dracula",
		Description: "High-contrast dracula palette",
		Primary:     lipgloss.Color("#8BE9FD"),
		Secondary:   lipgloss.Color("#FF79C6"),
		Success:     lipgloss.Color("#50FA7B"),
		Warning:     lipgloss.Color("#F1FA8C"),
		Danger:      lipgloss.Color("#FF5555"),
		Muted:       lipgloss.Color("#6272A4"),
		Foreground:  lipgloss.Color("#F8F8F2"),
		Background:  lipgloss.Color("#282A36"),
		Selection:   lipgloss.Color("#44475A"),
	}

	// SolarizedTheme follows the solarized dark palette.
	SolarizedTheme = ThemePreset{
		Name:        "solarized",
		Description: "Low-contrast solarized dark palette",
		Primary:     lipgloss.Color("#2AA198"),
		Secondary:   lipgloss.Color("#6C71C4"),
		Success:     lipgloss.Color("#859900"),
		Warning:     lipgloss.Color("#B58900"),
		Danger:      lipgloss.Color("#DC322F"),
		Muted:       lipgloss.Color("#657B83"),
		Foreground:  lipgloss.Color("#839496"),
		Background:  lipgloss.Color("#002B36"),
		Selection:   lipgloss.Color("#073642"),
	}
)

// allPresets is the canonical list, in cycle order.
var allPresets = []ThemePreset{DefaultTheme, DarkTheme, GruvboxTheme, DraculaTheme, SolarizedTheme}

// GetThemePreset returns the theme preset matching the given name.
// Unknown names return DefaultTheme.
func GetThemePreset(name string) ThemePreset {
	for _, p := range allPresets {
		if p.Name == name {
			return p
		}
	}
	return DefaultTheme
}

// AllThemePresets returns all available theme presets.
func AllThemePresets() []ThemePreset {
	out := make([]ThemePreset, len(allPresets))
	copy(out, allPresets)
	return out
}

// ThemeNames returns the preset names in cycle order.
func ThemeNames() []string {
	names := make([]string, len(allPresets))
	for i, p := range allPresets {
		names[i] = p.Name
	}
	return names
}

// NextThemePreset returns the preset after the named one, wrapping around
// at the end of the list. Unknown names cycle back to the first preset.
func NextThemePreset(name string) ThemePreset {
	for i, p := range allPresets {
		if p.Name == name {
			return allPresets[(i+1)%len(allPresets)]
		}
	}
	return allPresets[0]
}

// ApplyTheme updates the package-level color and style variables to the
// given preset. This allows runtime theme switching without restarting
// the application.
func ApplyTheme(preset ThemePreset) {
	colorPrimary = preset.Primary
	colorSecondary = preset.Secondary
	colorSuccess = preset.Success
	colorWarning = preset.Warning
	colorDanger = preset.Danger
	colorMuted = preset.Muted
	colorFg = preset.Foreground
	colorBg = preset.Background
	colorSelection = preset.Selection

	styleActiveTab = lipgloss.NewStyle().
		Bold(true).
		Foreground(preset.Background).
		Background(preset.Primary).
		Padding(0, 2)

	styleInactiveTab = lipgloss.NewStyle().
		Foreground(preset.Muted).
		Padding(0, 2)

	styleHeader = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(preset.Muted).
		MarginBottom(1)

	styleFooter = lipgloss.NewStyle().
		Foreground(preset.Muted).
		MarginTop(1)

	styleContent = lipgloss.NewStyle().
		Padding(1, 2)

	styleTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(preset.Secondary)

	styleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(preset.Foreground).
		Background(preset.Selection)

	styleDialog = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(preset.Danger).
		Padding(1, 3)

	styleFilter = lipgloss.NewStyle().
		Bold(true).
		Foreground(preset.Primary)

	styleToast = lipgloss.NewStyle().
		Foreground(preset.Success)

	styleToastError = lipgloss.NewStyle().
		Foreground(preset.Danger)
}
