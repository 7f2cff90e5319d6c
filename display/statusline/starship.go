package statusline

import (
	"fmt"
	"strings"
)

// starshipModule is the custom module name users reference from their
// format string as ${custom.procpulse}.
const starshipModule = "procpulse"

// StarshipConfig holds the knobs for the generated Starship custom module.
type StarshipConfig struct {
	// BinaryPath is the path to the proc-pulse binary.
	BinaryPath string
	// Symbol is the icon placed before the line.
	Symbol string
	// Style is the Starship style string for the segment.
	Style string
}

// DefaultStarshipConfig returns a StarshipConfig that resolves the binary
// from PATH and renders a plain cyan segment.
func DefaultStarshipConfig() StarshipConfig {
	return StarshipConfig{
		BinaryPath: "proc-pulse",
		Symbol:     "",
		Style:      "cyan",
	}
}

// GenerateStarshipConfig generates a Starship TOML section that embeds the
// statusline as a custom module. The output is suitable for appending to
// ~/.config/starship.toml.
func GenerateStarshipConfig(cfg StarshipConfig) string {
	var b strings.Builder

	b.WriteString("# proc-pulse Starship custom module\n")
	b.WriteString("# Add this section to your ~/.config/starship.toml\n")
	fmt.Fprintf(&b, "# and reference \"custom.%s\" in your format string\n", starshipModule)
	b.WriteString("\n")
	fmt.Fprintf(&b, "[custom.%s]\n", starshipModule)
	fmt.Fprintf(&b, "command = \"%s -line\"\n", cfg.BinaryPath)
	fmt.Fprintf(&b, "when = \"command -v %s\"\n", cfg.BinaryPath)
	fmt.Fprintf(&b, "format = \"[$symbol($output)]($style) \"\n")
	fmt.Fprintf(&b, "symbol = \"%s\"\n", cfg.Symbol)
	fmt.Fprintf(&b, "style = \"%s\"\n", cfg.Style)
	fmt.Fprintf(&b, "shell = [\"bash\", \"--noprofile\", \"--norc\"]\n")

	return b.String()
}

// GenerateStarshipFormatString returns the format string reference for the
// generated module. This can be inserted into the user's existing format.
func GenerateStarshipFormatString() string {
	return fmt.Sprintf("${custom.%s}", starshipModule)
}
