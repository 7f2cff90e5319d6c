package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gitlab.com/tinyland/lab/proc-pulse/display/tui"
)

// runKeysCommand prints the registered keybindings to stdout, optionally
// limited to one mode, as a table or as JSON.
func runKeysCommand(mode, format string) {
	reg := tui.DefaultRegistry()

	if mode != "" {
		filtered := reg.ByMode(tui.KeyMode(mode))
		if len(filtered) == 0 {
			fmt.Fprintf(os.Stderr, "no bindings found for mode %q (valid: tui, filter, confirm)\n", mode)
			os.Exit(1)
		}
		reg = &tui.KeyRegistry{Entries: filtered}
	}

	switch format {
	case "json":
		data, _ := json.MarshalIndent(reg.FormatJSON(), "", "  ")
		fmt.Println(string(data))

	default: // "table"
		fmt.Print(reg.FormatTable())
	}
}
