package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMode identifies the context where a keybinding is active.
type KeyMode string

const (
	// ModeTUI is the main interactive dashboard.
	ModeTUI KeyMode = "tui"
	// ModeFilter is the process filter prompt opened with "/".
	ModeFilter KeyMode = "filter"
	// ModeConfirm is the kill confirmation dialog.
	ModeConfirm KeyMode = "confirm"
)

// KeyCategory groups keybindings by function.
type KeyCategory string

const (
	CategoryNavigation KeyCategory = "navigation"
	CategoryScroll     KeyCategory = "scroll"
	CategoryProcess    KeyCategory = "process"
	CategoryData       KeyCategory = "data"
	CategorySystem     KeyCategory = "system"
)

// KeyEntry represents a single registered keybinding with metadata.
type KeyEntry struct {
	// Binding is the charmbracelet key binding.
	Binding key.Binding
	// Mode is the context where this binding is active.
	Mode KeyMode
	// Category groups this binding by function.
	Category KeyCategory
	// Since is the version where this binding was introduced.
	Since string
}

// KeyRegistry is the single source of truth for all proc-pulse keybindings.
type KeyRegistry struct {
	Entries []KeyEntry
}

// DefaultRegistry returns the canonical key registry with all bindings.
// Dashboard entries reference the package keyMap so the registry cannot
// drift from what Update actually matches on.
func DefaultRegistry() *KeyRegistry {
	return &KeyRegistry{
		Entries: []KeyEntry{
			// Navigation
			{Binding: keys.NextTab, Mode: ModeTUI, Category: CategoryNavigation, Since: "0.1.0"},
			{Binding: keys.PrevTab, Mode: ModeTUI, Category: CategoryNavigation, Since: "0.1.0"},
			{Binding: keys.Tab1, Mode: ModeTUI, Category: CategoryNavigation, Since: "0.1.0"},
			{Binding: keys.Tab2, Mode: ModeTUI, Category: CategoryNavigation, Since: "0.1.0"},
			{Binding: keys.Tab3, Mode: ModeTUI, Category: CategoryNavigation, Since: "0.1.0"},
			{Binding: keys.Tab4, Mode: ModeTUI, Category: CategoryNavigation, Since: "0.1.0"},
			{Binding: keys.Tab5, Mode: ModeTUI, Category: CategoryNavigation, Since: "0.2.0"},

			// Scroll
			{Binding: keys.ScrollUp, Mode: ModeTUI, Category: CategoryScroll, Since: "0.1.0"},
			{Binding: keys.ScrollDown, Mode: ModeTUI, Category: CategoryScroll, Since: "0.1.0"},
			{Binding: keys.PageUp, Mode: ModeTUI, Category: CategoryScroll, Since: "0.1.0"},
			{Binding: keys.PageDown, Mode: ModeTUI, Category: CategoryScroll, Since: "0.1.0"},
			{Binding: keys.GoTop, Mode: ModeTUI, Category: CategoryScroll, Since: "0.1.0"},
			{Binding: keys.GoBottom, Mode: ModeTUI, Category: CategoryScroll, Since: "0.1.0"},

			// Process table
			{Binding: keys.SortCPU, Mode: ModeTUI, Category: CategoryProcess, Since: "0.2.0"},
			{Binding: keys.SortMem, Mode: ModeTUI, Category: CategoryProcess, Since: "0.2.0"},
			{Binding: keys.SortPID, Mode: ModeTUI, Category: CategoryProcess, Since: "0.2.0"},
			{Binding: keys.SortName, Mode: ModeTUI, Category: CategoryProcess, Since: "0.2.0"},
			{Binding: keys.Tree, Mode: ModeTUI, Category: CategoryProcess, Since: "0.2.0"},
			{Binding: keys.Zombies, Mode: ModeTUI, Category: CategoryProcess, Since: "0.2.0"},
			{Binding: keys.Filter, Mode: ModeTUI, Category: CategoryProcess, Since: "0.2.0"},
			{Binding: keys.Kill, Mode: ModeTUI, Category: CategoryProcess, Since: "0.3.0"},

			// Data
			{Binding: keys.Refresh, Mode: ModeTUI, Category: CategoryData, Since: "0.1.0"},
			{Binding: keys.Export, Mode: ModeTUI, Category: CategoryData, Since: "0.3.0"},
			{Binding: keys.Theme, Mode: ModeTUI, Category: CategoryData, Since: "0.3.0"},

			// System
			{Binding: keys.Help, Mode: ModeTUI, Category: CategorySystem, Since: "0.1.0"},
			{Binding: keys.Quit, Mode: ModeTUI, Category: CategorySystem, Since: "0.1.0"},

			// Filter prompt
			{Binding: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply filter")), Mode: ModeFilter, Category: CategoryProcess, Since: "0.2.0"},
			{Binding: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear filter")), Mode: ModeFilter, Category: CategoryProcess, Since: "0.2.0"},
			{Binding: key.NewBinding(key.WithKeys("backspace"), key.WithHelp("backspace", "delete char")), Mode: ModeFilter, Category: CategoryProcess, Since: "0.2.0"},

			// Kill confirmation
			{Binding: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm kill")), Mode: ModeConfirm, Category: CategoryProcess, Since: "0.3.0"},
			{Binding: key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")), Mode: ModeConfirm, Category: CategoryProcess, Since: "0.3.0"},
		},
	}
}

// ByMode returns all entries matching the given mode.
func (r *KeyRegistry) ByMode(mode KeyMode) []KeyEntry {
	var result []KeyEntry
	for _, e := range r.Entries {
		if e.Mode == mode {
			result = append(result, e)
		}
	}
	return result
}

// ByCategory returns all entries matching the given category.
func (r *KeyRegistry) ByCategory(cat KeyCategory) []KeyEntry {
	var result []KeyEntry
	for _, e := range r.Entries {
		if e.Category == cat {
			result = append(result, e)
		}
	}
	return result
}

// HasDuplicateKeys checks for duplicate key assignments within a mode.
// Returns a list of conflicts (empty if none).
func (r *KeyRegistry) HasDuplicateKeys() []string {
	type modeKey struct {
		mode KeyMode
		key  string
	}
	seen := make(map[modeKey]string)
	var conflicts []string

	for _, e := range r.Entries {
		for _, k := range e.Binding.Keys() {
			mk := modeKey{mode: e.Mode, key: k}
			if existing, ok := seen[mk]; ok {
				conflicts = append(conflicts, fmt.Sprintf(
					"duplicate key %q in mode %s: %s vs %s",
					k, e.Mode, existing, e.Binding.Help().Desc,
				))
			} else {
				seen[mk] = e.Binding.Help().Desc
			}
		}
	}

	return conflicts
}

// FormatTable returns a formatted table of all keybindings.
func (r *KeyRegistry) FormatTable() string {
	var sb strings.Builder

	modes := []KeyMode{ModeTUI, ModeFilter, ModeConfirm}
	for _, mode := range modes {
		entries := r.ByMode(mode)
		if len(entries) == 0 {
			continue
		}

		sb.WriteString(fmt.Sprintf("\n%s Mode:\n", strings.ToUpper(string(mode))))
		sb.WriteString(strings.Repeat("-", 50) + "\n")

		for _, e := range entries {
			keysStr := strings.Join(e.Binding.Keys(), ", ")
			sb.WriteString(fmt.Sprintf("  %-20s  %s\n", keysStr, e.Binding.Help().Desc))
		}
	}

	return sb.String()
}

// FormatJSON returns a JSON-compatible slice of binding descriptions.
func (r *KeyRegistry) FormatJSON() []map[string]string {
	var result []map[string]string
	for _, e := range r.Entries {
		result = append(result, map[string]string{
			"keys":     strings.Join(e.Binding.Keys(), ", "),
			"desc":     e.Binding.Help().Desc,
			"mode":     string(e.Mode),
			"category": string(e.Category),
			"since":    e.Since,
		})
	}
	return result
}
