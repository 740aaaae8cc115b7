// Package theme maps persisted theme preferences to terminal colour themes.
package theme

import (
	"fmt"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"pkt.systems/consoleshell/schema"
)

var themes = map[schema.ThemeName]schema.Theme{
	"chalk": {
		Name: "chalk", Background: "#2b2d2e", Foreground: "#d2d8d9", Cursor: "#708284", CursorAccent: "#2b2d2e", Selection: "#4a4f52",
		Black: "#7d8b8f", Red: "#b23a52", Green: "#789b6a", Yellow: "#b9ac4a", Blue: "#2a7fac", Magenta: "#bd4f5a", Cyan: "#44a799", White: "#d2d8d9",
		BrightBlack: "#888888", BrightRed: "#f24840", BrightGreen: "#80c470", BrightYellow: "#ffeb62", BrightBlue: "#4196ff", BrightMagenta: "#fc5275", BrightCyan: "#53cdbd", BrightWhite: "#d2d8d9",
	},
	"dracula": {
		Name: "dracula", Background: "#282a36", Foreground: "#f8f8f2", Cursor: "#f8f8f2", CursorAccent: "#282a36", Selection: "#44475a",
		Black: "#21222c", Red: "#ff5555", Green: "#50fa7b", Yellow: "#f1fa8c", Blue: "#bd93f9", Magenta: "#ff79c6", Cyan: "#8be9fd", White: "#f8f8f2",
		BrightBlack: "#6272a4", BrightRed: "#ff6e6e", BrightGreen: "#69ff94", BrightYellow: "#ffffa5", BrightBlue: "#d6acff", BrightMagenta: "#ff92df", BrightCyan: "#a4ffff", BrightWhite: "#ffffff",
	},
	"solarized-dark": {
		Name: "solarized-dark", Background: "#002b36", Foreground: "#839496", Cursor: "#93a1a1", CursorAccent: "#002b36", Selection: "#073642",
		Black: "#073642", Red: "#dc322f", Green: "#859900", Yellow: "#b58900", Blue: "#268bd2", Magenta: "#d33682", Cyan: "#2aa198", White: "#eee8d5",
		BrightBlack: "#002b36", BrightRed: "#cb4b16", BrightGreen: "#586e75", BrightYellow: "#657b83", BrightBlue: "#839496", BrightMagenta: "#6c71c4", BrightCyan: "#93a1a1", BrightWhite: "#fdf6e3",
	},
	"solarized-light": {
		Name: "solarized-light", Background: "#fdf6e3", Foreground: "#657b83", Cursor: "#586e75", CursorAccent: "#fdf6e3", Selection: "#eee8d5",
		Black: "#073642", Red: "#dc322f", Green: "#859900", Yellow: "#b58900", Blue: "#268bd2", Magenta: "#d33682", Cyan: "#2aa198", White: "#eee8d5",
		BrightBlack: "#002b36", BrightRed: "#cb4b16", BrightGreen: "#586e75", BrightYellow: "#657b83", BrightBlue: "#839496", BrightMagenta: "#6c71c4", BrightCyan: "#93a1a1", BrightWhite: "#fdf6e3",
	},
	"monokai": {
		Name: "monokai", Background: "#272822", Foreground: "#f8f8f2", Cursor: "#f8f8f0", CursorAccent: "#272822", Selection: "#49483e",
		Black: "#272822", Red: "#f92672", Green: "#a6e22e", Yellow: "#f4bf75", Blue: "#66d9ef", Magenta: "#ae81ff", Cyan: "#a1efe4", White: "#f8f8f2",
		BrightBlack: "#75715e", BrightRed: "#f92672", BrightGreen: "#a6e22e", BrightYellow: "#f4bf75", BrightBlue: "#66d9ef", BrightMagenta: "#ae81ff", BrightCyan: "#a1efe4", BrightWhite: "#f9f8f5",
	},
	"gruvbox": {
		Name: "gruvbox", Background: "#282828", Foreground: "#ebdbb2", Cursor: "#ebdbb2", CursorAccent: "#282828", Selection: "#504945",
		Black: "#282828", Red: "#cc241d", Green: "#98971a", Yellow: "#d79921", Blue: "#458588", Magenta: "#b16286", Cyan: "#689d6a", White: "#a89984",
		BrightBlack: "#928374", BrightRed: "#fb4934", BrightGreen: "#b8bb26", BrightYellow: "#fabd2f", BrightBlue: "#83a598", BrightMagenta: "#d3869b", BrightCyan: "#8ec07c", BrightWhite: "#ebdbb2",
	},
	"nord": {
		Name: "nord", Background: "#2e3440", Foreground: "#d8dee9", Cursor: "#d8dee9", CursorAccent: "#2e3440", Selection: "#434c5e",
		Black: "#3b4252", Red: "#bf616a", Green: "#a3be8c", Yellow: "#ebcb8b", Blue: "#81a1c1", Magenta: "#b48ead", Cyan: "#88c0d0", White: "#e5e9f0",
		BrightBlack: "#4c566a", BrightRed: "#bf616a", BrightGreen: "#a3be8c", BrightYellow: "#ebcb8b", BrightBlue: "#81a1c1", BrightMagenta: "#b48ead", BrightCyan: "#8fbcbb", BrightWhite: "#eceff4",
	},
	"tomorrow-night": {
		Name: "tomorrow-night", Background: "#1d1f21", Foreground: "#c5c8c6", Cursor: "#c5c8c6", CursorAccent: "#1d1f21", Selection: "#373b41",
		Black: "#1d1f21", Red: "#cc6666", Green: "#b5bd68", Yellow: "#f0c674", Blue: "#81a2be", Magenta: "#b294bb", Cyan: "#8abeb7", White: "#c5c8c6",
		BrightBlack: "#969896", BrightRed: "#cc6666", BrightGreen: "#b5bd68", BrightYellow: "#f0c674", BrightBlue: "#81a2be", BrightMagenta: "#b294bb", BrightCyan: "#8abeb7", BrightWhite: "#ffffff",
	},
}

// Lookup returns the theme for key after normalisation.
func Lookup(key string) (schema.Theme, bool) {
	name, ok := schema.NormalizeThemeName(key)
	if !ok {
		return schema.Theme{}, false
	}
	theme, ok := themes[name]
	return theme, ok
}

// Default returns the default theme.
func Default() schema.Theme {
	return themes[schema.DefaultTheme]
}

// Names returns the supported theme names in sorted order.
func Names() []schema.ThemeName {
	out := make([]schema.ThemeName, 0, len(themes))
	for name := range themes {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RGB parses a CSS hex colour into 8-bit channels.
func RGB(hex string) (r, g, b uint8, err error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse colour %q: %w", hex, err)
	}
	r, g, b = c.RGB255()
	return r, g, b, nil
}
