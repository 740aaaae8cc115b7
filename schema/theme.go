package schema

import "strings"

// DefaultTheme is the theme used when no preference is stored or the stored
// key is not recognised.
const DefaultTheme ThemeName = "chalk"

// Theme is a terminal colour theme. Colours are CSS hex strings.
type Theme struct {
	Name          ThemeName `json:"name"`
	Background    string    `json:"background"`
	Foreground    string    `json:"foreground"`
	Cursor        string    `json:"cursor"`
	CursorAccent  string    `json:"cursorAccent"`
	Selection     string    `json:"selection"`
	Black         string    `json:"black"`
	Red           string    `json:"red"`
	Green         string    `json:"green"`
	Yellow        string    `json:"yellow"`
	Blue          string    `json:"blue"`
	Magenta       string    `json:"magenta"`
	Cyan          string    `json:"cyan"`
	White         string    `json:"white"`
	BrightBlack   string    `json:"brightBlack"`
	BrightRed     string    `json:"brightRed"`
	BrightGreen   string    `json:"brightGreen"`
	BrightYellow  string    `json:"brightYellow"`
	BrightBlue    string    `json:"brightBlue"`
	BrightMagenta string    `json:"brightMagenta"`
	BrightCyan    string    `json:"brightCyan"`
	BrightWhite   string    `json:"brightWhite"`
}

// Palette returns the 16 ANSI colours in index order.
func (t Theme) Palette() []string {
	return []string{
		t.Black, t.Red, t.Green, t.Yellow, t.Blue, t.Magenta, t.Cyan, t.White,
		t.BrightBlack, t.BrightRed, t.BrightGreen, t.BrightYellow,
		t.BrightBlue, t.BrightMagenta, t.BrightCyan, t.BrightWhite,
	}
}

// NormalizeThemeName returns the canonical theme name if the key is a known
// name or alias.
func NormalizeThemeName(name string) (ThemeName, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	switch normalized {
	case "chalk":
		return "chalk", true
	case "dracula":
		return "dracula", true
	case "solarized-dark", "solarized", "solarizeddark":
		return "solarized-dark", true
	case "solarized-light", "solarizedlight":
		return "solarized-light", true
	case "monokai", "monokai-soda", "monokaisoda":
		return "monokai", true
	case "gruvbox", "gruvbox-dark":
		return "gruvbox", true
	case "nord":
		return "nord", true
	case "tomorrow-night", "tomorrow":
		return "tomorrow-night", true
	default:
		return "", false
	}
}
