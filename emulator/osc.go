package emulator

import (
	"fmt"
	"strings"

	"pkt.systems/consoleshell/internal/theme"
	"pkt.systems/consoleshell/schema"
)

const (
	oscStart = "\x1b]"
	oscEnd   = "\x1b\\"
)

// ThemeSequence renders the OSC sequences that apply t to an xterm-compatible
// terminal: palette (OSC 4), foreground (10), background (11) and cursor (12).
func ThemeSequence(t schema.Theme) (string, error) {
	var b strings.Builder
	for i, colour := range t.Palette() {
		spec, err := xcolor(colour)
		if err != nil {
			return "", fmt.Errorf("theme %s palette %d: %w", t.Name, i, err)
		}
		fmt.Fprintf(&b, "%s4;%d;%s%s", oscStart, i, spec, oscEnd)
	}
	for _, entry := range []struct {
		code   int
		colour string
	}{
		{10, t.Foreground},
		{11, t.Background},
		{12, t.Cursor},
	} {
		if entry.colour == "" {
			continue
		}
		spec, err := xcolor(entry.colour)
		if err != nil {
			return "", fmt.Errorf("theme %s osc %d: %w", t.Name, entry.code, err)
		}
		fmt.Fprintf(&b, "%s%d;%s%s", oscStart, entry.code, spec, oscEnd)
	}
	return b.String(), nil
}

// ResetThemeSequence restores the terminal's own palette and colours.
func ResetThemeSequence() string {
	return oscStart + "104" + oscEnd +
		oscStart + "110" + oscEnd +
		oscStart + "111" + oscEnd +
		oscStart + "112" + oscEnd
}

func xcolor(hex string) (string, error) {
	r, g, b, err := theme.RGB(hex)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rgb:%02x/%02x/%02x", r, g, b), nil
}
