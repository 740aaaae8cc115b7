package appconfig

import (
	"fmt"
	"strings"
)

// ParseDetachKey converts a key name such as "ctrl-]" or "ctrl-q" to the
// byte a terminal sends for it. "none" or an empty name returns 0.
func ParseDetachKey(name string) (byte, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "none", "off":
		return 0, nil
	}
	for _, prefix := range []string{"ctrl-", "ctrl+", "c-", "^"} {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if len(rest) != 1 {
			break
		}
		c := rest[0]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < '@' || c > '_' {
			break
		}
		return c & 0x1f, nil
	}
	return 0, fmt.Errorf("terminal.detach_key %q: expected ctrl-<key> or none", name)
}
