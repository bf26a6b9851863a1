// Package hotkey parses key combos and injects them as synthetic keystrokes.
package hotkey

import (
	"fmt"
	"strings"
)

// Combo is a parsed key chord such as alt+f10.
type Combo struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Super bool
	Key   string
}

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
	"super":   "super",
	"win":     "super",
	"cmd":     "super",
	"meta":    "super",
}

var namedKeys = map[string]struct{}{
	"space": {}, "enter": {}, "tab": {}, "esc": {},
	"home": {}, "end": {}, "insert": {}, "delete": {},
	"pageup": {}, "pagedown": {},
	"up": {}, "down": {}, "left": {}, "right": {},
	"print": {},
}

var keyAliases = map[string]string{
	"return":   "enter",
	"escape":   "esc",
	"del":      "delete",
	"ins":      "insert",
	"pgup":     "pageup",
	"pgdn":     "pagedown",
	"prtsc":    "print",
	"printscr": "print",
}

// ParseCombo parses a "+"-separated chord. Exactly one non-modifier key is required.
func ParseCombo(raw string) (Combo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Combo{}, fmt.Errorf("hotkey must not be empty")
	}

	var combo Combo
	for _, part := range strings.Split(raw, "+") {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			return Combo{}, fmt.Errorf("invalid hotkey %q: empty key in chord", raw)
		}

		if modifier, ok := modifierAliases[token]; ok {
			switch modifier {
			case "ctrl":
				combo.Ctrl = true
			case "alt":
				combo.Alt = true
			case "shift":
				combo.Shift = true
			case "super":
				combo.Super = true
			}
			continue
		}

		key, err := normalizeKey(token)
		if err != nil {
			return Combo{}, fmt.Errorf("invalid hotkey %q: %w", raw, err)
		}
		if combo.Key != "" {
			return Combo{}, fmt.Errorf("invalid hotkey %q: more than one key (%s, %s)", raw, combo.Key, key)
		}
		combo.Key = key
	}

	if combo.Key == "" {
		return Combo{}, fmt.Errorf("invalid hotkey %q: missing key", raw)
	}
	return combo, nil
}

func normalizeKey(token string) (string, error) {
	if alias, ok := keyAliases[token]; ok {
		token = alias
	}
	if _, ok := namedKeys[token]; ok {
		return token, nil
	}
	if len(token) == 1 {
		c := token[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return token, nil
		}
	}
	if n, ok := functionKeyNumber(token); ok && n >= 1 && n <= 24 {
		return token, nil
	}
	return "", fmt.Errorf("unsupported key %q", token)
}

// functionKeyNumber parses "f1".."f24".
func functionKeyNumber(token string) (int, bool) {
	if len(token) < 2 || len(token) > 3 || token[0] != 'f' {
		return 0, false
	}
	n := 0
	for _, c := range token[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if token[1] == '0' {
		return 0, false
	}
	return n, true
}

// String renders the canonical lower-case form, modifiers first.
func (c Combo) String() string {
	parts := c.modifiers()
	for i := range parts {
		parts[i] = strings.ToLower(parts[i])
	}
	return strings.Join(append(parts, c.Key), "+")
}

// HyprMods renders the modifier mask in hyprctl form, e.g. "CTRL SHIFT".
func (c Combo) HyprMods() string {
	return strings.Join(c.modifiers(), " ")
}

// HyprKey renders the key name hyprctl expects.
func (c Combo) HyprKey() string {
	switch c.Key {
	case "enter":
		return "Return"
	case "esc":
		return "Escape"
	case "pageup":
		return "Prior"
	case "pagedown":
		return "Next"
	case "print":
		return "Print"
	case "space", "tab", "home", "end", "insert", "delete", "up", "down", "left", "right":
		return strings.ToUpper(c.Key[:1]) + c.Key[1:]
	default:
		return strings.ToUpper(c.Key)
	}
}

func (c Combo) modifiers() []string {
	mods := make([]string, 0, 4)
	if c.Ctrl {
		mods = append(mods, "CTRL")
	}
	if c.Alt {
		mods = append(mods, "ALT")
	}
	if c.Shift {
		mods = append(mods, "SHIFT")
	}
	if c.Super {
		mods = append(mods, "SUPER")
	}
	return mods
}
