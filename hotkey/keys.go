package hotkey

import (
	"fmt"
	"slices"
	"strings"
)

// scancodes is shared by evdev and libuiohook: both use the PC/AT set 1
// numbering for the main block.
var scancodes = map[uint16]string{
	1: "esc", 2: "1", 3: "2", 4: "3", 5: "4", 6: "5", 7: "6", 8: "7", 9: "8", 10: "9", 11: "0",
	12: "minus", 13: "equal", 14: "backspace", 15: "tab",
	16: "q", 17: "w", 18: "e", 19: "r", 20: "t", 21: "y", 22: "u", 23: "i", 24: "o", 25: "p",
	26: "bracketleft", 27: "bracketright", 28: "enter", 29: "ctrl_l",
	30: "a", 31: "s", 32: "d", 33: "f", 34: "g", 35: "h", 36: "j", 37: "k", 38: "l",
	39: "semicolon", 40: "apostrophe", 41: "grave", 42: "shift_l", 43: "backslash",
	44: "z", 45: "x", 46: "c", 47: "v", 48: "b", 49: "n", 50: "m",
	51: "comma", 52: "period", 53: "slash", 54: "shift_r", 56: "alt_l", 57: "space", 58: "capslock",
	59: "f1", 60: "f2", 61: "f3", 62: "f4", 63: "f5", 64: "f6", 65: "f7", 66: "f8", 67: "f9", 68: "f10",
	87: "f11", 88: "f12",
}

// generic modifier names match either side.
var generic = map[string][2]string{
	"ctrl":  {"ctrl_l", "ctrl_r"},
	"alt":   {"alt_l", "alt_r"},
	"shift": {"shift_l", "shift_r"},
	"super": {"super_l", "super_r"},
}

var aliases = map[string]string{
	"control": "ctrl",
	"option":  "alt",
	"opt":     "alt",
	"cmd":     "super",
	"command": "super",
	"meta":    "super",
	"win":     "super",
	"cmd_l":   "super_l",
	"cmd_r":   "super_r",
	"return":  "enter",
	"escape":  "esc",
}

var knownKeys = func() map[string]bool {
	m := map[string]bool{}
	for _, name := range scancodes {
		m[name] = true
	}
	for name, sides := range generic {
		m[name] = true
		m[sides[0]] = true
		m[sides[1]] = true
	}
	return m
}()

// IsModifier reports whether key is a ctrl, alt, shift or super key.
func IsModifier(key string) bool {
	if _, ok := generic[key]; ok {
		return true
	}
	base, _, ok := strings.Cut(key, "_")
	if !ok {
		return false
	}
	_, isMod := generic[base]
	return isMod
}

// Matches reports whether an event for key satisfies want, where want may be
// a generic modifier name.
func Matches(want, key string) bool {
	if want == key {
		return true
	}
	sides, ok := generic[want]
	return ok && (key == sides[0] || key == sides[1])
}

// NormalizeKey lowercases and resolves aliases, rejecting unknown names.
func NormalizeKey(name string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(name))
	if k == "" {
		return "", fmt.Errorf("empty key name")
	}
	if a, ok := aliases[k]; ok {
		k = a
	}
	if !knownKeys[k] {
		return "", fmt.Errorf("unknown key %q", name)
	}
	return k, nil
}

// Combo is a set of keys that must be held together.
type Combo struct {
	keys []string
}

// ParseCombo parses a "+"-separated, case-insensitive key list like "ctrl+alt".
func ParseCombo(s string) (Combo, error) {
	parts := strings.Split(s, "+")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		k, err := NormalizeKey(p)
		if err != nil {
			return Combo{}, fmt.Errorf("combo %q: %w", s, err)
		}
		if slices.Contains(keys, k) {
			return Combo{}, fmt.Errorf("combo %q: duplicate key %q", s, k)
		}
		keys = append(keys, k)
	}
	return Combo{keys: keys}, nil
}

func MustParseCombo(s string) Combo {
	c, err := ParseCombo(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Combo) Keys() []string { return slices.Clone(c.keys) }

func (c Combo) IsZero() bool { return len(c.keys) == 0 }

func (c Combo) String() string { return strings.Join(c.keys, "+") }

// Held reports whether every combo key is in held.
func (c Combo) Held(held map[string]bool) bool {
	if len(c.keys) == 0 {
		return false
	}
	for _, want := range c.keys {
		if sides, ok := generic[want]; ok {
			if !held[sides[0]] && !held[sides[1]] {
				return false
			}
			continue
		}
		if !held[want] {
			return false
		}
	}
	return true
}

// Split separates modifiers from the single trigger key, as OS hotkey APIs
// want them.
func (c Combo) Split() (mods []string, key string, err error) {
	for _, k := range c.keys {
		if IsModifier(k) {
			mods = append(mods, k)
			continue
		}
		if key != "" {
			return nil, "", fmt.Errorf("combo %s: more than one non-modifier key", c)
		}
		key = k
	}
	if key == "" {
		return nil, "", fmt.Errorf("combo %s: needs one non-modifier key", c)
	}
	return mods, key, nil
}

// concrete maps a generic modifier to its left-hand key so synthesized
// events still satisfy Held.
func concrete(key string) string {
	if sides, ok := generic[key]; ok {
		return sides[0]
	}
	return key
}
