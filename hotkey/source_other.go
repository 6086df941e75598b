//go:build !linux

package hotkey

import "fmt"

// NewSource picks the key event backend. auto uses the keyboard hook, which
// handles modifier-only combos and double presses.
func NewSource(backend string, combo Combo) (Source, error) {
	switch backend {
	case "", "auto", "hook":
		return newHook(), nil
	case "global":
		return newGlobalSource(combo)
	default:
		return nil, fmt.Errorf("unknown hotkey backend %q", backend)
	}
}

func Diagnose() (string, error) {
	return "keyboard hook available (global hotkeys need a non-modifier key)", nil
}
