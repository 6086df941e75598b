//go:build linux

package hotkey

import "fmt"

// NewSource picks the key event backend. Linux only has evdev; the combo is
// matched by the detector.
func NewSource(backend string, _ Combo) (Source, error) {
	switch backend {
	case "", "auto", "evdev":
		return newEvdev(), nil
	default:
		return nil, fmt.Errorf("hotkey backend %q not available on linux", backend)
	}
}
