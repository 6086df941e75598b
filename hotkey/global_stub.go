//go:build !linux && !darwin && !windows

package hotkey

import "fmt"

func newGlobalSource(Combo) (Source, error) {
	return nil, fmt.Errorf("global hotkeys are not supported on this platform")
}
