//go:build linux

package inject

import (
	"fmt"

	"dictate/log"
	"dictate/platform"
)

type Options struct {
	Backend          string
	RestoreClipboard bool
	Platform         platform.Info
}

// New builds the configured backend. auto prefers the virtual keyboard and
// falls back to ydotool on Wayland when uinput is not usable.
func New(opts Options) (Injector, error) {
	switch opts.Backend {
	case BackendType:
		kb, err := OpenKeyboard()
		if err != nil {
			return nil, &Error{Backend: BackendType, Err: err}
		}
		return &Typer{kb: kb}, nil
	case BackendPaste:
		kb, err := OpenKeyboard()
		if err != nil {
			return nil, &Error{Backend: BackendPaste, Err: err}
		}
		return newPaste(kb.PasteShortcut, opts.RestoreClipboard)
	case BackendYdotool:
		return NewYdotool()
	case BackendAuto, "":
		return newAuto(opts)
	default:
		return nil, fmt.Errorf("unknown inject backend %q", opts.Backend)
	}
}

func newAuto(opts Options) (Injector, error) {
	kb, err := OpenKeyboard()
	if err != nil {
		if opts.Platform.IsWayland() && platform.HasCommand("ydotool") {
			log.Warnf("uinput unavailable (%v), using ydotool", err)
			return NewYdotool()
		}
		return nil, &Error{Backend: BackendAuto, Err: err}
	}
	typer := &Typer{kb: kb}
	paste, err := newPaste(kb.PasteShortcut, opts.RestoreClipboard)
	if err != nil {
		log.Warnf("clipboard unavailable, non-ASCII text will be skipped: %v", err)
		return typer, nil
	}
	return &mixed{typer: typer, paste: paste}, nil
}
