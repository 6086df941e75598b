//go:build !linux

package inject

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/micmonay/keybd_event"

	"dictate/platform"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// pasteShortcut sends Cmd+V on macOS and Ctrl+V elsewhere.
func pasteShortcut() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	if kbErr != nil {
		return kbErr
	}
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	return kb.Launching()
}

type Options struct {
	Backend          string
	RestoreClipboard bool
	Platform         platform.Info
}

// New builds the configured backend. Outside linux only pasting is
// available; ydotool works wherever it is installed.
func New(opts Options) (Injector, error) {
	switch opts.Backend {
	case BackendAuto, BackendPaste, "":
		return newPaste(pasteShortcut, opts.RestoreClipboard)
	case BackendYdotool:
		return NewYdotool()
	case BackendType:
		return nil, &Error{Backend: BackendType, Err: fmt.Errorf("%w: typing needs uinput (linux only)", ErrBackendUnavailable)}
	default:
		return nil, fmt.Errorf("unknown inject backend %q", opts.Backend)
	}
}

func Verify() (string, error) {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	if kbErr != nil {
		return "", kbErr
	}
	return "keyboard event binding OK", nil
}
